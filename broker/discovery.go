package broker

import (
	"time"

	"github.com/northlane/tasmoctl/tasmoerr"
)

const discoveryGroupTopic = "cmnd/tasmotas/Status"

// DiscoverDevices listens for Tasmota device announcements for the given
// duration and returns the set of discovered device topics. Callers are
// responsible for turning each topic into a managed device (via
// AddDeviceSubscription and a capability/state query); the broker only
// knows about wire-level topics, not devices.
func (b *Broker) DiscoverDevices(timeout time.Duration) ([]string, error) {
	b.log().Info("starting mqtt device discovery", "host", b.Host(), "port", b.Port(), "timeout", timeout)

	// Discovery mode opens before the broadcast goes out so announcements
	// that race the publish are not lost.
	ch := b.StartDiscovery()
	defer b.StopDiscovery()

	for _, topic := range []string{"tele/+/LWT", "tele/+/STATE", "stat/+/STATUS"} {
		token := b.client.Subscribe(topic, 0, b.handleMessage)
		if !token.WaitTimeout(10*time.Second) || token.Error() != nil {
			return nil, tasmoerr.WrapProtocol(tasmoerr.Mqtt(token.Error()))
		}
	}
	b.log().Debug("subscribed to discovery topics")

	if token := b.client.Publish(discoveryGroupTopic, 0, false, "0"); token.Wait() && token.Error() != nil {
		return nil, tasmoerr.WrapProtocol(tasmoerr.Mqtt(token.Error()))
	}
	b.log().Debug("sent broadcast status command to trigger device responses")

	topics := collectDeviceTopics(ch, timeout)

	for _, topic := range []string{"tele/+/LWT", "tele/+/STATE", "stat/+/STATUS"} {
		b.client.Unsubscribe(topic)
	}

	b.log().Info("discovered device topics", "count", len(topics))
	return topics, nil
}

func collectDeviceTopics(ch <-chan string, timeout time.Duration) []string {
	seen := make(map[string]struct{})

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

collect:
	for {
		select {
		case topic := <-ch:
			seen[topic] = struct{}{}
		case <-deadline.C:
			break collect
		}
	}

	topics := make([]string, 0, len(seen))
	for topic := range seen {
		topics = append(topics, topic)
	}
	return topics
}
