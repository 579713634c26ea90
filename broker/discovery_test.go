package broker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverDevicesCollectsAnnouncedTopics(t *testing.T) {
	client := &fakeClient{
		subscribeToken:   newFakeToken(true, nil),
		publishToken:     newFakeToken(true, nil),
		unsubscribeToken: newFakeToken(true, nil),
	}
	b := newTestBroker(client)

	client.onPublish = func(topic string, _ interface{}) {
		if topic != discoveryGroupTopic {
			return
		}
		b.routeMessage("tele/alpha/LWT", []byte("Online"))
		b.routeMessage("tele/beta/STATE", []byte(`{"POWER":"OFF"}`))
	}

	topics, err := b.DiscoverDevices(50 * time.Millisecond)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alpha", "beta"}, topics)

	assert.Contains(t, client.published, discoveryGroupTopic)
	var subscribed []string
	for _, call := range client.subscriptions {
		subscribed = append(subscribed, call.topic)
	}
	assert.Subset(t, subscribed, []string{"tele/+/LWT", "tele/+/STATE", "stat/+/STATUS"})
	require.Len(t, client.unsubscribed, 3, "wildcard subscriptions are torn down after the window")
}

func TestDiscoverDevicesDeduplicatesRepeatAnnouncements(t *testing.T) {
	client := &fakeClient{
		subscribeToken:   newFakeToken(true, nil),
		publishToken:     newFakeToken(true, nil),
		unsubscribeToken: newFakeToken(true, nil),
	}
	b := newTestBroker(client)

	client.onPublish = func(topic string, _ interface{}) {
		if topic != discoveryGroupTopic {
			return
		}
		b.routeMessage("tele/alpha/LWT", []byte("Online"))
		b.routeMessage("tele/alpha/STATE", []byte(`{"POWER":"ON"}`))
		b.routeMessage("stat/alpha/STATUS", []byte(`{"Status":{}}`))
	}

	topics, err := b.DiscoverDevices(50 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, topics)
}

func TestDiscoverDevicesEmptyWindowReturnsNoTopics(t *testing.T) {
	client := &fakeClient{
		subscribeToken:   newFakeToken(true, nil),
		publishToken:     newFakeToken(true, nil),
		unsubscribeToken: newFakeToken(true, nil),
	}
	b := newTestBroker(client)

	topics, err := b.DiscoverDevices(20 * time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, topics)
}
