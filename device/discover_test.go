package device

import (
	"context"
	"strings"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northlane/tasmoctl/broker"
)

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (t *fakeToken) Error() error                   { return t.err }

type fakePahoClient struct {
	published []string

	// onPublish runs synchronously inside Publish so a test can simulate
	// the device responses a command triggers.
	onPublish func(topic string, payload interface{})
}

func (c *fakePahoClient) IsConnected() bool      { return true }
func (c *fakePahoClient) IsConnectionOpen() bool { return true }
func (c *fakePahoClient) Connect() paho.Token    { return &fakeToken{} }
func (c *fakePahoClient) Disconnect(uint)        {}
func (c *fakePahoClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.published = append(c.published, topic)
	if c.onPublish != nil {
		c.onPublish(topic, payload)
	}
	return &fakeToken{}
}
func (c *fakePahoClient) Subscribe(string, byte, paho.MessageHandler) paho.Token {
	return &fakeToken{}
}
func (c *fakePahoClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &fakeToken{}
}
func (c *fakePahoClient) Unsubscribe(...string) paho.Token     { return &fakeToken{} }
func (c *fakePahoClient) AddRoute(string, paho.MessageHandler) {}
func (c *fakePahoClient) OptionsReader() paho.ClientOptionsReader {
	return paho.NewOptionsReader(paho.NewClientOptions())
}

// statusProbePayloads is one full Status 0 fan-out, keyed by response
// suffix, enough for capability detection to complete without timing out.
var statusProbePayloads = map[string]string{
	"STATUS":   `{"Status":{"Module":18,"FriendlyName":["Discovered"]}}`,
	"STATUS1":  `{"StatusPRM":{}}`,
	"STATUS2":  `{"StatusFWR":{}}`,
	"STATUS3":  `{"StatusLOG":{}}`,
	"STATUS4":  `{"StatusMEM":{"Heap":25}}`,
	"STATUS5":  `{"StatusNET":{}}`,
	"STATUS6":  `{"StatusMQT":{}}`,
	"STATUS7":  `{"StatusTIM":{}}`,
	"STATUS11": `{"StatusSTS":{"POWER":"ON"}}`,
}

func TestDiscoverAddsAndConnectsAnnouncedDevices(t *testing.T) {
	fc := &fakePahoClient{}
	b := broker.NewForTesting(fc, broker.Config{Host: "127.0.0.1"})

	mgr := NewManager(nil)
	mgr.connectBroker = func(broker.Config) (*broker.Broker, error) { return b, nil }

	fc.onPublish = func(topic string, _ interface{}) {
		parts := strings.Split(topic, "/")
		if len(parts) != 3 || parts[0] != "cmnd" {
			return
		}
		deviceTopic, suffix := parts[1], parts[2]
		switch {
		case deviceTopic == "tasmotas" && suffix == "Status":
			// Two devices announce themselves inside the window; the third
			// announcement carries an empty topic and cannot be added.
			b.RouteMessageForTesting("tele/alpha/LWT", []byte("Online"))
			b.RouteMessageForTesting("tele/beta/STATE", []byte(`{"POWER":"OFF"}`))
			b.RouteMessageForTesting("tele//LWT", []byte("Online"))
		case suffix == "Status":
			for sfx, payload := range statusProbePayloads {
				b.RouteMessageForTesting("stat/"+deviceTopic+"/"+sfx, []byte(payload))
			}
		case suffix == "State":
			b.RouteMessageForTesting("stat/"+deviceTopic+"/RESULT", []byte(`{"POWER":"ON"}`))
		}
	}

	cfg := MqttConfig{BrokerHost: "127.0.0.1", BrokerPort: 1883}
	ids, err := mgr.Discover(context.Background(), cfg, 50*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, ids, 2, "the empty-topic announcement is skipped, not fatal")

	var topics []string
	for _, id := range ids {
		m, ok := mgr.get(id)
		require.True(t, ok)
		topics = append(topics, m.Config().Topic())

		cs, _ := mgr.ConnectionState(id)
		assert.Equal(t, Connected, cs)

		st, ok := mgr.GetState(id)
		require.True(t, ok)
		p, ok := st.Power(1)
		require.True(t, ok, "initial state acquired from the State probe")
		assert.True(t, bool(p))
	}
	assert.ElementsMatch(t, []string{"alpha", "beta"}, topics)
	assert.Equal(t, 2, mgr.DeviceCount())
}

func TestDiscoverPropagatesBrokerConnectFailure(t *testing.T) {
	mgr := NewManager(nil)
	mgr.connectBroker = func(broker.Config) (*broker.Broker, error) {
		return nil, assert.AnError
	}

	_, err := mgr.Discover(context.Background(), MqttConfig{BrokerHost: "127.0.0.1"}, time.Millisecond)
	require.Error(t, err)
	assert.Zero(t, mgr.DeviceCount())
}
