// Package broker owns a single MQTT session shared by every device the
// caller connects through it: one TCP connection, one paho.mqtt.golang
// client, many device subscriptions multiplexed on top.
package broker

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"

	"github.com/northlane/tasmoctl/response"
	"github.com/northlane/tasmoctl/router"
	"github.com/northlane/tasmoctl/tasmoerr"
)

var clientIDCounter atomic.Uint64

// Config configures a broker connection.
type Config struct {
	Host              string
	Port              uint16
	Username          string
	Password          string
	KeepAlive         time.Duration
	ConnectionTimeout time.Duration
	Log               *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = 1883
	}
	if c.KeepAlive == 0 {
		c.KeepAlive = 30 * time.Second
	}
	if c.ConnectionTimeout == 0 {
		c.ConnectionTimeout = 10 * time.Second
	}
	if c.Log == nil {
		c.Log = slog.Default()
	}
	return c
}

// deviceSubscription is everything the broker tracks per device topic: the
// channel command responses are delivered on, and the router that fans
// telemetry/result messages out to that device's callback registry.
type deviceSubscription struct {
	responses chan response.Message
	router    *router.Router
}

// Broker is an MQTT broker connection shared across multiple logical
// Tasmota devices. It is safe for concurrent use and cheap to pass around
// by pointer.
type Broker struct {
	client paho.Client
	cfg    Config

	mu   sync.RWMutex
	subs map[string]*deviceSubscription

	connected             atomic.Bool
	initialConnectionDone atomic.Bool

	discoveryMu sync.Mutex
	discoveryCh chan string
}

// Connect establishes the TCP connection, issues MQTT CONNECT with a
// process-unique client id, and waits for CONNACK up to
// cfg.ConnectionTimeout.
func Connect(cfg Config) (*Broker, error) {
	cfg = cfg.withDefaults()
	if cfg.Host == "" {
		return nil, tasmoerr.WrapProtocol(tasmoerr.InvalidAddress(fmt.Errorf("mqtt broker host is required")))
	}

	clientID := fmt.Sprintf("tasmoctl_%d_%d", os.Getpid(), clientIDCounter.Add(1))

	b := &Broker{cfg: cfg, subs: make(map[string]*deviceSubscription)}

	opts := paho.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)).
		SetClientID(clientID).
		SetKeepAlive(cfg.KeepAlive).
		SetConnectTimeout(cfg.ConnectionTimeout).
		SetAutoReconnect(true).
		SetCleanSession(true)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		wasConnected := b.connected.Swap(false)
		if wasConnected {
			cfg.Log.Warn("mqtt connection lost, waiting for reconnection", "error", err)
			b.dispatchDisconnectedAll()
		}
	})

	opts.SetOnConnectHandler(func(_ paho.Client) {
		b.connected.Store(true)
		if b.initialConnectionDone.Swap(true) {
			cfg.Log.Info("mqtt broker reconnected, restoring subscriptions")
			b.handleReconnection()
		} else {
			cfg.Log.Info("connected to mqtt broker", "host", cfg.Host, "port", cfg.Port)
		}
	})

	b.client = paho.NewClient(opts)

	token := b.client.Connect()
	if !token.WaitTimeout(cfg.ConnectionTimeout) {
		return nil, tasmoerr.WrapProtocol(tasmoerr.Timeout(cfg.ConnectionTimeout.Milliseconds()))
	}
	if err := token.Error(); err != nil {
		if errors.Is(err, packets.ErrorRefusedBadUsernameOrPassword) ||
			errors.Is(err, packets.ErrorRefusedNotAuthorised) {
			return nil, tasmoerr.WrapProtocol(tasmoerr.AuthenticationFailed())
		}
		return nil, tasmoerr.WrapProtocol(tasmoerr.ConnectionFailed(err))
	}

	return b, nil
}

// NewForTesting builds a Broker around an already-constructed paho.Client,
// skipping the network CONNECT entirely. It exists so other packages
// (client, device) can exercise their broker-facing logic against a fake
// paho.Client without a live MQTT server.
func NewForTesting(pahoClient paho.Client, cfg Config) *Broker {
	b := &Broker{cfg: cfg.withDefaults(), client: pahoClient, subs: make(map[string]*deviceSubscription)}
	b.connected.Store(true)
	b.initialConnectionDone.Store(true)
	return b
}

// IsConnected reports the broker's current connection state.
func (b *Broker) IsConnected() bool { return b.connected.Load() }

// Host returns the configured broker host.
func (b *Broker) Host() string { return b.cfg.Host }

// Port returns the configured broker port.
func (b *Broker) Port() uint16 { return b.cfg.Port }

// HasCredentials reports whether username/password authentication is
// configured.
func (b *Broker) HasCredentials() bool { return b.cfg.Username != "" }

func (b *Broker) log() *slog.Logger { return b.cfg.Log }

// PublishCommand publishes a command payload to cmnd/<deviceTopic>/<suffix>
// at QoS 1.
func (b *Broker) PublishCommand(deviceTopic, suffix, payload string) error {
	topic := fmt.Sprintf("cmnd/%s/%s", deviceTopic, suffix)
	token := b.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return tasmoerr.WrapProtocol(tasmoerr.Timeout(5000))
	}
	if err := token.Error(); err != nil {
		return tasmoerr.WrapProtocol(tasmoerr.Mqtt(err))
	}
	return nil
}

// AddDeviceSubscription subscribes to stat/<deviceTopic>/+ and
// tele/<deviceTopic>/+, registers a fresh router for the device, and
// returns a channel that command responses (RESULT, STATUS*) are delivered
// on.
func (b *Broker) AddDeviceSubscription(deviceTopic string) (<-chan response.Message, *router.Router, error) {
	if err := b.subscribeDeviceTopics(deviceTopic); err != nil {
		return nil, nil, err
	}

	responses := make(chan response.Message, 10)
	r := router.New()
	r.Log = b.log()

	b.mu.Lock()
	b.subs[deviceTopic] = &deviceSubscription{responses: responses, router: r}
	b.mu.Unlock()

	b.log().Debug("subscribed to device topics", "topic", deviceTopic)
	return responses, r, nil
}

func (b *Broker) subscribeDeviceTopics(deviceTopic string) error {
	for _, topic := range []string{
		fmt.Sprintf("stat/%s/+", deviceTopic),
		fmt.Sprintf("tele/%s/+", deviceTopic),
	} {
		token := b.client.Subscribe(topic, 1, b.handleMessage)
		if !token.WaitTimeout(10 * time.Second) {
			return tasmoerr.WrapProtocol(tasmoerr.Timeout(10000))
		}
		if err := token.Error(); err != nil {
			return tasmoerr.WrapProtocol(tasmoerr.Mqtt(err))
		}
	}
	return nil
}

// RemoveDeviceSubscription unsubscribes and drops tracking for a device
// topic.
func (b *Broker) RemoveDeviceSubscription(deviceTopic string) {
	b.mu.Lock()
	delete(b.subs, deviceTopic)
	b.mu.Unlock()

	statTopic := fmt.Sprintf("stat/%s/+", deviceTopic)
	teleTopic := fmt.Sprintf("tele/%s/+", deviceTopic)
	if token := b.client.Unsubscribe(statTopic, teleTopic); token.WaitTimeout(10*time.Second) && token.Error() != nil {
		b.log().Warn("failed to unsubscribe from device topics", "topic", deviceTopic, "error", token.Error())
	}
	b.log().Debug("unsubscribed from device topics", "topic", deviceTopic)
}

func (b *Broker) handleMessage(_ paho.Client, msg paho.Message) {
	b.routeMessage(msg.Topic(), msg.Payload())
}

// RouteMessageForTesting routes a synthetic MQTT message as if it had
// arrived on the wire. Exported only for use by other packages' tests
// (client, device) against a NewForTesting broker.
func (b *Broker) RouteMessageForTesting(topic string, payload []byte) {
	b.routeMessage(topic, payload)
}

func (b *Broker) routeMessage(topic string, payload []byte) {
	parts := strings.SplitN(topic, "/", 3)
	if len(parts) < 3 {
		return
	}
	prefix, deviceTopic, suffix := parts[0], parts[1], parts[2]
	if prefix != "stat" && prefix != "tele" {
		return
	}

	isDiscoveryTopic := (prefix == "tele" && (suffix == "LWT" || suffix == "STATE")) ||
		(prefix == "stat" && suffix == "STATUS")
	if isDiscoveryTopic {
		b.discoveryMu.Lock()
		ch := b.discoveryCh
		b.discoveryMu.Unlock()
		if ch != nil {
			select {
			case ch <- deviceTopic:
			default:
			}
		}
	}

	b.mu.RLock()
	sub, ok := b.subs[deviceTopic]
	b.mu.RUnlock()
	if !ok {
		return
	}

	sub.router.Route(topic, payload)

	if prefix == "stat" {
		isJSONResponse := suffix == "RESULT" || strings.HasPrefix(suffix, "STATUS")
		if isJSONResponse {
			select {
			case sub.responses <- response.Message{Suffix: suffix, Payload: payload}:
			default:
				b.log().Warn("response channel full, dropping message", "topic", topic)
			}
		}
	}
}

// handleReconnection resubscribes every tracked device topic and notifies
// each device's router that the connection was restored. Resubscription
// always precedes the notification.
func (b *Broker) handleReconnection() {
	b.mu.RLock()
	subs := make(map[string]*deviceSubscription, len(b.subs))
	for topic, sub := range b.subs {
		subs[topic] = sub
	}
	b.mu.RUnlock()

	for deviceTopic, sub := range subs {
		if err := b.subscribeDeviceTopics(deviceTopic); err != nil {
			b.log().Error("failed to resubscribe to device topics", "topic", deviceTopic, "error", err)
		}
		sub.router.DispatchReconnectedAll()
	}

	b.log().Info("reconnection complete, all devices notified", "device_count", len(subs))
}

func (b *Broker) dispatchDisconnectedAll() {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for deviceTopic, sub := range b.subs {
		b.log().Debug("notifying device of disconnection", "topic", deviceTopic)
		sub.router.DispatchDisconnectedAll()
	}
}

// SubscriptionCount returns the number of active device subscriptions.
func (b *Broker) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Disconnect clears all subscriptions and issues MQTT DISCONNECT.
func (b *Broker) Disconnect() error {
	b.log().Info("disconnecting from mqtt broker", "host", b.cfg.Host, "port", b.cfg.Port)

	b.mu.Lock()
	b.subs = make(map[string]*deviceSubscription)
	b.mu.Unlock()

	b.client.Disconnect(250)
	b.connected.Store(false)
	return nil
}

// StartDiscovery opens a channel that receives every device topic observed
// on tele/+/LWT, tele/+/STATE, or stat/+/STATUS while discovery is active.
func (b *Broker) StartDiscovery() <-chan string {
	ch := make(chan string, 100)
	b.discoveryMu.Lock()
	b.discoveryCh = ch
	b.discoveryMu.Unlock()
	return ch
}

// StopDiscovery disables discovery mode.
func (b *Broker) StopDiscovery() {
	b.discoveryMu.Lock()
	b.discoveryCh = nil
	b.discoveryMu.Unlock()
}

// Client exposes the underlying paho client for discovery's wildcard
// subscribe/publish calls.
func (b *Broker) Client() paho.Client { return b.client }
