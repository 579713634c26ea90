package tasmoctl

import (
	"context"
	"log/slog"
	"net"
	"net/url"
	"strconv"

	"github.com/northlane/tasmoctl/device"
	"github.com/northlane/tasmoctl/tasmoerr"
)

// MqttBroker is a connected shared MQTT session: every Device built through
// it multiplexes onto the same underlying TCP connection. Credentials are
// copied into one broker.Config and never shared across brokers, but many
// devices may share one MqttBroker.
type MqttBroker struct {
	mgr     *device.Manager
	cfg     device.MqttConfig
	release func()
}

// MqttBrokerBuilder configures an MqttBroker before connecting it.
type MqttBrokerBuilder struct {
	host     string
	port     uint16
	username string
	password string
	log      *slog.Logger
}

// NewMqttBroker starts building a shared MQTT broker connection. Port
// defaults to 1883.
func NewMqttBroker() *MqttBrokerBuilder {
	return &MqttBrokerBuilder{port: 1883}
}

// Host sets the broker hostname or IP.
func (b *MqttBrokerBuilder) Host(host string) *MqttBrokerBuilder {
	b.host = host
	return b
}

// Port sets the broker TCP port.
func (b *MqttBrokerBuilder) Port(port uint16) *MqttBrokerBuilder {
	b.port = port
	return b
}

// Credentials sets MQTT username/password authentication.
func (b *MqttBrokerBuilder) Credentials(username, password string) *MqttBrokerBuilder {
	b.username, b.password = username, password
	return b
}

// Logger sets the structured logger the broker and every device built
// through it will use. Defaults to slog.Default().
func (b *MqttBrokerBuilder) Logger(log *slog.Logger) *MqttBrokerBuilder {
	b.log = log
	return b
}

// Build connects the shared broker session, surfacing InvalidAddress,
// ConnectionFailed, Timeout, or AuthenticationFailed (see package
// tasmoerr) before any device is added.
func (b *MqttBrokerBuilder) Build(ctx context.Context) (*MqttBroker, error) {
	mgr := device.NewManager(b.log)
	cfg := device.MqttConfig{
		BrokerHost: b.host,
		BrokerPort: b.port,
		Username:   b.username,
		Password:   b.password,
	}

	release, err := mgr.AcquireBrokerRef(cfg)
	if err != nil {
		return nil, err
	}
	return &MqttBroker{mgr: mgr, cfg: cfg, release: release}, nil
}

// parseMqttURL accepts "host", "host:port", or "mqtt://host:port" and
// returns the host and port (default 1883).
func parseMqttURL(raw string) (string, uint16, error) {
	candidate := raw
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" && u.Host != "" {
		candidate = u.Host
	}

	host, portStr, err := net.SplitHostPort(candidate)
	if err != nil {
		return candidate, 1883, nil
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return "", 0, tasmoerr.WrapProtocol(tasmoerr.InvalidAddress(err))
	}
	return host, uint16(port), nil
}

// Device returns a builder for one Tasmota device addressed over this
// broker's shared MQTT session.
func (b *MqttBroker) Device(topic string) *DeviceBuilder {
	cfg := device.MQTT(b.cfg.BrokerHost, b.cfg.BrokerPort, topic).
		WithCredentials(b.cfg.Username, b.cfg.Password)
	return &DeviceBuilder{mgr: b.mgr, cfg: cfg}
}

// Manager exposes the full multi-device Manager backing this broker, for
// callers that need its broadcast event bus or LAN discovery rather than
// the single-device Device facade.
func (b *MqttBroker) Manager() *device.Manager { return b.mgr }

// Close releases this handle's reference to the underlying broker
// connection. Once every Device built from it has also been removed, the
// broker disconnects and its event loop exits.
func (b *MqttBroker) Close() { b.release() }
