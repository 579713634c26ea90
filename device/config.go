package device

import (
	"github.com/northlane/tasmoctl/capabilities"
	"github.com/northlane/tasmoctl/tasmoerr"
)

// MqttConfig addresses a device over a shared broker connection.
type MqttConfig struct {
	BrokerHost string
	BrokerPort uint16
	Username   string
	Password   string
	Topic      string

	// SkipInitialProbe builds the device without connect-time initial-state
	// acquisition: Connect subscribes and returns immediately, leaving
	// state empty until the first telemetry message arrives.
	SkipInitialProbe bool
}

// HttpConfig addresses a device directly over its web-console HTTP API.
type HttpConfig struct {
	Host     string
	Port     uint16
	Https    bool
	Username string
	Password string
}

// Config is the immutable-after-creation tagged union of transports a
// managed device can be built with: exactly one of Mqtt or Http is set.
type Config struct {
	Mqtt *MqttConfig
	Http *HttpConfig

	// Capabilities, if set, skips the Status 0 auto-detection probe during
	// Connect and uses this feature set as-is.
	Capabilities *capabilities.Capabilities

	// FriendlyName is an optional caller-supplied display label, surfaced
	// back through Manager.FriendlyName. Tasmoctl never reads it from the
	// device itself (see capabilities.DeviceStatus.FriendlyName, which
	// feeds relay-count detection instead).
	FriendlyName string
}

// IsMqtt reports whether this config addresses the device over MQTT.
func (c Config) IsMqtt() bool { return c.Mqtt != nil }

// IsHttp reports whether this config addresses the device over HTTP.
func (c Config) IsHttp() bool { return c.Http != nil }

// Validate rejects a config that names neither or both transports.
func (c Config) Validate() error {
	if c.Mqtt == nil && c.Http == nil {
		return tasmoerr.WrapDevice(tasmoerr.InvalidConfiguration("device config must set exactly one of Mqtt or Http"))
	}
	if c.Mqtt != nil && c.Http != nil {
		return tasmoerr.WrapDevice(tasmoerr.InvalidConfiguration("device config cannot set both Mqtt and Http"))
	}
	if c.Mqtt != nil && c.Mqtt.Topic == "" {
		return tasmoerr.WrapDevice(tasmoerr.InvalidConfiguration("mqtt device config requires a device topic"))
	}
	if c.Http != nil && c.Http.Host == "" {
		return tasmoerr.WrapDevice(tasmoerr.InvalidConfiguration("http device config requires a host"))
	}
	return nil
}

// MQTT builds a Config addressing a device over MQTT through the shared
// broker at host:port.
func MQTT(host string, port uint16, topic string) Config {
	return Config{Mqtt: &MqttConfig{BrokerHost: host, BrokerPort: port, Topic: topic}}
}

// HTTP builds a Config addressing a device directly over its HTTP API.
func HTTP(host string, port uint16) Config {
	return Config{Http: &HttpConfig{Host: host, Port: port}}
}

// WithCredentials attaches broker or device credentials to a Config,
// returning the modified copy.
func (c Config) WithCredentials(username, password string) Config {
	switch {
	case c.Mqtt != nil:
		cp := *c.Mqtt
		cp.Username, cp.Password = username, password
		c.Mqtt = &cp
	case c.Http != nil:
		cp := *c.Http
		cp.Username, cp.Password = username, password
		c.Http = &cp
	}
	return c
}

// Topic returns the device topic for an MQTT config, empty otherwise.
func (c Config) Topic() string {
	if c.Mqtt == nil {
		return ""
	}
	return c.Mqtt.Topic
}

// WithCapabilities attaches an explicit capability set, bypassing
// auto-detection for this device.
func (c Config) WithCapabilities(caps capabilities.Capabilities) Config {
	c.Capabilities = &caps
	return c
}

// WithFriendlyName attaches a caller-supplied display label.
func (c Config) WithFriendlyName(name string) Config {
	c.FriendlyName = name
	return c
}

// WithoutInitialProbe skips connect-time initial-state acquisition for an
// MQTT device; it is a no-op on an HTTP config.
func (c Config) WithoutInitialProbe() Config {
	if c.Mqtt != nil {
		cp := *c.Mqtt
		cp.SkipInitialProbe = true
		c.Mqtt = &cp
	}
	return c
}
