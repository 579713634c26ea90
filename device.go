package tasmoctl

import (
	"context"
	"encoding/json"

	"github.com/northlane/tasmoctl/callbacks"
	"github.com/northlane/tasmoctl/capabilities"
	"github.com/northlane/tasmoctl/device"
	"github.com/northlane/tasmoctl/state"
	"github.com/northlane/tasmoctl/value"
)

// DeviceBuilder accumulates a device config before Build connects it.
type DeviceBuilder struct {
	mgr *device.Manager
	cfg device.Config
	err error
}

// Http starts building a device addressed directly over its HTTP
// web-console API, on a private single-device manager.
func Http(host string, port uint16) *DeviceBuilder {
	return &DeviceBuilder{mgr: device.NewManager(nil), cfg: device.HTTP(host, port)}
}

// Mqtt starts building a device addressed over MQTT through a one-off
// broker connection private to this device. Prefer MqttBroker.Device when
// several devices should share one broker session.
func Mqtt(brokerURL string, topic string) *DeviceBuilder {
	host, port, err := parseMqttURL(brokerURL)
	if err != nil {
		return &DeviceBuilder{mgr: device.NewManager(nil), err: err}
	}
	return &DeviceBuilder{mgr: device.NewManager(nil), cfg: device.MQTT(host, port, topic)}
}

// Https marks an HTTP-built device as using TLS. No-op on an MQTT config.
func (d *DeviceBuilder) Https() *DeviceBuilder {
	if d.cfg.Http != nil {
		cp := *d.cfg.Http
		cp.Https = true
		d.cfg.Http = &cp
	}
	return d
}

// Credentials attaches basic-auth (HTTP) or username/password (MQTT)
// credentials.
func (d *DeviceBuilder) Credentials(username, password string) *DeviceBuilder {
	d.cfg = d.cfg.WithCredentials(username, password)
	return d
}

// Capabilities attaches an explicit capability set, skipping Connect's
// Status 0 auto-detection probe.
func (d *DeviceBuilder) Capabilities(caps capabilities.Capabilities) *DeviceBuilder {
	d.cfg = d.cfg.WithCapabilities(caps)
	return d
}

// FriendlyName attaches a caller-supplied display label, later readable via
// Device.FriendlyName.
func (d *DeviceBuilder) FriendlyName(name string) *DeviceBuilder {
	d.cfg = d.cfg.WithFriendlyName(name)
	return d
}

// Build registers and connects the device, running the full initial-state
// acquisition for MQTT, and returns the Device handle together with its
// initial state snapshot.
func (d *DeviceBuilder) Build(ctx context.Context) (*Device, *state.Device, error) {
	if d.err != nil {
		return nil, nil, d.err
	}
	id, err := d.mgr.AddDevice(d.cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := d.mgr.Connect(ctx, id); err != nil {
		return nil, nil, err
	}
	st, _ := d.mgr.GetState(id)
	return &Device{mgr: d.mgr, id: id}, st, nil
}

// BuildWithoutProbe is Build but skips the initial-state acquisition for an
// MQTT device; the returned state snapshot starts empty and fills in as
// telemetry arrives. No-op modifier for an HTTP config, which never probes.
func (d *DeviceBuilder) BuildWithoutProbe(ctx context.Context) (*Device, *state.Device, error) {
	if d.err != nil {
		return nil, nil, d.err
	}
	d.cfg = d.cfg.WithoutInitialProbe()
	return d.Build(ctx)
}

// Device is a single-device facade over a device.Manager: the public
// command surface scoped to one Tasmota device, whichever transport it was
// built with.
type Device struct {
	mgr *device.Manager
	id  device.ID
}

// ID returns this device's manager-local identifier.
func (dv *Device) ID() string { return dv.id.String() }

// State returns a snapshot of the device's accumulated state.
func (dv *Device) State() *state.Device {
	s, _ := dv.mgr.GetState(dv.id)
	return s
}

// Watch returns the current state snapshot together with a channel that
// closes the next time the state changes.
func (dv *Device) Watch() (*state.Device, <-chan struct{}) {
	s, ch, _ := dv.mgr.WatchDevice(dv.id)
	return s, ch
}

// Capabilities returns the device's currently known feature set.
func (dv *Device) Capabilities() capabilities.Capabilities {
	c, _ := dv.mgr.Capabilities(dv.id)
	return c
}

// FriendlyName returns the caller-supplied display label, if any.
func (dv *Device) FriendlyName() string {
	n, _ := dv.mgr.FriendlyName(dv.id)
	return n
}

// ConnectionState returns the device's current lifecycle state.
func (dv *Device) ConnectionState() device.ConnectionState {
	cs, _ := dv.mgr.ConnectionState(dv.id)
	return cs
}

// Subscriptions returns the device's callback registry: OnPowerChanged,
// OnDimmerChanged, OnColorChanged, OnColorTempChanged, OnEnergyUpdated,
// OnConnected, OnDisconnected, OnStateChanged, and Unsubscribe.
func (dv *Device) Subscriptions() *callbacks.Registry {
	reg, _ := dv.mgr.Callbacks(dv.id)
	return reg
}

// Disconnect tears down the device's transport and returns it to
// Disconnected.
func (dv *Device) Disconnect() error { return dv.mgr.Disconnect(dv.id) }

// PowerOn sends "Power1 ON".
func (dv *Device) PowerOn(ctx context.Context) error { return dv.mgr.PowerOn(ctx, dv.id, 1) }

// PowerOff sends "Power1 OFF".
func (dv *Device) PowerOff(ctx context.Context) error { return dv.mgr.PowerOff(ctx, dv.id, 1) }

// PowerToggle sends "Power1 TOGGLE".
func (dv *Device) PowerToggle(ctx context.Context) error { return dv.mgr.PowerToggle(ctx, dv.id, 1) }

// SetPower sends "Power<index> ON" or "Power<index> OFF" for a specific
// relay, 1-indexed.
func (dv *Device) SetPower(ctx context.Context, index uint8, on bool) error {
	if on {
		return dv.mgr.PowerOn(ctx, dv.id, index)
	}
	return dv.mgr.PowerOff(ctx, dv.id, index)
}

// SetDimmer fails fast with CapabilityNotSupported unless the device has a
// dimmer.
func (dv *Device) SetDimmer(ctx context.Context, d value.Dimmer) error {
	return dv.mgr.SetDimmer(ctx, dv.id, d)
}

// SetColorTemperature fails fast with CapabilityNotSupported unless the
// device reports color-temperature support.
func (dv *Device) SetColorTemperature(ctx context.Context, ct value.ColorTemperature) error {
	return dv.mgr.SetColorTemp(ctx, dv.id, ct)
}

// SetHsbColor fails fast with CapabilityNotSupported unless the device
// reports RGB support.
func (dv *Device) SetHsbColor(ctx context.Context, c value.HsbColor) error {
	return dv.mgr.SetHsbColor(ctx, dv.id, c)
}

// SetRgbColor converts c to HSB and sends it; Tasmota lights take HSB on the
// wire, so the conversion happens here rather than on the device.
func (dv *Device) SetRgbColor(ctx context.Context, c value.RgbColor) error {
	return dv.mgr.SetHsbColor(ctx, dv.id, c.ToHsb())
}

// SetScheme selects one of Tasmota's built-in light animation schemes.
func (dv *Device) SetScheme(ctx context.Context, s value.Scheme) error {
	return dv.mgr.SetScheme(ctx, dv.id, s)
}

// SetWakeupDuration sets the wakeup dimmer ramp time.
func (dv *Device) SetWakeupDuration(ctx context.Context, d value.WakeupDuration) error {
	return dv.mgr.SetWakeupDuration(ctx, dv.id, d)
}

// EnableFade sends "Fade 1".
func (dv *Device) EnableFade(ctx context.Context) error { return dv.mgr.EnableFade(ctx, dv.id) }

// DisableFade sends "Fade 0".
func (dv *Device) DisableFade(ctx context.Context) error { return dv.mgr.DisableFade(ctx, dv.id) }

// SetFadeSpeed fails fast with CapabilityNotSupported unless the device is
// a light.
func (dv *Device) SetFadeSpeed(ctx context.Context, s value.FadeSpeed) error {
	return dv.mgr.SetFadeSpeed(ctx, dv.id, s)
}

// ResetEnergyTotal fails fast with CapabilityNotSupported unless the
// device reports energy monitoring. Deliberately leaves local state
// untouched - see command.EnergyReset3.
func (dv *Device) ResetEnergyTotal(ctx context.Context) error {
	return dv.mgr.ResetEnergyTotal(ctx, dv.id)
}

// Status issues "Status 0". For an HTTP device it returns the merged JSON
// response; for an MQTT device, whose message receiver Connect takes, the
// command is published fire-and-forget and the returned object is empty.
// Typed parsing of specific command-family response shapes is left to
// callers; tasmoctl only guarantees the merged object's keys.
func (dv *Device) Status(ctx context.Context) (map[string]json.RawMessage, error) {
	return dv.mgr.Status(ctx, dv.id)
}

// StatusAbbreviated issues the bare "Status" query and returns its JSON
// response; like Status, the object is empty for an MQTT device.
func (dv *Device) StatusAbbreviated(ctx context.Context) (map[string]json.RawMessage, error) {
	return dv.mgr.StatusAbbreviated(ctx, dv.id)
}

// Energy fails fast with CapabilityNotSupported unless the device reports
// energy monitoring, then issues "Status 10" and returns its JSON
// response; like Status, the object is empty for an MQTT device.
func (dv *Device) Energy(ctx context.Context) (map[string]json.RawMessage, error) {
	return dv.mgr.Energy(ctx, dv.id)
}
