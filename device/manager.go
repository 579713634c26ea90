// Package device is the single application-level entry point for managing
// any number of Tasmota devices: it owns a pool of shared MQTT brokers,
// constructs per-device transport clients, accumulates state, and fans
// connection/state events out on a bounded broadcast bus.
package device

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/northlane/tasmoctl/broker"
	"github.com/northlane/tasmoctl/callbacks"
	"github.com/northlane/tasmoctl/capabilities"
	"github.com/northlane/tasmoctl/client"
	"github.com/northlane/tasmoctl/command"
	"github.com/northlane/tasmoctl/response"
	"github.com/northlane/tasmoctl/state"
	"github.com/northlane/tasmoctl/tasmoerr"
	"github.com/northlane/tasmoctl/transport/httpx"
	"github.com/northlane/tasmoctl/value"
)

// initialStateTimeout and initialStateEnergyTimeout bound the connect
// sequence's two fixed waits; they are the only hard-coded timeouts in the
// connect path.
const (
	initialStateTimeout       = 2 * time.Second
	initialStateEnergyTimeout = 500 * time.Millisecond
)

type brokerEntry struct {
	b    *broker.Broker
	refs int
}

// Manager supervises N devices behind transports it owns: a pool of shared
// MQTT brokers (one TCP connection per host:port:username), direct HTTP
// clients, and a single broadcast Bus every device's events are republished
// on.
type Manager struct {
	log *slog.Logger

	mu      sync.RWMutex
	devices map[ID]*Managed

	brokerMu sync.Mutex
	brokers  map[string]*brokerEntry

	bus *Bus

	// connectBroker is broker.Connect; tests swap it to drive the pool
	// against a broker.NewForTesting instance.
	connectBroker func(broker.Config) (*broker.Broker, error)
}

// NewManager creates an empty device manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		log:           logger,
		devices:       make(map[ID]*Managed),
		brokers:       make(map[string]*brokerEntry),
		bus:           NewBus(),
		connectBroker: broker.Connect,
	}
}

// Subscribe returns a channel of every event this manager's devices
// produce. Capacity matches the bus default (256); a subscriber that falls
// behind silently misses events rather than blocking the manager.
func (mgr *Manager) Subscribe() <-chan Event { return mgr.bus.Subscribe() }

// Unsubscribe releases a channel returned by Subscribe.
func (mgr *Manager) Unsubscribe(ch <-chan Event) { mgr.bus.Unsubscribe(ch) }

// AddDevice registers a new device in the Disconnected state and publishes
// EventDeviceAdded. It does not connect.
func (mgr *Manager) AddDevice(cfg Config) (ID, error) {
	if err := cfg.Validate(); err != nil {
		return ID{}, err
	}

	id := NewID()
	m := newManaged(id, cfg)
	m.onEvent = mgr.bus.Publish
	if cfg.Capabilities != nil {
		m.SetCapabilities(*cfg.Capabilities)
	}

	mgr.mu.Lock()
	mgr.devices[id] = m
	mgr.mu.Unlock()

	mgr.bus.Publish(Event{Kind: EventDeviceAdded, ID: id})
	return id, nil
}

// RemoveDevice drops a device's transport and removes it from the manager,
// publishing EventDeviceRemoved. Reports false if id was unknown.
func (mgr *Manager) RemoveDevice(id ID) bool {
	mgr.mu.Lock()
	m, ok := mgr.devices[id]
	if ok {
		delete(mgr.devices, id)
	}
	mgr.mu.Unlock()
	if !ok {
		return false
	}

	m.clearTransport()
	if mqtt := m.Config().Mqtt; mqtt != nil {
		mgr.releaseBroker(brokerKey(mqtt.BrokerHost, mqtt.BrokerPort, mqtt.Username))
	}
	mgr.bus.Publish(Event{Kind: EventDeviceRemoved, ID: id})
	return true
}

func (mgr *Manager) get(id ID) (*Managed, bool) {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	m, ok := mgr.devices[id]
	return m, ok
}

func brokerKey(host string, port uint16, username string) string {
	return fmt.Sprintf("%s:%d:%s", host, port, username)
}

// acquireBroker returns the shared broker for (host, port, username),
// connecting a fresh one on first use and ref-counting subsequent callers.
func (mgr *Manager) acquireBroker(cfg MqttConfig) (*broker.Broker, error) {
	key := brokerKey(cfg.BrokerHost, cfg.BrokerPort, cfg.Username)

	mgr.brokerMu.Lock()
	defer mgr.brokerMu.Unlock()

	if entry, ok := mgr.brokers[key]; ok {
		entry.refs++
		return entry.b, nil
	}

	b, err := mgr.connectBroker(broker.Config{
		Host:     cfg.BrokerHost,
		Port:     cfg.BrokerPort,
		Username: cfg.Username,
		Password: cfg.Password,
		Log:      mgr.log,
	})
	if err != nil {
		return nil, err
	}
	mgr.brokers[key] = &brokerEntry{b: b, refs: 1}
	return b, nil
}

// releaseBroker drops one reference; once the last reference is gone the
// broker disconnects and the pool entry is freed.
func (mgr *Manager) releaseBroker(key string) {
	mgr.brokerMu.Lock()
	defer mgr.brokerMu.Unlock()

	entry, ok := mgr.brokers[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs > 0 {
		return
	}
	delete(mgr.brokers, key)
	if err := entry.b.Disconnect(); err != nil {
		mgr.log.Warn("error disconnecting pooled broker", "key", key, "error", err)
	}
}

// AcquireBrokerRef eagerly connects (or reuses) the pooled broker for cfg
// and returns a release function the caller must call exactly once to
// drop its reference. It lets a caller hold a broker connection open
// across a period with zero devices registered, surfacing connection
// failures up front rather than deferring them to the first AddDevice.
func (mgr *Manager) AcquireBrokerRef(cfg MqttConfig) (release func(), err error) {
	if _, err := mgr.acquireBroker(cfg); err != nil {
		return nil, err
	}
	key := brokerKey(cfg.BrokerHost, cfg.BrokerPort, cfg.Username)
	var once sync.Once
	return func() { once.Do(func() { mgr.releaseBroker(key) }) }, nil
}

// Connect brings a device from Disconnected to Connected: it builds the
// transport, wires callback routing, and (for MQTT) acquires initial state.
// A no-op if already Connected.
func (mgr *Manager) Connect(ctx context.Context, id ID) error {
	m, ok := mgr.get(id)
	if !ok {
		return tasmoerr.DeviceNotFound(id.String())
	}

	if cs, _ := m.ConnectionState(); cs == Connected {
		return nil
	}
	m.initialLoaded.Store(false)
	m.setConnectionState(Connecting, 0, nil)

	if err := mgr.connectTransport(ctx, m); err != nil {
		m.setConnectionState(Failed, 0, err)
		return err
	}

	m.MarkInitialStateLoaded()
	m.setConnectionState(Connected, 0, nil)
	return nil
}

func (mgr *Manager) connectTransport(ctx context.Context, m *Managed) error {
	cfg := m.Config()
	switch {
	case cfg.IsMqtt():
		return mgr.connectMqtt(ctx, m, *cfg.Mqtt)
	case cfg.IsHttp():
		return mgr.connectHttp(m, *cfg.Http)
	default:
		return tasmoerr.WrapDevice(tasmoerr.InvalidConfiguration("device config sets neither Mqtt nor Http"))
	}
}

func (mgr *Manager) connectHttp(m *Managed, cfg HttpConfig) error {
	c, err := httpx.New(httpx.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Https:    cfg.Https,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return err
	}
	m.setHttpClient(c)
	return nil
}

func (mgr *Manager) connectMqtt(ctx context.Context, m *Managed, cfg MqttConfig) error {
	b, err := mgr.acquireBroker(cfg)
	if err != nil {
		return err
	}

	c, err := client.New(b, cfg.Topic)
	if err != nil {
		mgr.releaseBroker(brokerKey(cfg.BrokerHost, cfg.BrokerPort, cfg.Username))
		return err
	}
	m.setMqttClient(c)

	// Take the response receiver immediately: the connect sequence's own
	// probes collect off it directly via response.Collect, and every other
	// command from here on (including during the probes) publishes
	// fire-and-forget through c.SendCommand while the router dispatch
	// wired in setMqttClient keeps applying state changes as they arrive.
	ch, _ := m.takeMessageReceiver()

	if cfg.SkipInitialProbe {
		m.startDraining(ch)
		return nil
	}

	if m.Config().Capabilities == nil {
		mgr.detectCapabilities(ctx, m, c, ch)
	}

	mgr.acquireInitialState(ctx, m, c)
	m.startDraining(ch)
	return nil
}

// detectCapabilities issues a Status 0 probe and runs
// capabilities.FromStatus's module/friendly-name/sensor-key heuristics on
// the reply. Best-effort: a failed probe just leaves the default
// capability set in place.
func (mgr *Manager) detectCapabilities(ctx context.Context, m *Managed, c *client.Client, ch <-chan response.Message) {
	probeCtx, cancel := context.WithTimeout(ctx, initialStateTimeout)
	defer cancel()

	cmd := command.StatusAll()
	if _, err := c.SendCommand(probeCtx, cmd); err != nil {
		mgr.log.Debug("capability probe publish failed, using default capabilities", "device", c.DeviceTopic(), "error", err)
		return
	}

	resp, err := response.Collect(probeCtx, cmd.Response, ch)
	if err != nil {
		mgr.log.Debug("capability probe timed out, using default capabilities", "device", c.DeviceTopic(), "error", err)
		return
	}

	probe, err := capabilities.ParseStatusProbe(resp)
	if err != nil {
		mgr.log.Debug("capability probe response unparsable", "device", c.DeviceTopic(), "error", err)
		return
	}
	m.SetCapabilities(capabilities.FromStatus(probe))
	m.DispatchSystemInfo(probe.SystemInfo())
}

// acquireInitialState fires State and waits on the watch channel up to 2s;
// if energy monitoring is known, it also fires Status 10 and waits up to
// 500ms more. Both waits tolerate a timeout - state remains partially
// populated and is filled in by subsequent telemetry.
func (mgr *Manager) acquireInitialState(ctx context.Context, m *Managed, c *client.Client) {
	_, changeCh := m.Watch()
	_, _ = c.SendCommand(ctx, command.State())
	waitForChange(ctx, changeCh, initialStateTimeout)

	if m.Capabilities().HasEnergyMonitoring() {
		_, changeCh = m.Watch()
		_, _ = c.SendCommand(ctx, command.Status(10))
		waitForChange(ctx, changeCh, initialStateEnergyTimeout)
	}
}

// waitForChange blocks until ch closes, ctx is cancelled, or timeout
// elapses, whichever comes first.
func waitForChange(ctx context.Context, ch <-chan struct{}, timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
	case <-timer.C:
	case <-ctx.Done():
	}
}

// Disconnect tears down a device's transport and transitions it back to
// Disconnected, publishing EventConnectionChanged.
func (mgr *Manager) Disconnect(id ID) error {
	m, ok := mgr.get(id)
	if !ok {
		return tasmoerr.DeviceNotFound(id.String())
	}
	m.clearTransport()
	if mqtt := m.Config().Mqtt; mqtt != nil {
		mgr.releaseBroker(brokerKey(mqtt.BrokerHost, mqtt.BrokerPort, mqtt.Username))
	}
	m.setConnectionState(Disconnected, 0, nil)
	return nil
}

// GetState returns a snapshot of a device's accumulated state.
func (mgr *Manager) GetState(id ID) (*state.Device, bool) {
	m, ok := mgr.get(id)
	if !ok {
		return nil, false
	}
	return m.State(), true
}

// WatchDevice returns a device's current state snapshot plus a channel that
// closes on the next change.
func (mgr *Manager) WatchDevice(id ID) (*state.Device, <-chan struct{}, bool) {
	m, ok := mgr.get(id)
	if !ok {
		return nil, nil, false
	}
	s, ch := m.Watch()
	return s, ch, true
}

// Capabilities returns a device's currently known feature set.
func (mgr *Manager) Capabilities(id ID) (capabilities.Capabilities, bool) {
	m, ok := mgr.get(id)
	if !ok {
		return capabilities.Capabilities{}, false
	}
	return m.Capabilities(), true
}

// Callbacks returns a device's subscription registry, for registering
// on_power_changed/on_state_changed/etc callbacks directly rather than
// reading the broadcast event bus.
func (mgr *Manager) Callbacks(id ID) (*callbacks.Registry, bool) {
	m, ok := mgr.get(id)
	if !ok {
		return nil, false
	}
	return m.Callbacks(), true
}

// FriendlyName returns the caller-supplied display name for a device, if
// one was set on its Config.
func (mgr *Manager) FriendlyName(id ID) (string, bool) {
	m, ok := mgr.get(id)
	if !ok {
		return "", false
	}
	return m.Config().FriendlyName, true
}

// ConnectionState returns a device's current lifecycle state.
func (mgr *Manager) ConnectionState(id ID) (ConnectionState, bool) {
	m, ok := mgr.get(id)
	if !ok {
		return Disconnected, false
	}
	cs, _ := m.ConnectionState()
	return cs, true
}

func (mgr *Manager) sendAndApply(ctx context.Context, id ID, cmd command.Command) error {
	m, ok := mgr.get(id)
	if !ok {
		return tasmoerr.DeviceNotFound(id.String())
	}

	var publish func(context.Context, command.Command) error
	switch {
	case m.MqttClient() != nil:
		c := m.MqttClient()
		publish = func(ctx context.Context, cmd command.Command) error { _, err := c.SendCommand(ctx, cmd); return err }
	case m.HttpClient() != nil:
		c := m.HttpClient()
		publish = func(ctx context.Context, cmd command.Command) error { _, err := c.Send(ctx, cmd.Suffix, cmd.Payload); return err }
	default:
		return tasmoerr.NotConnected(id.String())
	}
	return publish(ctx, cmd)
}

// PowerOn sends "Power<n> ON" to a connected device.
func (mgr *Manager) PowerOn(ctx context.Context, id ID, index uint8) error {
	return mgr.sendAndApply(ctx, id, command.PowerOn(index))
}

// PowerOff sends "Power<n> OFF" to a connected device.
func (mgr *Manager) PowerOff(ctx context.Context, id ID, index uint8) error {
	return mgr.sendAndApply(ctx, id, command.PowerOff(index))
}

// PowerToggle sends "Power<n> TOGGLE" to a connected device.
func (mgr *Manager) PowerToggle(ctx context.Context, id ID, index uint8) error {
	return mgr.sendAndApply(ctx, id, command.PowerToggle(index))
}

// SetDimmer fails fast with CapabilityNotSupported if the device's known
// capabilities don't include a dimmer, without issuing any network command.
func (mgr *Manager) SetDimmer(ctx context.Context, id ID, d value.Dimmer) error {
	m, ok := mgr.get(id)
	if !ok {
		return tasmoerr.DeviceNotFound(id.String())
	}
	if !m.Capabilities().Dimmer {
		return tasmoerr.CapabilityNotSupported(id.String(), "dimmer")
	}
	return mgr.sendAndApply(ctx, id, command.Dimmer(d))
}

// SetHsbColor fails fast with CapabilityNotSupported unless the device
// reports RGB support.
func (mgr *Manager) SetHsbColor(ctx context.Context, id ID, c value.HsbColor) error {
	m, ok := mgr.get(id)
	if !ok {
		return tasmoerr.DeviceNotFound(id.String())
	}
	if !m.Capabilities().RGB {
		return tasmoerr.CapabilityNotSupported(id.String(), "rgb")
	}
	return mgr.sendAndApply(ctx, id, command.HSBColor(c))
}

// SetColorTemp fails fast with CapabilityNotSupported unless the device
// reports color-temperature support.
func (mgr *Manager) SetColorTemp(ctx context.Context, id ID, ct value.ColorTemperature) error {
	m, ok := mgr.get(id)
	if !ok {
		return tasmoerr.DeviceNotFound(id.String())
	}
	if !m.Capabilities().ColorTemp {
		return tasmoerr.CapabilityNotSupported(id.String(), "color_temp")
	}
	return mgr.sendAndApply(ctx, id, command.ColorTemperature(ct))
}

// ResetEnergyTotal fails fast with CapabilityNotSupported unless the device
// reports energy monitoring. Deliberately does not mutate local state - see
// command.EnergyReset3.
func (mgr *Manager) ResetEnergyTotal(ctx context.Context, id ID) error {
	m, ok := mgr.get(id)
	if !ok {
		return tasmoerr.DeviceNotFound(id.String())
	}
	if !m.Capabilities().HasEnergyMonitoring() {
		return tasmoerr.CapabilityNotSupported(id.String(), "energy")
	}
	return mgr.sendAndApply(ctx, id, command.EnergyReset3())
}

// EnableFade sends "Fade 1".
func (mgr *Manager) EnableFade(ctx context.Context, id ID) error {
	return mgr.sendAndApply(ctx, id, command.Fade(true))
}

// DisableFade sends "Fade 0".
func (mgr *Manager) DisableFade(ctx context.Context, id ID) error {
	return mgr.sendAndApply(ctx, id, command.Fade(false))
}

// SetFadeSpeed fails fast with CapabilityNotSupported unless the device is a
// light (fade only applies to dimmer/RGB/CCT devices).
func (mgr *Manager) SetFadeSpeed(ctx context.Context, id ID, s value.FadeSpeed) error {
	m, ok := mgr.get(id)
	if !ok {
		return tasmoerr.DeviceNotFound(id.String())
	}
	if !m.Capabilities().IsLight() {
		return tasmoerr.CapabilityNotSupported(id.String(), "fade")
	}
	return mgr.sendAndApply(ctx, id, command.FadeSpeed(s))
}

// SetScheme fails fast with CapabilityNotSupported unless the device is a
// light.
func (mgr *Manager) SetScheme(ctx context.Context, id ID, s value.Scheme) error {
	m, ok := mgr.get(id)
	if !ok {
		return tasmoerr.DeviceNotFound(id.String())
	}
	if !m.Capabilities().IsLight() {
		return tasmoerr.CapabilityNotSupported(id.String(), "scheme")
	}
	return mgr.sendAndApply(ctx, id, command.Scheme(s))
}

// SetWakeupDuration fails fast with CapabilityNotSupported unless the device
// is a light.
func (mgr *Manager) SetWakeupDuration(ctx context.Context, id ID, d value.WakeupDuration) error {
	m, ok := mgr.get(id)
	if !ok {
		return tasmoerr.DeviceNotFound(id.String())
	}
	if !m.Capabilities().IsLight() {
		return tasmoerr.CapabilityNotSupported(id.String(), "wakeup")
	}
	return mgr.sendAndApply(ctx, id, command.WakeupDuration(d))
}

func (mgr *Manager) sendForResponse(ctx context.Context, id ID, cmd command.Command) (map[string]json.RawMessage, error) {
	m, ok := mgr.get(id)
	if !ok {
		return nil, tasmoerr.DeviceNotFound(id.String())
	}
	switch {
	case m.MqttClient() != nil:
		return m.MqttClient().SendCommand(ctx, cmd)
	case m.HttpClient() != nil:
		return m.HttpClient().Send(ctx, cmd.Suffix, cmd.Payload)
	default:
		return nil, tasmoerr.NotConnected(id.String())
	}
}

// Status issues "Status 0" and returns its merged JSON response. Once a
// device's message receiver has been taken (true for every MQTT device
// after Connect), SendCommand publishes fire-and-forget and this returns
// an empty object immediately; GetState reflects the same data as it
// arrives via telemetry instead.
func (mgr *Manager) Status(ctx context.Context, id ID) (map[string]json.RawMessage, error) {
	return mgr.sendForResponse(ctx, id, command.StatusAll())
}

// StatusAbbreviated issues the bare "Status" query and returns its JSON
// response; like Status, the object is empty for an MQTT device.
func (mgr *Manager) StatusAbbreviated(ctx context.Context, id ID) (map[string]json.RawMessage, error) {
	return mgr.sendForResponse(ctx, id, command.StatusAbbreviated())
}

// Energy fails fast with CapabilityNotSupported unless the device reports
// energy monitoring, then issues "Status 10" and returns its JSON response
// (the same probe the connect sequence uses during initial-state
// acquisition); like Status, the object is empty for an MQTT device.
func (mgr *Manager) Energy(ctx context.Context, id ID) (map[string]json.RawMessage, error) {
	m, ok := mgr.get(id)
	if !ok {
		return nil, tasmoerr.DeviceNotFound(id.String())
	}
	if !m.Capabilities().HasEnergyMonitoring() {
		return nil, tasmoerr.CapabilityNotSupported(id.String(), "energy")
	}
	return mgr.sendForResponse(ctx, id, command.Status(10))
}

// DeviceCount returns the number of devices currently registered.
func (mgr *Manager) DeviceCount() int {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	return len(mgr.devices)
}

// Discover broadcasts cmnd/tasmotas/Status on the broker addressed by
// brokerCfg, listens for timeout for device announcements, and adds and
// connects one Managed device per discovered topic. A device that fails to
// add or connect is logged and skipped rather than failing the whole
// discovery, matching the scan-and-best-effort shape the rest of the
// connect path already uses for optional probes.
func (mgr *Manager) Discover(ctx context.Context, brokerCfg MqttConfig, timeout time.Duration) ([]ID, error) {
	b, err := mgr.acquireBroker(brokerCfg)
	if err != nil {
		return nil, err
	}
	key := brokerKey(brokerCfg.BrokerHost, brokerCfg.BrokerPort, brokerCfg.Username)
	defer mgr.releaseBroker(key)

	topics, err := b.DiscoverDevices(timeout)
	if err != nil {
		return nil, err
	}

	ids := make([]ID, 0, len(topics))
	for _, topic := range topics {
		cfg := MQTT(brokerCfg.BrokerHost, brokerCfg.BrokerPort, topic).
			WithCredentials(brokerCfg.Username, brokerCfg.Password)

		id, err := mgr.AddDevice(cfg)
		if err != nil {
			mgr.log.Warn("discovery: failed to add device", "topic", topic, "error", err)
			continue
		}
		if err := mgr.Connect(ctx, id); err != nil {
			mgr.log.Warn("discovery: failed to connect device", "topic", topic, "error", err)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
