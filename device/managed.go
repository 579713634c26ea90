package device

import (
	"sync"
	"sync/atomic"

	"github.com/northlane/tasmoctl/callbacks"
	"github.com/northlane/tasmoctl/capabilities"
	"github.com/northlane/tasmoctl/client"
	"github.com/northlane/tasmoctl/response"
	"github.com/northlane/tasmoctl/state"
	"github.com/northlane/tasmoctl/transport/httpx"
)

// Managed is one device under a Manager's supervision: its addressing
// config, accumulated state, capabilities, and the transport handle
// (exactly one of mqttClient or httpClient) currently serving it.
//
// State-change notification uses a channel that is closed and replaced on
// every applied change. A waiter holds the channel from a snapshot taken
// under the lock, then selects on it; a closed channel means "a change
// happened since your snapshot, reread it."
type Managed struct {
	id     ID
	config Config

	mu       sync.RWMutex
	state    *state.Device
	changeCh chan struct{}

	caps capabilities.Capabilities

	// initialLoaded: while false, Dispatch still mutates state and wakes
	// Watch callers (connect's own probes rely on that), but suppresses
	// callback and event-bus notification so the telemetry flood used to
	// fill in initial state doesn't surface as a wall of StateChanged
	// events.
	initialLoaded atomic.Bool

	connMu           sync.RWMutex
	connState        ConnectionState
	reconnectAttempt int

	callbacks *callbacks.Registry

	transportMu  sync.RWMutex
	mqttClient   *client.Client
	httpClient   *httpx.Client
	consumerStop chan struct{}

	// onEvent, when set by the owning Manager, receives every Event this
	// device produces so it can be republished on the manager's bus.
	onEvent func(Event)
}

// newManaged constructs a Managed in the Disconnected state with empty
// state and default capabilities.
func newManaged(id ID, cfg Config) *Managed {
	return &Managed{
		id:        id,
		config:    cfg,
		state:     state.New(),
		changeCh:  make(chan struct{}),
		caps:      capabilities.Default(),
		connState: Disconnected,
		callbacks: callbacks.New(),
	}
}

// ID returns this device's manager-local identifier.
func (m *Managed) ID() ID { return m.id }

// Config returns the addressing config this device was created with.
func (m *Managed) Config() Config { return m.config }

// Callbacks returns the callback registry callers subscribe to for this
// device's state changes and connection transitions.
func (m *Managed) Callbacks() *callbacks.Registry { return m.callbacks }

// Capabilities returns the device's currently known feature set.
func (m *Managed) Capabilities() capabilities.Capabilities {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	return m.caps
}

// SetCapabilities replaces the device's known feature set, typically after
// a Status 0 capability probe.
func (m *Managed) SetCapabilities(caps capabilities.Capabilities) {
	m.connMu.Lock()
	m.caps = caps
	m.connMu.Unlock()
}

// ConnectionState returns the device's current lifecycle state and the
// reconnect attempt count. Nothing in this package counts reconnection
// attempts, so the count is always 0.
func (m *Managed) ConnectionState() (ConnectionState, int) {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	return m.connState, m.reconnectAttempt
}

// setConnectionState updates lifecycle state and publishes
// EventConnectionChanged. Stores attempt as given; every caller passes 0.
func (m *Managed) setConnectionState(s ConnectionState, attempt int, err error) {
	m.connMu.Lock()
	m.connState = s
	m.reconnectAttempt = attempt
	m.connMu.Unlock()

	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	ev := Event{
		Kind:           EventConnectionChanged,
		ID:             m.id,
		Connected:      s == Connected,
		Error:          errStr,
		ReconnectCount: attempt,
	}
	if s == Connected {
		// The manager only flips to Connected after the initial-state
		// probes finish, so the snapshot here is the initial state.
		ev.NewState = m.State()
	}
	m.publish(ev)

	switch s {
	case Connected:
		m.callbacks.DispatchConnected()
	case Disconnected, Failed:
		m.callbacks.DispatchDisconnected()
	case Reconnecting:
	}
}

// setMqttClient installs the shared MQTT client used to address this
// device and registers this Managed as the client's callback sink. The
// connect sequence calls takeMessageReceiver right after this, before its
// synchronous probes, so those probes collect through response.Collect and
// Client.SendCommand is fire-and-forget from then on.
func (m *Managed) setMqttClient(c *client.Client) {
	m.transportMu.Lock()
	m.mqttClient = c
	m.httpClient = nil
	m.transportMu.Unlock()

	c.Router().Register(c.DeviceTopic(), m, m)
}

// takeMessageReceiver switches the device's Client into fully event-driven
// mode: SendCommand publishes fire-and-forget from here on. The caller owns
// the returned channel - typically to run the connect sequence's probes
// through response.Collect directly - until it hands the channel to
// startDraining.
func (m *Managed) takeMessageReceiver() (<-chan response.Message, bool) {
	m.transportMu.Lock()
	c := m.mqttClient
	m.transportMu.Unlock()
	if c == nil {
		return nil, false
	}
	return c.TakeMessageReceiver()
}

// startDraining discards every message on ch for the remaining lifetime of
// the transport, so the broker's bounded response buffer never fills and
// starts dropping with warnings once nothing else is reading it. State
// updates keep flowing through the router dispatch wired in setMqttClient
// regardless of whether this channel is drained.
func (m *Managed) startDraining(ch <-chan response.Message) {
	if ch == nil {
		return
	}
	stop := make(chan struct{})
	m.transportMu.Lock()
	m.consumerStop = stop
	m.transportMu.Unlock()
	go drainResponses(ch, stop)
}

func drainResponses(ch <-chan response.Message, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
		}
	}
}

// setHttpClient installs the direct HTTP client used to address this
// device.
func (m *Managed) setHttpClient(c *httpx.Client) {
	m.transportMu.Lock()
	m.httpClient = c
	m.mqttClient = nil
	m.transportMu.Unlock()
}

// clearTransport drops the transport handle, e.g. on Disconnect.
func (m *Managed) clearTransport() {
	m.transportMu.Lock()
	c := m.mqttClient
	stop := m.consumerStop
	m.mqttClient = nil
	m.httpClient = nil
	m.consumerStop = nil
	m.transportMu.Unlock()
	if stop != nil {
		close(stop)
	}
	if c != nil {
		c.Router().Unregister(c.DeviceTopic())
		c.Close()
	}
}

// MqttClient returns the shared MQTT facade addressing this device, or nil
// if it's addressed over HTTP or not yet connected.
func (m *Managed) MqttClient() *client.Client {
	m.transportMu.RLock()
	defer m.transportMu.RUnlock()
	return m.mqttClient
}

// HttpClient returns the direct HTTP facade addressing this device, or nil
// if it's addressed over MQTT or not yet connected.
func (m *Managed) HttpClient() *httpx.Client {
	m.transportMu.RLock()
	defer m.transportMu.RUnlock()
	return m.httpClient
}

// State returns a snapshot of the accumulated device state, decoupled from
// the copy the dispatch path keeps mutating.
func (m *Managed) State() *state.Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone()
}

// Watch returns the current state snapshot together with a channel that
// closes the next time the state changes. Compare the snapshot against a
// fresh State() call after the channel closes to see what changed.
func (m *Managed) Watch() (*state.Device, <-chan struct{}) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone(), m.changeCh
}

// Dispatch applies an incoming state change, notifies watchers, and - once
// initial state has been loaded - fans the change out to both per-kind and
// any-change callbacks. It implements router.Callbacks structurally.
func (m *Managed) Dispatch(change state.Change) {
	m.mu.Lock()
	applied := m.state.Apply(change)
	var notifyCh chan struct{}
	if applied {
		notifyCh = m.changeCh
		m.changeCh = make(chan struct{})
	}
	snapshot := m.state.Clone()
	m.mu.Unlock()

	if notifyCh != nil {
		close(notifyCh)
	}
	if !applied || !m.initialLoaded.Load() {
		return
	}

	m.callbacks.Dispatch(change)
	m.publish(Event{Kind: EventStateChanged, ID: m.id, Change: change, NewState: snapshot})
}

// MarkInitialStateLoaded flips the initial-state-loaded bit. Called by the
// manager's connect sequence once its probes finish, regardless of how much
// state they actually recovered.
func (m *Managed) MarkInitialStateLoaded() {
	m.initialLoaded.Store(true)
}

// InitialStateLoaded reports whether this device has completed its
// connect-time initial-state acquisition.
func (m *Managed) InitialStateLoaded() bool {
	return m.initialLoaded.Load()
}

// DispatchDisconnected implements router.Callbacks: the shared broker lost
// its connection. Fires the OnDisconnected callbacks directly rather than
// relying on setConnectionState's switch, which only reacts to
// Disconnected/Failed - Reconnecting would otherwise be a silent no-op for
// the callback registry.
func (m *Managed) DispatchDisconnected() {
	m.setConnectionState(Reconnecting, 0, nil)
	m.callbacks.DispatchDisconnected()
}

// DispatchReconnected implements router.Callbacks: the shared broker
// reconnected and resubscribed this device's topics. This is deliberately
// not routed through setConnectionState(Connected, ...): that would also
// trigger OnConnected via its switch, and OnConnected is reserved for the
// initial connect's own Manager.Connect call, which has acquired the
// initial state a reconnect never re-queries.
func (m *Managed) DispatchReconnected() {
	m.connMu.Lock()
	m.connState = Connected
	m.reconnectAttempt = 0
	m.connMu.Unlock()

	m.publish(Event{Kind: EventConnectionChanged, ID: m.id, Connected: true})
	m.callbacks.DispatchReconnected()
}

// DispatchSystemInfo implements router.Callbacks: merges diagnostic data -
// uptime, Wi-Fi, free heap - into the accumulated state. Per SystemInfo's own
// contract this never counts as a state change, so unlike Dispatch it never
// fires callbacks or publishes EventStateChanged, and it applies even before
// initial state has finished loading.
func (m *Managed) DispatchSystemInfo(info state.SystemInfo) {
	m.mu.Lock()
	m.state.UpdateSystemInfo(info)
	m.mu.Unlock()
}

func (m *Managed) publish(e Event) {
	if m.onEvent != nil {
		m.onEvent(e)
	}
}
