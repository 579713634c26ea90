// Package router dispatches incoming MQTT messages to the callback registry
// of whichever device owns the topic the message arrived on.
package router

import (
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/northlane/tasmoctl/state"
	"github.com/northlane/tasmoctl/telemetry"
	"github.com/northlane/tasmoctl/value"
)

// Callbacks receives dispatched state changes and connection notifications
// for a single device. Implementations must be safe for concurrent use.
type Callbacks interface {
	Dispatch(change state.Change)
	DispatchDisconnected()
	DispatchReconnected()
	DispatchSystemInfo(info state.SystemInfo)
}

// Go has no native weak reference, so a registered device's callbacks are
// held behind a slot guarded by a generation counter. When the owning
// device is garbage collected, a finalizer clears the slot, and
// Route/Cleanup treat a cleared slot as stale: the topic is silently
// unroutable until something registers it again.
type slot struct {
	mu         sync.Mutex
	generation uint64
	callbacks  Callbacks
}

func (s *slot) get() (Callbacks, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callbacks, s.callbacks != nil
}

func (s *slot) clear(generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == generation {
		s.callbacks = nil
	}
}

// Router routes MQTT messages to device callback registries by device
// topic.
type Router struct {
	mu   sync.RWMutex
	subs map[string]*slot

	generation atomic.Uint64

	Log *slog.Logger
}

func New() *Router {
	return &Router{subs: make(map[string]*slot), Log: slog.Default()}
}

// Register associates device_topic with callbacks. A previous registration
// for the same topic is replaced. The finalizer set here clears the slot
// once owner is garbage collected, after which Route treats the topic as
// stale. The slot holds callbacks strongly, so when callbacks is owner
// itself (as device.Managed registers) owner stays reachable through the
// router and the entry goes away only through Unregister or a later
// Register of the same topic. The runtime does not finalize zero-size
// owners, so their slots never self-clear.
func (r *Router) Register(deviceTopic string, owner any, callbacks Callbacks) {
	gen := r.generation.Add(1)
	s := &slot{generation: gen, callbacks: callbacks}

	runtime.SetFinalizer(owner, nil)
	runtime.SetFinalizer(owner, func(any) {
		s.clear(gen)
	})

	r.mu.Lock()
	r.subs[deviceTopic] = s
	r.mu.Unlock()

	r.log().Debug("registered device for routing", "topic", deviceTopic)
}

// Unregister removes a device topic's routing entry. Returns true if it was
// previously registered.
func (r *Router) Unregister(deviceTopic string) bool {
	r.mu.Lock()
	_, existed := r.subs[deviceTopic]
	delete(r.subs, deviceTopic)
	r.mu.Unlock()
	if existed {
		r.log().Debug("unregistered device from routing", "topic", deviceTopic)
	}
	return existed
}

// Route dispatches an incoming MQTT message to the registered device, if
// any. Returns true if the message was routed.
func (r *Router) Route(topic string, payload []byte) bool {
	parsed, ok := parseTopic(topic)
	if !ok {
		return false
	}

	r.mu.RLock()
	s, ok := r.subs[parsed.deviceTopic]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	callbacks, alive := s.get()
	if !alive {
		return false
	}

	dispatchMessage(callbacks, parsed, payload)
	return true
}

// Cleanup removes entries whose callbacks have been cleared by the
// finalizer. It is safe to call periodically; Route already tolerates stale
// entries on its own.
func (r *Router) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for topic, s := range r.subs {
		if _, alive := s.get(); !alive {
			delete(r.subs, topic)
			r.log().Debug("cleaning up dropped device", "topic", topic)
		}
	}
}

// DispatchDisconnectedAll notifies every live registration that the broker
// connection was lost. Called by the broker once per disconnect, not per
// MQTT message.
func (r *Router) DispatchDisconnectedAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.subs {
		if cb, alive := s.get(); alive {
			cb.DispatchDisconnected()
		}
	}
}

// DispatchReconnectedAll notifies every live registration that the broker
// connection was restored and topics have been resubscribed.
func (r *Router) DispatchReconnectedAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.subs {
		if cb, alive := s.get(); alive {
			cb.DispatchReconnected()
		}
	}
}

// DeviceCount returns the number of registered topics, alive or not.
func (r *Router) DeviceCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// ActiveDeviceCount returns the number of topics whose callbacks are still
// alive.
func (r *Router) ActiveDeviceCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, s := range r.subs {
		if _, alive := s.get(); alive {
			n++
		}
	}
	return n
}

func (r *Router) log() *slog.Logger {
	if r.Log == nil {
		return slog.Default()
	}
	return r.Log
}

type parsedTopic struct {
	prefix      string
	deviceTopic string
	subtopic    string
}

// parseTopic splits "prefix/device_topic/subtopic[/...]" into its first
// three segments.
func parseTopic(topic string) (parsedTopic, bool) {
	parts := strings.SplitN(topic, "/", 3)
	if len(parts) < 3 {
		return parsedTopic{}, false
	}
	return parsedTopic{prefix: parts[0], deviceTopic: parts[1], subtopic: parts[2]}, true
}

func dispatchMessage(cb Callbacks, parsed parsedTopic, payload []byte) {
	switch {
	case parsed.prefix == "stat" && strings.HasPrefix(parsed.subtopic, "POWER"):
		if change, ok := parsePowerTopic(parsed.subtopic, string(payload)); ok {
			cb.Dispatch(change)
		}

	case parsed.prefix == "stat" && parsed.subtopic == "RESULT":
		for _, change := range parseResultPayload(payload) {
			cb.Dispatch(change)
		}

	case parsed.prefix == "tele" && parsed.subtopic == "STATE":
		parsedState, err := telemetry.ParseState(payload)
		if err != nil {
			return
		}
		for _, change := range parsedState.ToStateChanges() {
			cb.Dispatch(change)
		}
		cb.DispatchSystemInfo(parsedState.ToSystemInfo())

	case parsed.prefix == "tele" && parsed.subtopic == "SENSOR":
		sensor, err := telemetry.ParseSensor(payload)
		if err != nil {
			return
		}
		for _, change := range sensor.ToStateChanges() {
			cb.Dispatch(change)
		}
		cb.DispatchSystemInfo(sensor.ToSystemInfo())

	case parsed.prefix == "tele" && parsed.subtopic == "LWT":
		switch string(payload) {
		case "Online":
			// Connection + initial state reacquisition is driven by the
			// device manager's own query, not by the router.
		case "Offline":
			cb.DispatchDisconnected()
		}
	}
}

func parsePowerTopic(subtopic, payload string) (state.Change, bool) {
	var index uint8
	if subtopic == "POWER" {
		index = 1
	} else {
		n, err := strconv.Atoi(strings.TrimPrefix(subtopic, "POWER"))
		if err != nil {
			return state.Change{}, false
		}
		index = uint8(n)
	}

	p, err := value.ParsePowerState(payload)
	if err != nil {
		return state.Change{}, false
	}
	return state.Power(index, p), true
}

func parseResultPayload(payload []byte) []state.Change {
	parsed, err := telemetry.ParseState(payload)
	if err != nil {
		return nil
	}
	return parsed.ToStateChanges()
}
