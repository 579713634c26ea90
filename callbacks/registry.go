// Package callbacks implements the per-device subscription registry: a map
// from opaque SubscriptionId to callback, kept separately for each of the
// ten event kinds a device can be watched for.
package callbacks

import (
	"sync"
	"sync/atomic"

	"github.com/northlane/tasmoctl/state"
	"github.com/northlane/tasmoctl/value"
)

// SubscriptionId identifies one registered callback, unique within the
// process.
type SubscriptionId uint64

var nextID atomic.Uint64

func newID() SubscriptionId {
	return SubscriptionId(nextID.Add(1))
}

// PowerFunc is invoked with the relay index and its new state.
type PowerFunc func(index uint8, s value.PowerState)

// DimmerFunc is invoked with the new dimmer percentage.
type DimmerFunc func(d value.Dimmer)

// HsbColorFunc is invoked with the new HSB color.
type HsbColorFunc func(c value.HsbColor)

// ColorTempFunc is invoked with the new color temperature.
type ColorTempFunc func(ct value.ColorTemperature)

// SchemeFunc is invoked with the new light scheme.
type SchemeFunc func(s value.Scheme)

// EnergyFunc is invoked with the updated energy telemetry.
type EnergyFunc func(e state.Energy)

// ConnectedFunc is invoked once the device's initial state has been loaded
// after a successful connect.
type ConnectedFunc func()

// DisconnectedFunc is invoked whenever the broker connection is lost, or the
// device reports itself offline via LWT.
type DisconnectedFunc func()

// ReconnectedFunc is invoked after the broker regains its connection and
// resubscribes this device's topics, before any caller-issued republish.
type ReconnectedFunc func()

// StateChangedFunc is invoked for every applied state.Change, regardless of
// kind, once initial state has been loaded.
type StateChangedFunc func(change state.Change)

// registry[T] is a concurrency-safe map of SubscriptionId to callback,
// reused for each of the ten event kinds below.
type registry[T any] struct {
	mu    sync.RWMutex
	byID  map[SubscriptionId]T
}

func newRegistry[T any]() *registry[T] {
	return &registry[T]{byID: make(map[SubscriptionId]T)}
}

func (r *registry[T]) add(cb T) SubscriptionId {
	id := newID()
	r.mu.Lock()
	r.byID[id] = cb
	r.mu.Unlock()
	return id
}

func (r *registry[T]) remove(id SubscriptionId) bool {
	r.mu.Lock()
	_, ok := r.byID[id]
	delete(r.byID, id)
	r.mu.Unlock()
	return ok
}

// each invokes fn while holding only a read lock, matching the documented
// locking discipline: callbacks run under a read lock and must not
// (un)register on the same device or they will deadlock.
func (r *registry[T]) each(fn func(T)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, cb := range r.byID {
		fn(cb)
	}
}

func (r *registry[T]) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Registry is one device's full subscription set: one sub-registry per
// event kind, plus a catch-all for "any state change". A device.Managed
// wraps one of these to satisfy router.Callbacks; the Dispatch* methods
// here are what it delegates to.
type Registry struct {
	power        *registry[PowerFunc]
	dimmer       *registry[DimmerFunc]
	hsbColor     *registry[HsbColorFunc]
	colorTemp    *registry[ColorTempFunc]
	scheme       *registry[SchemeFunc]
	energy       *registry[EnergyFunc]
	connected    *registry[ConnectedFunc]
	disconnected *registry[DisconnectedFunc]
	reconnected  *registry[ReconnectedFunc]
	anyChange    *registry[StateChangedFunc]
}

// New returns an empty subscription registry.
func New() *Registry {
	return &Registry{
		power:        newRegistry[PowerFunc](),
		dimmer:       newRegistry[DimmerFunc](),
		hsbColor:     newRegistry[HsbColorFunc](),
		colorTemp:    newRegistry[ColorTempFunc](),
		scheme:       newRegistry[SchemeFunc](),
		energy:       newRegistry[EnergyFunc](),
		connected:    newRegistry[ConnectedFunc](),
		disconnected: newRegistry[DisconnectedFunc](),
		reconnected:  newRegistry[ReconnectedFunc](),
		anyChange:    newRegistry[StateChangedFunc](),
	}
}

func (r *Registry) OnPowerChanged(fn PowerFunc) SubscriptionId       { return r.power.add(fn) }
func (r *Registry) OnDimmerChanged(fn DimmerFunc) SubscriptionId     { return r.dimmer.add(fn) }
func (r *Registry) OnColorChanged(fn HsbColorFunc) SubscriptionId    { return r.hsbColor.add(fn) }
func (r *Registry) OnColorTempChanged(fn ColorTempFunc) SubscriptionId {
	return r.colorTemp.add(fn)
}
func (r *Registry) OnSchemeChanged(fn SchemeFunc) SubscriptionId         { return r.scheme.add(fn) }
func (r *Registry) OnEnergyUpdated(fn EnergyFunc) SubscriptionId         { return r.energy.add(fn) }
func (r *Registry) OnConnected(fn ConnectedFunc) SubscriptionId          { return r.connected.add(fn) }
func (r *Registry) OnDisconnected(fn DisconnectedFunc) SubscriptionId    { return r.disconnected.add(fn) }
func (r *Registry) OnReconnected(fn ReconnectedFunc) SubscriptionId      { return r.reconnected.add(fn) }
func (r *Registry) OnStateChanged(fn StateChangedFunc) SubscriptionId    { return r.anyChange.add(fn) }

// Unsubscribe removes a callback by id, regardless of which kind it was
// registered under. Returns true if a callback was removed.
func (r *Registry) Unsubscribe(id SubscriptionId) bool {
	removed := false
	for _, rm := range []func(SubscriptionId) bool{
		r.power.remove, r.dimmer.remove, r.hsbColor.remove, r.colorTemp.remove,
		r.scheme.remove, r.energy.remove, r.connected.remove,
		r.disconnected.remove, r.reconnected.remove, r.anyChange.remove,
	} {
		if rm(id) {
			removed = true
		}
	}
	return removed
}

// Dispatch fans a state.Change out to every matching kind-specific callback
// plus every "any state change" callback. A Batch is unpacked recursively so
// per-kind subscribers see each leaf change exactly once.
func (r *Registry) Dispatch(change state.Change) {
	if change.Kind == state.KindBatch {
		for _, nested := range change.Batch {
			r.Dispatch(nested)
		}
		return
	}

	switch change.Kind {
	case state.KindPower:
		r.power.each(func(fn PowerFunc) { fn(change.PowerIndex, change.PowerState) })
	case state.KindDimmer:
		r.dimmer.each(func(fn DimmerFunc) { fn(change.Dimmer) })
	case state.KindHsbColor:
		r.hsbColor.each(func(fn HsbColorFunc) { fn(change.HsbColor) })
	case state.KindColorTemperature:
		r.colorTemp.each(func(fn ColorTempFunc) { fn(change.ColorTemperature) })
	case state.KindScheme:
		r.scheme.each(func(fn SchemeFunc) { fn(change.Scheme) })
	case state.KindEnergy:
		r.energy.each(func(fn EnergyFunc) { fn(change.Energy) })
	}

	r.anyChange.each(func(fn StateChangedFunc) { fn(change) })
}

// DispatchDisconnected notifies every "on disconnected" subscriber.
func (r *Registry) DispatchDisconnected() {
	r.disconnected.each(func(fn DisconnectedFunc) { fn() })
}

// DispatchReconnected notifies every "on reconnected" subscriber. The broker
// calls this only after resubscribing the device's topics.
func (r *Registry) DispatchReconnected() {
	r.reconnected.each(func(fn ReconnectedFunc) { fn() })
}

// DispatchConnected notifies every "on connected" subscriber. Unlike
// DispatchReconnected this is driven by the device manager once initial
// state has been acquired, not by the router or broker directly - see
// the design note on LWT "Online" in package router.
func (r *Registry) DispatchConnected() {
	r.connected.each(func(fn ConnectedFunc) { fn() })
}

// Count returns the total number of live subscriptions across all kinds,
// mostly useful for tests and diagnostics.
func (r *Registry) Count() int {
	return r.power.len() + r.dimmer.len() + r.hsbColor.len() + r.colorTemp.len() +
		r.scheme.len() + r.energy.len() + r.connected.len() + r.disconnected.len() +
		r.reconnected.len() + r.anyChange.len()
}
