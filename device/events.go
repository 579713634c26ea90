package device

import (
	"sync"

	"github.com/northlane/tasmoctl/state"
)

// ConnectionState tracks a managed device's lifecycle. Reconnecting lets
// callers distinguish "lost the link, automatic reconnection in progress"
// from a terminal Failed without guessing from timestamps.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Reconnecting
	Failed
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// EventKind discriminates Event's payload.
type EventKind int

const (
	EventDeviceAdded EventKind = iota
	EventDeviceRemoved
	EventConnectionChanged
	EventStateChanged
)

// Event is one entry in the manager's broadcast event bus. Exactly the
// fields relevant to Kind are populated.
type Event struct {
	Kind EventKind
	ID   ID

	// EventConnectionChanged
	Connected      bool
	Error          string
	ReconnectCount int

	// EventStateChanged
	Change   state.Change
	NewState *state.Device
}

// Bus is a non-blocking broadcast event bus for DeviceEvents. Subscribers
// receive events on buffered channels; a slow subscriber misses events
// rather than blocking the publisher - the manager's write lock on its
// device map is released before Publish is ever called, so a stuck
// subscriber can never deadlock a state update.
type Bus struct {
	mu         sync.RWMutex
	subs       map[chan Event]struct{}
	recvToSend map[<-chan Event]chan Event
}

// defaultBusCapacity is the default broadcast channel capacity.
const defaultBusCapacity = 256

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{
		subs:       make(map[chan Event]struct{}),
		recvToSend: make(map[<-chan Event]chan Event),
	}
}

// Publish fans out e to every subscriber. Safe to call on a nil *Bus.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Lagged: the subscriber is too slow to keep up and the event
			// is dropped for it. There is no "you missed N events" signal.
		}
	}
}

// Subscribe returns a receive-only channel of every future Event, with the
// default bounded capacity.
func (b *Bus) Subscribe() <-chan Event { return b.SubscribeBuffered(defaultBusCapacity) }

// SubscribeBuffered is Subscribe with an explicit channel capacity.
func (b *Bus) SubscribeBuffered(capacity int) <-chan Event {
	ch := make(chan Event, capacity)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = struct{}{}
	b.recvToSend[ch] = ch
	return ch
}

// Unsubscribe removes and closes a subscription. Safe to call twice.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sendCh, ok := b.recvToSend[ch]
	if !ok {
		return
	}
	delete(b.subs, sendCh)
	delete(b.recvToSend, ch)
	close(sendCh)
}

// SubscriberCount reports the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
