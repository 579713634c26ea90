package device

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// upgrader accepts connections from any origin: ServeEvents is an
// observability surface meant for local tooling, not a public API - it
// never accepts commands from the client, only streams events out.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wireEvent is the JSON shape published on the ServeEvents websocket; it
// mirrors Event but with a string Kind and a string ID so it's readable
// without the Go types.
type wireEvent struct {
	Kind           string      `json:"kind"`
	ID             string      `json:"id"`
	Connected      bool        `json:"connected,omitempty"`
	Error          string      `json:"error,omitempty"`
	ReconnectCount int         `json:"reconnect_count,omitempty"`
	Change         interface{} `json:"change,omitempty"`
}

func (k EventKind) String() string {
	switch k {
	case EventDeviceAdded:
		return "device_added"
	case EventDeviceRemoved:
		return "device_removed"
	case EventConnectionChanged:
		return "connection_changed"
	case EventStateChanged:
		return "state_changed"
	default:
		return "unknown"
	}
}

func toWireEvent(e Event) wireEvent {
	w := wireEvent{
		Kind:           e.Kind.String(),
		ID:             e.ID.String(),
		Connected:      e.Connected,
		Error:          e.Error,
		ReconnectCount: e.ReconnectCount,
	}
	if e.Kind == EventStateChanged {
		w.Change = e.Change
	}
	return w
}

// ServeEvents upgrades the request to a websocket and streams every manager
// event as a JSON text message until the client disconnects or the request
// context is cancelled. It gives the event bus an observable surface for
// local debugging without adding an inbound HTTP control API.
func (mgr *Manager) ServeEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		mgr.log.Warn("events websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := mgr.Subscribe()
	defer mgr.Unsubscribe(ch)

	// Detect client-initiated close without ever expecting inbound frames.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(toWireEvent(e)); err != nil {
				mgr.log.Debug("events websocket write failed, closing", "error", err)
				return
			}
		}
	}
}
