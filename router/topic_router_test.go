package router

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northlane/tasmoctl/state"
)

type recordingCallbacks struct {
	mu           sync.Mutex
	changes      []state.Change
	disconnected int
	reconnected  int
	systemInfo   []state.SystemInfo
}

func (r *recordingCallbacks) Dispatch(change state.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
}

func (r *recordingCallbacks) DispatchDisconnected() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnected++
}

func (r *recordingCallbacks) DispatchReconnected() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reconnected++
}

func (r *recordingCallbacks) DispatchSystemInfo(info state.SystemInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.systemInfo = append(r.systemInfo, info)
}

func (r *recordingCallbacks) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changes)
}

func TestParseTopicValid(t *testing.T) {
	parsed, ok := parseTopic("stat/livingroom/POWER")
	require.True(t, ok)
	assert.Equal(t, "stat", parsed.prefix)
	assert.Equal(t, "livingroom", parsed.deviceTopic)
	assert.Equal(t, "POWER", parsed.subtopic)
}

func TestParseTopicTeleKeepsRemainderAsSubtopic(t *testing.T) {
	parsed, ok := parseTopic("tele/livingroom/SENSOR")
	require.True(t, ok)
	assert.Equal(t, "tele", parsed.prefix)
	assert.Equal(t, "SENSOR", parsed.subtopic)

	parsed, ok = parseTopic("tele/livingroom/SENSOR/extra")
	require.True(t, ok)
	assert.Equal(t, "SENSOR/extra", parsed.subtopic)
}

func TestParseTopicInvalidTooFewSegments(t *testing.T) {
	_, ok := parseTopic("stat/livingroom")
	assert.False(t, ok)
}

func TestParsePowerTopicSimple(t *testing.T) {
	change, ok := parsePowerTopic("POWER", "ON")
	require.True(t, ok)
	assert.True(t, change.IsPower())
	assert.Equal(t, uint8(1), change.PowerIndex)
}

func TestParsePowerTopicIndexed(t *testing.T) {
	change, ok := parsePowerTopic("POWER3", "OFF")
	require.True(t, ok)
	assert.Equal(t, uint8(3), change.PowerIndex)
}

func TestRegisterAndRoutePowerMessage(t *testing.T) {
	r := New()
	cb := &recordingCallbacks{}
	owner := &struct{}{}
	r.Register("livingroom", owner, cb)

	routed := r.Route("stat/livingroom/POWER", []byte("ON"))
	assert.True(t, routed)
	assert.Equal(t, 1, cb.count())

	runtime.KeepAlive(owner)
}

func TestRouteUnknownTopicReturnsFalse(t *testing.T) {
	r := New()
	assert.False(t, r.Route("stat/unknown/POWER", []byte("ON")))
}

func TestRouteSensorMessage(t *testing.T) {
	r := New()
	cb := &recordingCallbacks{}
	owner := &struct{}{}
	r.Register("plug1", owner, cb)

	routed := r.Route("tele/plug1/SENSOR", []byte(`{"ENERGY":{"Power":150}}`))
	assert.True(t, routed)
	assert.Equal(t, 1, cb.count())

	runtime.KeepAlive(owner)
}

func TestRouteStateMessageDispatchesSystemInfo(t *testing.T) {
	r := New()
	cb := &recordingCallbacks{}
	owner := &struct{}{}
	r.Register("plug1", owner, cb)

	routed := r.Route("tele/plug1/STATE", []byte(`{"POWER":"ON","UptimeSec":42,"Wifi":{"Signal":-55}}`))
	assert.True(t, routed)

	cb.mu.Lock()
	require.Len(t, cb.systemInfo, 1)
	uptime, ok := cb.systemInfo[0].UptimeSeconds()
	cb.mu.Unlock()
	require.True(t, ok)
	assert.Equal(t, uint64(42), uptime)

	runtime.KeepAlive(owner)
}

func TestRouteSensorMessageDispatchesEmptySystemInfo(t *testing.T) {
	r := New()
	cb := &recordingCallbacks{}
	owner := &struct{}{}
	r.Register("plug1", owner, cb)

	routed := r.Route("tele/plug1/SENSOR", []byte(`{"ENERGY":{"Power":150}}`))
	assert.True(t, routed)

	cb.mu.Lock()
	require.Len(t, cb.systemInfo, 1)
	_, ok := cb.systemInfo[0].UptimeSeconds()
	cb.mu.Unlock()
	assert.False(t, ok)

	runtime.KeepAlive(owner)
}

func TestRouteLwtOfflineDispatchesDisconnected(t *testing.T) {
	r := New()
	cb := &recordingCallbacks{}
	owner := &struct{}{}
	r.Register("plug1", owner, cb)

	routed := r.Route("tele/plug1/LWT", []byte("Offline"))
	assert.True(t, routed)
	cb.mu.Lock()
	assert.Equal(t, 1, cb.disconnected)
	cb.mu.Unlock()

	runtime.KeepAlive(owner)
}

func TestDispatchReconnectedAllAndDisconnectedAll(t *testing.T) {
	r := New()
	cb := &recordingCallbacks{}
	owner := &struct{}{}
	r.Register("plug1", owner, cb)

	r.DispatchDisconnectedAll()
	r.DispatchReconnectedAll()

	cb.mu.Lock()
	assert.Equal(t, 1, cb.disconnected)
	assert.Equal(t, 1, cb.reconnected)
	cb.mu.Unlock()

	runtime.KeepAlive(owner)
}

func TestUnregisterRemovesRouting(t *testing.T) {
	r := New()
	cb := &recordingCallbacks{}
	owner := &struct{}{}
	r.Register("plug1", owner, cb)

	require.True(t, r.Unregister("plug1"))
	assert.False(t, r.Route("stat/plug1/POWER", []byte("ON")))
	assert.False(t, r.Unregister("plug1"))

	runtime.KeepAlive(owner)
}

func TestDeviceCountAndActiveDeviceCount(t *testing.T) {
	r := New()
	cb := &recordingCallbacks{}
	owner := &struct{}{}
	r.Register("plug1", owner, cb)

	assert.Equal(t, 1, r.DeviceCount())
	assert.Equal(t, 1, r.ActiveDeviceCount())

	runtime.KeepAlive(owner)
}

// TestCleanupRemovesDroppedDevice exercises the finalizer-driven cleanup
// path. Finalizer timing is inherently best-effort, so this forces a GC
// cycle and polls briefly rather than asserting on a single runtime.GC()
// call.
func TestCleanupRemovesDroppedDevice(t *testing.T) {
	r := New()
	cb := &recordingCallbacks{}

	func() {
		// The pointer field keeps owner from being zero-size, which the
		// runtime never finalizes.
		owner := &struct{ p *int }{}
		r.Register("plug1", owner, cb)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		runtime.GC()
		r.Cleanup()
		if r.ActiveDeviceCount() == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	assert.Equal(t, 0, r.ActiveDeviceCount())
	assert.Equal(t, 0, r.DeviceCount())
}
