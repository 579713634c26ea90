package device

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func splitHostPort(t *testing.T, rawURL string) (string, uint16) {
	t.Helper()
	parsed, err := url.Parse(rawURL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(parsed.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, uint16(port)
}

func TestAddDevicePublishesDeviceAddedEvent(t *testing.T) {
	mgr := NewManager(nil)
	events := mgr.Subscribe()

	id, err := mgr.AddDevice(MQTT("127.0.0.1", 1883, "plug1"))
	require.NoError(t, err)

	ev := <-events
	assert.Equal(t, EventDeviceAdded, ev.Kind)
	assert.Equal(t, id, ev.ID)
	assert.Equal(t, 1, mgr.DeviceCount())
}

func TestAddDeviceRejectsInvalidConfig(t *testing.T) {
	mgr := NewManager(nil)
	_, err := mgr.AddDevice(Config{})
	require.Error(t, err)
}

func TestConnectOverHttpAndPowerOnSendsCommand(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"POWER":"ON"}`))
	}))
	defer srv.Close()
	host, port := splitHostPort(t, srv.URL)

	mgr := NewManager(nil)
	id, err := mgr.AddDevice(HTTP(host, port))
	require.NoError(t, err)

	require.NoError(t, mgr.Connect(context.Background(), id))

	cs, _ := mgr.devices[id].ConnectionState()
	assert.Equal(t, Connected, cs)

	require.NoError(t, mgr.PowerOn(context.Background(), id, 1))
	assert.Contains(t, gotQuery, "cmnd=Power1+ON")
}

func TestConnectPublishesOneConnectedEventWithState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()
	host, port := splitHostPort(t, srv.URL)

	mgr := NewManager(nil)
	id, err := mgr.AddDevice(HTTP(host, port))
	require.NoError(t, err)

	events := mgr.Subscribe()
	require.NoError(t, mgr.Connect(context.Background(), id))

	connecting := <-events
	assert.Equal(t, EventConnectionChanged, connecting.Kind)
	assert.False(t, connecting.Connected)

	connected := <-events
	assert.Equal(t, EventConnectionChanged, connected.Kind)
	assert.True(t, connected.Connected)
	require.NotNil(t, connected.NewState, "the Connected event carries the initial state snapshot")

	select {
	case extra := <-events:
		require.Fail(t, "unexpected extra event", "kind %v", extra.Kind)
	default:
	}
}

func TestSetDimmerFailsFastWithoutCapability(t *testing.T) {
	mgr := NewManager(nil)
	id, err := mgr.AddDevice(HTTP("127.0.0.1", 80))
	require.NoError(t, err)
	require.NoError(t, mgr.Connect(context.Background(), id))

	err = mgr.SetDimmer(context.Background(), id, 50)
	require.Error(t, err)
}

func TestRemoveDeviceReportsUnknownId(t *testing.T) {
	mgr := NewManager(nil)
	assert.False(t, mgr.RemoveDevice(NewID()))
}

func TestGetStateUnknownDeviceReturnsFalse(t *testing.T) {
	mgr := NewManager(nil)
	_, ok := mgr.GetState(NewID())
	assert.False(t, ok)
}
