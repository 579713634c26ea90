package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northlane/tasmoctl/value"
)

func TestParseSimplePowerState(t *testing.T) {
	s, err := ParseState([]byte(`{"POWER":"ON"}`))
	require.NoError(t, err)
	p, ok := s.PrimaryPower()
	require.True(t, ok)
	assert.Equal(t, value.PowerOn, p)
}

func TestParsePower1Format(t *testing.T) {
	s, err := ParseState([]byte(`{"POWER1":"ON"}`))
	require.NoError(t, err)
	p, ok := s.PrimaryPower()
	require.True(t, ok)
	assert.Equal(t, value.PowerOn, p)
	p, ok = s.PowerIndex(1)
	require.True(t, ok)
	assert.Equal(t, value.PowerOn, p)
}

func TestParseMultipleRelays(t *testing.T) {
	s, err := ParseState([]byte(`{"POWER1":"ON","POWER2":"OFF","POWER3":"ON"}`))
	require.NoError(t, err)
	all := s.AllPowerStates()
	require.Len(t, all, 3)
}

func TestUptimePrefersStringThenFallsBackToSeconds(t *testing.T) {
	s, err := ParseState([]byte(`{"Uptime":"1T23:46:58","UptimeSec":172018}`))
	require.NoError(t, err)
	d, ok := s.UptimeValue()
	require.True(t, ok)
	assert.Equal(t, 172018*time.Second, d)
}

func TestToStateChangesWrapsMultipleInBatch(t *testing.T) {
	s, err := ParseState([]byte(`{"POWER":"ON","Dimmer":75,"CT":326}`))
	require.NoError(t, err)
	changes := s.ToStateChanges()
	require.Len(t, changes, 1)
	assert.True(t, changes[0].IsBatch())
	assert.Equal(t, 3, changes[0].ChangeCount())
}

func TestToStateChangesSingleIsUnwrapped(t *testing.T) {
	s, err := ParseState([]byte(`{"POWER":"ON"}`))
	require.NoError(t, err)
	changes := s.ToStateChanges()
	require.Len(t, changes, 1)
	assert.False(t, changes[0].IsBatch())
	assert.True(t, changes[0].IsPower())
}

func TestToSystemInfoUsesSignalNotRssi(t *testing.T) {
	s, err := ParseState([]byte(`{"UptimeSec":172800,"Wifi":{"Signal":-55,"RSSI":80}}`))
	require.NoError(t, err)
	info := s.ToSystemInfo()
	require.NotNil(t, info.WifiRSSI)
	assert.Equal(t, -55, *info.WifiRSSI)
	require.NotNil(t, info.Uptime)
	assert.Equal(t, 172800*time.Second, *info.Uptime)
}

func TestFadeAcceptsIntOrStringOrBool(t *testing.T) {
	s, err := ParseState([]byte(`{"Fade":1}`))
	require.NoError(t, err)
	enabled, ok := s.fadeEnabled()
	require.True(t, ok)
	assert.True(t, enabled)

	s, err = ParseState([]byte(`{"Fade":"OFF"}`))
	require.NoError(t, err)
	enabled, ok = s.fadeEnabled()
	require.True(t, ok)
	assert.False(t, enabled)

	s, err = ParseState([]byte(`{"Fade":true}`))
	require.NoError(t, err)
	enabled, ok = s.fadeEnabled()
	require.True(t, ok)
	assert.True(t, enabled)
}
