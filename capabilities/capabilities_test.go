package capabilities

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsBasicSingleRelay(t *testing.T) {
	c := Default()
	assert.Equal(t, uint8(1), c.PowerChannels)
	assert.False(t, c.Dimmer)
	assert.False(t, c.IsLight())
}

func TestNeoCoolcamHasEnergy(t *testing.T) {
	c := NeoCoolcam()
	assert.True(t, c.HasEnergyMonitoring())
	assert.False(t, c.IsLight())
}

func TestFromStatusDetectsNeoCoolcamByModule(t *testing.T) {
	probe := StatusProbe{Status: &DeviceStatus{Module: 49, FriendlyName: []string{"Plug"}}}
	c := FromStatus(probe)
	assert.True(t, c.Energy)
	assert.Equal(t, uint8(1), c.PowerChannels)
}

func TestFromStatusClampsRelayCountToEight(t *testing.T) {
	names := make([]string, 12)
	for i := range names {
		names[i] = "relay"
	}
	probe := StatusProbe{Status: &DeviceStatus{FriendlyName: names}}
	c := FromStatus(probe)
	assert.Equal(t, uint8(8), c.PowerChannels)
}

func TestFromStatusDetectsLightFromSensorKeys(t *testing.T) {
	probe := StatusProbe{Sensors: map[string]any{"Dimmer": 50, "HSBColor": "1,2,3"}}
	c := FromStatus(probe)
	assert.True(t, c.Dimmer)
	assert.True(t, c.RGB)
	assert.False(t, c.ColorTemp)
}

func TestFromStatusDetectsEnergyFromSensorStatus(t *testing.T) {
	probe := StatusProbe{SensorStatus: map[string]any{"ENERGY": map[string]any{}}}
	c := FromStatus(probe)
	assert.True(t, c.Energy)
}

func TestParseStatusProbeRoundTripDetectsLightCapabilities(t *testing.T) {
	merged := map[string]json.RawMessage{
		"Status":    json.RawMessage(`{"Module":18,"DeviceName":"RGBCCT Bulb","FriendlyName":["Bulb"]}`),
		"StatusSNS": json.RawMessage(`{"Time":"2024-01-01T12:00:00","Dimmer":100,"HSBColor":"20,75,100","CT":300}`),
		"StatusSTS": json.RawMessage(`{"Uptime":"0T01:00:00","POWER":"ON"}`),
		"StatusMEM": json.RawMessage(`{"Heap":27}`),
	}
	probe, err := ParseStatusProbe(merged)
	require.NoError(t, err)

	caps := FromStatus(probe)
	assert.True(t, caps.Dimmer)
	assert.True(t, caps.ColorTemp)
	assert.True(t, caps.RGB)
	assert.False(t, caps.Energy)
	assert.Equal(t, uint8(1), caps.PowerChannels)
}

func TestParseStatusProbeRoundTripDetectsEnergyFromStatusSTS(t *testing.T) {
	merged := map[string]json.RawMessage{
		"Status":    json.RawMessage(`{"Module":18,"DeviceName":"Smart Plug","FriendlyName":["Plug"]}`),
		"StatusSTS": json.RawMessage(`{"Uptime":"0T01:00:00","ENERGY":{"Total":3.185,"Power":45,"Voltage":230}}`),
	}
	probe, err := ParseStatusProbe(merged)
	require.NoError(t, err)

	caps := FromStatus(probe)
	assert.True(t, caps.Energy)
	assert.False(t, caps.IsLight())
}

func TestParseStatusProbeExtractsHeapFromStatusMEM(t *testing.T) {
	merged := map[string]json.RawMessage{
		"StatusMEM": json.RawMessage(`{"Heap":27}`),
	}
	probe, err := ParseStatusProbe(merged)
	require.NoError(t, err)

	info := probe.SystemInfo()
	heap, ok := info.HeapBytes()
	require.True(t, ok)
	assert.Equal(t, uint32(27), heap)
}

func TestStatusProbeSystemInfoEmptyWithoutMemory(t *testing.T) {
	probe := StatusProbe{}
	_, ok := probe.SystemInfo().HeapBytes()
	assert.False(t, ok)
}

func TestBuilder(t *testing.T) {
	c := NewBuilder().PowerChannels(4).WithDimmer().WithEnergy().Build()
	assert.Equal(t, uint8(4), c.PowerChannels)
	assert.True(t, c.Dimmer)
	assert.True(t, c.Energy)
	assert.True(t, c.IsMultiRelay())
}
