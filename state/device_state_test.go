package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northlane/tasmoctl/value"
)

func TestNewStateIsEmpty(t *testing.T) {
	s := New()
	_, ok := s.Power(1)
	assert.False(t, ok)
	_, ok = s.Dimmer()
	assert.False(t, ok)
	_, ok = s.PowerConsumption()
	assert.False(t, ok)
}

func TestPowerIndexBounds(t *testing.T) {
	s := New()

	s.Apply(Power(0, value.PowerOn))
	_, ok := s.Power(0)
	assert.False(t, ok, "index 0 is invalid")

	s.Apply(Power(9, value.PowerOn))
	_, ok = s.Power(9)
	assert.False(t, ok, "index 9 is out of range")

	_, ok = s.Power(10)
	assert.False(t, ok)
	_, ok = s.Power(255)
	assert.False(t, ok)

	s.Apply(Power(8, value.PowerOn))
	got, ok := s.Power(8)
	require.True(t, ok)
	assert.Equal(t, value.PowerOn, got)
}

func TestAllPowerStatesAndIsAnyOn(t *testing.T) {
	s := New()
	assert.False(t, s.IsAnyOn())

	s.Apply(Power(1, value.PowerOff))
	assert.False(t, s.IsAnyOn())

	s.Apply(Power(3, value.PowerOn))
	s.Apply(Power(5, value.PowerOn))
	assert.True(t, s.IsAnyOn())

	states := s.AllPowerStates()
	assert.Len(t, states, 3)
	assert.Equal(t, value.PowerOff, states[1])
	assert.Equal(t, value.PowerOn, states[3])
	assert.Equal(t, value.PowerOn, states[5])
}

func TestApplyPowerChangeIsIdempotent(t *testing.T) {
	s := New()
	changed := s.Apply(Power(1, value.PowerOn))
	assert.True(t, changed)

	changed = s.Apply(Power(1, value.PowerOn))
	assert.False(t, changed, "re-applying an identical change must report no change")
}

func TestApplyBatchDoesNotShortCircuit(t *testing.T) {
	s := New()
	dim, err := value.NewDimmer(50)
	require.NoError(t, err)

	// Pre-seed dimmer so the batch's dimmer entry is a no-op, while the
	// power entry is new. The batch must still report true overall and
	// must still apply the power change.
	s.Apply(DimmerChange(dim))

	batch := Batch(DimmerChange(dim), PowerOn(1))
	changed := s.Apply(batch)
	assert.True(t, changed)

	got, ok := s.Power(1)
	require.True(t, ok)
	assert.Equal(t, value.PowerOn, got)
}

func TestApplyEnergyPartialUpdate(t *testing.T) {
	s := New()
	power := float32(150)
	changed := s.Apply(EnergyChange(Energy{Power: &power}))
	assert.True(t, changed)

	got, ok := s.PowerConsumption()
	require.True(t, ok)
	assert.Equal(t, float32(150), got)

	_, ok = s.Voltage()
	assert.False(t, ok, "fields absent from the partial update stay unknown")

	changed = s.Apply(EnergyChange(Energy{Power: &power}))
	assert.False(t, changed, "re-applying the same partial update is a no-op")
}

func TestChangeCountRecursesIntoBatches(t *testing.T) {
	c := Batch(PowerOn(1), Batch(PowerOff(2), PowerOn(3)))
	assert.Equal(t, 3, c.ChangeCount())
}

func TestSystemInfoMergeDoesNotReportChange(t *testing.T) {
	s := New()
	d := -60
	s.UpdateSystemInfo(SystemInfo{WifiRSSI: &d})
	info, ok := s.SystemInfo()
	require.True(t, ok)
	assert.Equal(t, -60, *info.WifiRSSI)
}

func TestCloneIsIndependentOfLaterApplies(t *testing.T) {
	s := New()
	s.Apply(PowerOn(1))
	heap := uint32(27000)
	s.UpdateSystemInfo(SystemInfo{Heap: &heap})

	snap := s.Clone()

	s.Apply(PowerOff(1))
	newHeap := uint32(12000)
	s.UpdateSystemInfo(SystemInfo{Heap: &newHeap})

	p, ok := snap.Power(1)
	require.True(t, ok)
	assert.Equal(t, value.PowerOn, p)

	info, ok := snap.SystemInfo()
	require.True(t, ok)
	h, _ := info.HeapBytes()
	assert.Equal(t, uint32(27000), h)
}

func TestSystemInfoMergePreservesHeapAcrossUpdates(t *testing.T) {
	s := New()
	heap := uint32(27000)
	s.UpdateSystemInfo(SystemInfo{Heap: &heap})

	rssi := -60
	s.UpdateSystemInfo(SystemInfo{WifiRSSI: &rssi})

	info, ok := s.SystemInfo()
	require.True(t, ok)
	h, ok := info.HeapBytes()
	require.True(t, ok)
	assert.Equal(t, uint32(27000), h)
	assert.Equal(t, -60, *info.WifiRSSI)
}
