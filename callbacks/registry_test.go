package callbacks

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northlane/tasmoctl/state"
	"github.com/northlane/tasmoctl/value"
)

func TestDispatchPowerInvokesPowerAndAnyChange(t *testing.T) {
	r := New()

	var gotIndex uint8
	var gotState value.PowerState
	r.OnPowerChanged(func(index uint8, s value.PowerState) {
		gotIndex = index
		gotState = s
	})

	var anyCount atomic.Int32
	r.OnStateChanged(func(state.Change) { anyCount.Add(1) })

	r.Dispatch(state.PowerOn(2))

	assert.Equal(t, uint8(2), gotIndex)
	assert.Equal(t, value.PowerOn, gotState)
	assert.Equal(t, int32(1), anyCount.Load())
}

func TestDispatchBatchUnpacksEachLeaf(t *testing.T) {
	r := New()

	var dimmerCalls, powerCalls, anyCalls int
	r.OnDimmerChanged(func(value.Dimmer) { dimmerCalls++ })
	r.OnPowerChanged(func(uint8, value.PowerState) { powerCalls++ })
	r.OnStateChanged(func(state.Change) { anyCalls++ })

	d, err := value.NewDimmer(50)
	require.NoError(t, err)

	r.Dispatch(state.Batch(state.PowerOn(1), state.DimmerChange(d)))

	assert.Equal(t, 1, dimmerCalls)
	assert.Equal(t, 1, powerCalls)
	assert.Equal(t, 2, anyCalls, "any-change fires once per leaf, not once per batch")
}

func TestUnsubscribeRemovesCallback(t *testing.T) {
	r := New()

	var calls int
	id := r.OnPowerChanged(func(uint8, value.PowerState) { calls++ })

	r.Dispatch(state.PowerOn(1))
	assert.Equal(t, 1, calls)

	removed := r.Unsubscribe(id)
	assert.True(t, removed)

	r.Dispatch(state.PowerOn(1))
	assert.Equal(t, 1, calls, "no further calls after unsubscribe")

	assert.False(t, r.Unsubscribe(id), "unsubscribing twice reports false the second time")
}

func TestDispatchDisconnectedAndReconnected(t *testing.T) {
	r := New()

	var disconnected, reconnected int
	r.OnDisconnected(func() { disconnected++ })
	r.OnReconnected(func() { reconnected++ })

	r.DispatchDisconnected()
	r.DispatchReconnected()

	assert.Equal(t, 1, disconnected)
	assert.Equal(t, 1, reconnected)
}

func TestSubscriptionIdsAreUnique(t *testing.T) {
	r := New()
	seen := make(map[SubscriptionId]bool)
	for i := 0; i < 50; i++ {
		id := r.OnPowerChanged(func(uint8, value.PowerState) {})
		require.False(t, seen[id])
		seen[id] = true
	}
}
