// Package state holds the device state model: the StateChange tagged union
// that every command response and telemetry message is reduced to, and the
// DeviceState that accumulates them.
package state

import (
	"time"

	"github.com/northlane/tasmoctl/value"
)

// ChangeKind tags which field of a Change is populated.
type ChangeKind int

const (
	KindPower ChangeKind = iota
	KindDimmer
	KindHsbColor
	KindColorTemperature
	KindScheme
	KindWakeupDuration
	KindFadeEnabled
	KindFadeSpeed
	KindEnergy
	KindBatch
)

// Energy carries a partial update to the energy-monitoring fields. Every
// field is optional since different telemetry sources (tele/SENSOR,
// Status 10) report different subsets.
type Energy struct {
	Power           *float32
	Voltage         *float32
	Current         *float32
	ApparentPower   *float32
	ReactivePower   *float32
	PowerFactor     *float32
	EnergyToday     *float32
	EnergyYesterday *float32
	EnergyTotal     *float32
	TotalStartTime  *time.Time
}

// Change is a discriminated union mirroring the original StateChange enum.
// Exactly one field is meaningful, selected by Kind; Batch nests further
// Changes and is applied without short-circuiting.
type Change struct {
	Kind ChangeKind

	PowerIndex uint8
	PowerState value.PowerState

	Dimmer           value.Dimmer
	HsbColor         value.HsbColor
	ColorTemperature value.ColorTemperature
	Scheme           value.Scheme
	WakeupDuration   value.WakeupDuration
	FadeEnabled      bool
	FadeSpeed        value.FadeSpeed
	Energy           Energy
	Batch            []Change
}

func Power(index uint8, s value.PowerState) Change {
	return Change{Kind: KindPower, PowerIndex: index, PowerState: s}
}

func PowerOn(index uint8) Change  { return Power(index, value.PowerOn) }
func PowerOff(index uint8) Change { return Power(index, value.PowerOff) }

func DimmerChange(d value.Dimmer) Change { return Change{Kind: KindDimmer, Dimmer: d} }

func HsbColorChange(c value.HsbColor) Change { return Change{Kind: KindHsbColor, HsbColor: c} }

func ColorTemperatureChange(ct value.ColorTemperature) Change {
	return Change{Kind: KindColorTemperature, ColorTemperature: ct}
}

func SchemeChange(s value.Scheme) Change { return Change{Kind: KindScheme, Scheme: s} }

func WakeupDurationChange(d value.WakeupDuration) Change {
	return Change{Kind: KindWakeupDuration, WakeupDuration: d}
}

func FadeEnabledChange(enabled bool) Change {
	return Change{Kind: KindFadeEnabled, FadeEnabled: enabled}
}

func FadeSpeedChange(s value.FadeSpeed) Change { return Change{Kind: KindFadeSpeed, FadeSpeed: s} }

func EnergyChange(e Energy) Change { return Change{Kind: KindEnergy, Energy: e} }

func Batch(changes ...Change) Change { return Change{Kind: KindBatch, Batch: changes} }

// IsPower reports whether the change (or, for a batch, any of its members)
// touches a power relay.
func (c Change) IsPower() bool { return c.matchesAny(KindPower) }

// IsLight reports whether the change touches dimmer, color, color
// temperature, scheme, wakeup duration, or fade fields.
func (c Change) IsLight() bool {
	return c.matchesAny(KindDimmer, KindHsbColor, KindColorTemperature, KindScheme,
		KindWakeupDuration, KindFadeEnabled, KindFadeSpeed)
}

func (c Change) IsScheme() bool { return c.matchesAny(KindScheme) }
func (c Change) IsEnergy() bool { return c.matchesAny(KindEnergy) }
func (c Change) IsBatch() bool  { return c.Kind == KindBatch }

func (c Change) matchesAny(kinds ...ChangeKind) bool {
	if c.Kind == KindBatch {
		for _, nested := range c.Batch {
			if nested.matchesAny(kinds...) {
				return true
			}
		}
		return false
	}
	for _, k := range kinds {
		if c.Kind == k {
			return true
		}
	}
	return false
}

// ChangeCount recursively sums the number of leaf changes, counting nested
// batches by their contents rather than as a single unit.
func (c Change) ChangeCount() int {
	if c.Kind != KindBatch {
		return 1
	}
	n := 0
	for _, nested := range c.Batch {
		n += nested.ChangeCount()
	}
	return n
}
