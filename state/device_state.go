package state

import (
	"time"

	"github.com/northlane/tasmoctl/value"
)

// SystemInfo carries non-callback-triggering diagnostic data: uptime and
// Wi-Fi signal quality. Unlike the rest of DeviceState, updating it never
// counts as a "changed" event.
type SystemInfo struct {
	Uptime    *time.Duration
	WifiSSId  *string
	WifiRSSI  *int
	WifiSig   *int
	WifiChan  *int
	LinkCount *int

	// Heap is free heap memory in bytes, as reported by a Status 0 probe's
	// StatusMEM block. Unlike the other fields here it never arrives on
	// tele/STATE or tele/SENSOR, only on a Status response.
	Heap *uint32
}

// HeapBytes returns the last known free heap size in bytes, if any probe has
// reported one.
func (s SystemInfo) HeapBytes() (uint32, bool) {
	if s.Heap == nil {
		return 0, false
	}
	return *s.Heap, true
}

// UptimeSeconds returns the uptime in whole seconds, if known.
func (s SystemInfo) UptimeSeconds() (uint64, bool) {
	if s.Uptime == nil {
		return 0, false
	}
	return uint64(s.Uptime.Seconds()), true
}

// Merge copies every non-nil field of other into s, preserving s's existing
// values where other has none.
func (s *SystemInfo) Merge(other SystemInfo) {
	if other.Uptime != nil {
		s.Uptime = other.Uptime
	}
	if other.WifiSSId != nil {
		s.WifiSSId = other.WifiSSId
	}
	if other.WifiRSSI != nil {
		s.WifiRSSI = other.WifiRSSI
	}
	if other.WifiSig != nil {
		s.WifiSig = other.WifiSig
	}
	if other.WifiChan != nil {
		s.WifiChan = other.WifiChan
	}
	if other.LinkCount != nil {
		s.LinkCount = other.LinkCount
	}
	if other.Heap != nil {
		s.Heap = other.Heap
	}
}

// Device is the accumulated state of a single Tasmota device: relay power,
// light attributes, energy-monitoring readings, and system diagnostics. It
// starts empty (every field unknown) and is mutated through Apply, plus
// UpdateSystemInfo for diagnostics and Clear.
type Device struct {
	power [8]*value.PowerState

	dimmer           *value.Dimmer
	hsbColor         *value.HsbColor
	colorTemperature *value.ColorTemperature
	scheme           *value.Scheme
	wakeupDuration   *value.WakeupDuration
	fadeEnabled      *bool
	fadeSpeed        *value.FadeSpeed

	powerConsumption *float32
	voltage          *float32
	current          *float32
	apparentPower    *float32
	reactivePower    *float32
	powerFactor      *float32
	energyToday      *float32
	energyYesterday  *float32
	energyTotal      *float32
	totalStartTime   *time.Time

	systemInfo *SystemInfo
}

// New returns an empty device state.
func New() *Device { return &Device{} }

// Power returns the relay state at the given 1-based index. Index 0 and
// indices above 8 are always unknown, matching Tasmota's single-to-8-gang
// relay numbering.
func (d *Device) Power(index uint8) (value.PowerState, bool) {
	if index < 1 || index > 8 {
		return false, false
	}
	p := d.power[index-1]
	if p == nil {
		return false, false
	}
	return *p, true
}

func (d *Device) setPower(index uint8, s value.PowerState) {
	if index < 1 || index > 8 {
		return
	}
	v := s
	d.power[index-1] = &v
}

func (d *Device) clearPower(index uint8) {
	if index < 1 || index > 8 {
		return
	}
	d.power[index-1] = nil
}

// AllPowerStates returns every known (index, state) pair.
func (d *Device) AllPowerStates() map[uint8]value.PowerState {
	out := make(map[uint8]value.PowerState)
	for i, p := range d.power {
		if p != nil {
			out[uint8(i+1)] = *p
		}
	}
	return out
}

// IsAnyOn reports whether any known relay is currently on.
func (d *Device) IsAnyOn() bool {
	for _, p := range d.power {
		if p != nil && *p == value.PowerOn {
			return true
		}
	}
	return false
}

func (d *Device) Dimmer() (value.Dimmer, bool)   { return derefOk(d.dimmer) }
func (d *Device) HsbColor() (value.HsbColor, bool) { return derefOk(d.hsbColor) }
func (d *Device) ColorTemperature() (value.ColorTemperature, bool) {
	return derefOk(d.colorTemperature)
}
func (d *Device) Scheme() (value.Scheme, bool)                 { return derefOk(d.scheme) }
func (d *Device) WakeupDuration() (value.WakeupDuration, bool) { return derefOk(d.wakeupDuration) }
func (d *Device) FadeEnabled() (bool, bool)                    { return derefOk(d.fadeEnabled) }
func (d *Device) FadeSpeed() (value.FadeSpeed, bool)           { return derefOk(d.fadeSpeed) }

func (d *Device) PowerConsumption() (float32, bool) { return derefOk(d.powerConsumption) }
func (d *Device) Voltage() (float32, bool)          { return derefOk(d.voltage) }
func (d *Device) Current() (float32, bool)          { return derefOk(d.current) }
func (d *Device) ApparentPower() (float32, bool)    { return derefOk(d.apparentPower) }
func (d *Device) ReactivePower() (float32, bool)    { return derefOk(d.reactivePower) }
func (d *Device) PowerFactor() (float32, bool)      { return derefOk(d.powerFactor) }
func (d *Device) EnergyToday() (float32, bool)      { return derefOk(d.energyToday) }
func (d *Device) EnergyYesterday() (float32, bool)  { return derefOk(d.energyYesterday) }
func (d *Device) EnergyTotal() (float32, bool)      { return derefOk(d.energyTotal) }
func (d *Device) TotalStartTime() (time.Time, bool) { return derefOk(d.totalStartTime) }

// SystemInfo returns the device's diagnostic snapshot, if any has been set.
func (d *Device) SystemInfo() (SystemInfo, bool) {
	if d.systemInfo == nil {
		return SystemInfo{}, false
	}
	return *d.systemInfo, true
}

// UpdateSystemInfo merges info into the existing snapshot (or adopts it
// wholesale if none exists yet). It never reports as a state change.
func (d *Device) UpdateSystemInfo(info SystemInfo) {
	if d.systemInfo == nil {
		cp := info
		d.systemInfo = &cp
		return
	}
	d.systemInfo.Merge(info)
}

// UptimeSeconds is a convenience accessor equivalent to
// SystemInfo().UptimeSeconds().
func (d *Device) UptimeSeconds() (uint64, bool) {
	if d.systemInfo == nil {
		return 0, false
	}
	return d.systemInfo.UptimeSeconds()
}

// Clear resets the state to empty.
func (d *Device) Clear() { *d = Device{} }

// Clone returns an independent snapshot. Apply always replaces field
// pointers rather than mutating what they point at, so a shallow copy is
// enough for everything except systemInfo, whose Merge mutates in place.
func (d *Device) Clone() *Device {
	cp := *d
	if d.systemInfo != nil {
		si := *d.systemInfo
		cp.systemInfo = &si
	}
	return &cp
}

func derefOk[T any](p *T) (T, bool) {
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}

// Apply mutates d according to change and reports whether anything actually
// changed. A Batch never short-circuits: every nested change is applied even
// once an earlier one in the batch has already reported true, so Apply is
// idempotent per-element rather than per-batch.
func (d *Device) Apply(change Change) bool {
	switch change.Kind {
	case KindPower:
		if change.PowerIndex < 1 || change.PowerIndex > 8 {
			return false
		}
		if cur, ok := d.Power(change.PowerIndex); ok && cur == change.PowerState {
			return false
		}
		d.setPower(change.PowerIndex, change.PowerState)
		return true

	case KindDimmer:
		if cur, ok := derefOk(d.dimmer); ok && cur == change.Dimmer {
			return false
		}
		v := change.Dimmer
		d.dimmer = &v
		return true

	case KindHsbColor:
		if cur, ok := derefOk(d.hsbColor); ok && cur == change.HsbColor {
			return false
		}
		v := change.HsbColor
		d.hsbColor = &v
		return true

	case KindColorTemperature:
		if cur, ok := derefOk(d.colorTemperature); ok && cur == change.ColorTemperature {
			return false
		}
		v := change.ColorTemperature
		d.colorTemperature = &v
		return true

	case KindScheme:
		if cur, ok := derefOk(d.scheme); ok && cur == change.Scheme {
			return false
		}
		v := change.Scheme
		d.scheme = &v
		return true

	case KindWakeupDuration:
		if cur, ok := derefOk(d.wakeupDuration); ok && cur == change.WakeupDuration {
			return false
		}
		v := change.WakeupDuration
		d.wakeupDuration = &v
		return true

	case KindFadeEnabled:
		if cur, ok := derefOk(d.fadeEnabled); ok && cur == change.FadeEnabled {
			return false
		}
		v := change.FadeEnabled
		d.fadeEnabled = &v
		return true

	case KindFadeSpeed:
		if cur, ok := derefOk(d.fadeSpeed); ok && cur == change.FadeSpeed {
			return false
		}
		v := change.FadeSpeed
		d.fadeSpeed = &v
		return true

	case KindEnergy:
		return d.applyEnergy(change.Energy)

	case KindBatch:
		anyChanged := false
		for _, c := range change.Batch {
			if d.Apply(c) {
				anyChanged = true
			}
		}
		return anyChanged
	}
	return false
}

func (d *Device) applyEnergy(e Energy) bool {
	changed := false
	updateF32 := func(dst **float32, v *float32) {
		if v == nil {
			return
		}
		if *dst == nil || **dst != *v {
			cp := *v
			*dst = &cp
			changed = true
		}
	}
	updateF32(&d.powerConsumption, e.Power)
	updateF32(&d.voltage, e.Voltage)
	updateF32(&d.current, e.Current)
	updateF32(&d.apparentPower, e.ApparentPower)
	updateF32(&d.reactivePower, e.ReactivePower)
	updateF32(&d.powerFactor, e.PowerFactor)
	updateF32(&d.energyToday, e.EnergyToday)
	updateF32(&d.energyYesterday, e.EnergyYesterday)
	updateF32(&d.energyTotal, e.EnergyTotal)

	if e.TotalStartTime != nil && (d.totalStartTime == nil || !d.totalStartTime.Equal(*e.TotalStartTime)) {
		cp := *e.TotalStartTime
		d.totalStartTime = &cp
		changed = true
	}
	return changed
}
