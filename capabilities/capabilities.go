// Package capabilities describes what features a Tasmota device supports
// and how to detect them from a Status 0 probe.
package capabilities

import (
	"encoding/json"

	"github.com/northlane/tasmoctl/state"
)

// Capabilities describes device features: relay count, dimming, color
// temperature, RGB color, and energy monitoring. Each flag is independent;
// a device can combine them in any way Tasmota firmware allows.
type Capabilities struct {
	PowerChannels uint8
	Dimmer        bool
	ColorTemp     bool
	RGB           bool
	Energy        bool
}

// Default returns a basic single-relay device with no extras. Unlike the
// zero-value struct, which has PowerChannels 0, it reports one relay.
func Default() Capabilities { return Capabilities{PowerChannels: 1} }

func Basic() Capabilities { return Capabilities{PowerChannels: 1} }

// NeoCoolcam is a single-relay smart plug with energy monitoring (Module 49).
func NeoCoolcam() Capabilities { return Capabilities{PowerChannels: 1, Energy: true} }

// RGBLight is a single light with dimmer and RGB color, no CCT.
func RGBLight() Capabilities { return Capabilities{PowerChannels: 1, Dimmer: true, RGB: true} }

// RGBCCTLight is a single light with dimmer, RGB color, and color
// temperature (e.g. Athom bulbs).
func RGBCCTLight() Capabilities {
	return Capabilities{PowerChannels: 1, Dimmer: true, ColorTemp: true, RGB: true}
}

// CCTLight is a warm/cool-white-only light with dimmer and color temperature.
func CCTLight() Capabilities {
	return Capabilities{PowerChannels: 1, Dimmer: true, ColorTemp: true}
}

// IsLight reports whether the device supports any light control feature.
func (c Capabilities) IsLight() bool { return c.Dimmer || c.ColorTemp || c.RGB }

// HasEnergyMonitoring reports whether the device reports energy readings.
func (c Capabilities) HasEnergyMonitoring() bool { return c.Energy }

// IsMultiRelay reports whether the device exposes more than one relay.
func (c Capabilities) IsMultiRelay() bool { return c.PowerChannels > 1 }

// DeviceStatus is the subset of a Status 0 response capability detection
// reads from; the full response shape lives in the response-family structs,
// but detection only needs these two fields.
type DeviceStatus struct {
	Module       int
	FriendlyName []string
}

// StatusMemory is the subset of a StatusMEM block diagnostic reporting
// reads: free heap, in bytes.
type StatusMemory struct {
	Heap *uint32 `json:"Heap,omitempty"`
}

// StatusProbe is the minimal shape FromStatus needs out of a merged Status 0
// response: the device block (from Status), the sensor map (from StatusSNS,
// where lights report Dimmer/CT/HSBColor), the runtime-state map (from
// StatusSTS, where energy monitors report an ENERGY block), and the memory
// block (from StatusMEM).
type StatusProbe struct {
	Status       *DeviceStatus
	Sensors      map[string]any
	SensorStatus map[string]any
	Memory       *StatusMemory
}

// SystemInfo extracts the diagnostic fields a Status 0 probe carries that
// telemetry never does - currently just free heap from StatusMEM - for
// merging into state.Device via UpdateSystemInfo.
func (p StatusProbe) SystemInfo() state.SystemInfo {
	var info state.SystemInfo
	if p.Memory != nil && p.Memory.Heap != nil {
		h := *p.Memory.Heap
		info.Heap = &h
	}
	return info
}

// FromStatus detects capabilities from a Status 0 probe: module 49 implies
// energy monitoring, friendly-name count (clamped to 8) implies relay
// count, Dimmer/CT/HSBColor keys in the sensor map imply light features,
// and an ENERGY key in the sensor status implies energy monitoring.
func FromStatus(probe StatusProbe) Capabilities {
	caps := Default()

	if probe.Status != nil {
		if probe.Status.Module == 49 {
			caps.Energy = true
		}
		if n := len(probe.Status.FriendlyName); n > 0 {
			if n > 8 {
				n = 8
			}
			caps.PowerChannels = uint8(n)
		}
	}

	if probe.Sensors != nil {
		if _, ok := probe.Sensors["Dimmer"]; ok {
			caps.Dimmer = true
		}
		if _, ok := probe.Sensors["CT"]; ok {
			caps.ColorTemp = true
		}
		if _, ok := probe.Sensors["HSBColor"]; ok {
			caps.RGB = true
		}
	}

	if probe.SensorStatus != nil {
		if _, ok := probe.SensorStatus["ENERGY"]; ok {
			caps.Energy = true
		}
	}

	return caps
}

// ParseStatusProbe extracts a StatusProbe out of a merged Status 0 response
// (response.Collect's return value): the "Status" block for module/relay
// detection, "StatusSNS" for light-feature sensor keys (Dimmer/CT/HSBColor),
// "StatusSTS" for an ENERGY key, and "StatusMEM" for free heap.
func ParseStatusProbe(merged map[string]json.RawMessage) (StatusProbe, error) {
	var probe StatusProbe

	if raw, ok := merged["Status"]; ok {
		var ds DeviceStatus
		if err := json.Unmarshal(raw, &ds); err != nil {
			return StatusProbe{}, err
		}
		probe.Status = &ds
	}

	if raw, ok := merged["StatusSNS"]; ok {
		var sensors map[string]any
		if err := json.Unmarshal(raw, &sensors); err != nil {
			return StatusProbe{}, err
		}
		probe.Sensors = sensors
	}

	if raw, ok := merged["StatusSTS"]; ok {
		var sensorStatus map[string]any
		if err := json.Unmarshal(raw, &sensorStatus); err != nil {
			return StatusProbe{}, err
		}
		probe.SensorStatus = sensorStatus
	}

	if raw, ok := merged["StatusMEM"]; ok {
		var mem StatusMemory
		if err := json.Unmarshal(raw, &mem); err != nil {
			return StatusProbe{}, err
		}
		probe.Memory = &mem
	}

	return probe, nil
}

// Builder constructs custom Capabilities fluently.
type Builder struct {
	inner Capabilities
}

func NewBuilder() *Builder { return &Builder{inner: Default()} }

func (b *Builder) PowerChannels(count uint8) *Builder {
	if count < 1 {
		count = 1
	}
	if count > 8 {
		count = 8
	}
	b.inner.PowerChannels = count
	return b
}

func (b *Builder) WithDimmer() *Builder    { b.inner.Dimmer = true; return b }
func (b *Builder) WithColorTemp() *Builder { b.inner.ColorTemp = true; return b }
func (b *Builder) WithRGB() *Builder       { b.inner.RGB = true; return b }
func (b *Builder) WithEnergy() *Builder    { b.inner.Energy = true; return b }

func (b *Builder) Build() Capabilities { return b.inner }
