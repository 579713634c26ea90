// Package telemetry parses Tasmota's tele/<topic>/STATE and tele/<topic>/SENSOR
// payloads (and the STATUS/StatusSNS command responses that carry the same
// shapes) into state.Change values.
package telemetry

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/northlane/tasmoctl/state"
	"github.com/northlane/tasmoctl/tasmoerr"
	"github.com/northlane/tasmoctl/value"
)

// WifiInfo is the Wi-Fi block embedded in STATE telemetry.
type WifiInfo struct {
	SSId      *string `json:"SSId,omitempty"`
	RSSI      *int    `json:"RSSI,omitempty"`
	Signal    *int    `json:"Signal,omitempty"`
	Channel   *int    `json:"Channel,omitempty"`
	LinkCount *int    `json:"LinkCount,omitempty"`
}

// State is the parsed shape of a tele/<topic>/STATE message (also used for
// stat/<topic>/RESULT responses, which share the same fields).
type State struct {
	Power  *string `json:"POWER,omitempty"`
	Power1 *string `json:"POWER1,omitempty"`
	Power2 *string `json:"POWER2,omitempty"`
	Power3 *string `json:"POWER3,omitempty"`
	Power4 *string `json:"POWER4,omitempty"`
	Power5 *string `json:"POWER5,omitempty"`
	Power6 *string `json:"POWER6,omitempty"`
	Power7 *string `json:"POWER7,omitempty"`
	Power8 *string `json:"POWER8,omitempty"`

	Dimmer   *int    `json:"Dimmer,omitempty"`
	CT       *int    `json:"CT,omitempty"`
	HSBColor *string `json:"HSBColor,omitempty"`
	Color    *string `json:"Color,omitempty"`
	White    *int    `json:"White,omitempty"`
	Fade     any     `json:"Fade,omitempty"` // "ON"/"OFF", true/false, or 0/1
	Speed    *int    `json:"Speed,omitempty"`
	Scheme   *int    `json:"Scheme,omitempty"`

	Uptime    *string `json:"Uptime,omitempty"`
	UptimeSec *uint64 `json:"UptimeSec,omitempty"`

	Wifi *WifiInfo `json:"Wifi,omitempty"`
}

// ParseState parses a STATE (or RESULT) telemetry JSON payload.
func ParseState(payload []byte) (State, error) {
	var s State
	if err := json.Unmarshal(payload, &s); err != nil {
		return State{}, tasmoerr.Json(err)
	}
	return s, nil
}

func powerOf(raw *string) (value.PowerState, bool) {
	if raw == nil {
		return false, false
	}
	p, err := value.ParsePowerState(*raw)
	if err != nil {
		return false, false
	}
	return p, true
}

// PrimaryPower returns the state of the primary relay, accepting either the
// unindexed POWER key or POWER1.
func (s State) PrimaryPower() (value.PowerState, bool) {
	if p, ok := powerOf(s.Power); ok {
		return p, true
	}
	return powerOf(s.Power1)
}

// PowerIndex returns the power state for relay index 1-8.
func (s State) PowerIndex(index uint8) (value.PowerState, bool) {
	switch index {
	case 1:
		return s.PrimaryPower()
	case 2:
		return powerOf(s.Power2)
	case 3:
		return powerOf(s.Power3)
	case 4:
		return powerOf(s.Power4)
	case 5:
		return powerOf(s.Power5)
	case 6:
		return powerOf(s.Power6)
	case 7:
		return powerOf(s.Power7)
	case 8:
		return powerOf(s.Power8)
	default:
		return false, false
	}
}

// AllPowerStates returns every known (index, state) pair, indices 1-8.
func (s State) AllPowerStates() []struct {
	Index uint8
	State value.PowerState
} {
	var out []struct {
		Index uint8
		State value.PowerState
	}
	for i := uint8(1); i <= 8; i++ {
		if p, ok := s.PowerIndex(i); ok {
			out = append(out, struct {
				Index uint8
				State value.PowerState
			}{i, p})
		}
	}
	return out
}

// HsbColorValue parses the "h,s,b" HSBColor string, if present and valid.
func (s State) HsbColorValue() (value.HsbColor, bool) {
	if s.HSBColor == nil {
		return value.HsbColor{}, false
	}
	c, err := value.ParseHsbColor(*s.HSBColor)
	if err != nil {
		return value.HsbColor{}, false
	}
	return c, true
}

func (s State) fadeEnabled() (bool, bool) {
	switch v := s.Fade.(type) {
	case nil:
		return false, false
	case bool:
		return v, true
	case string:
		switch strings.ToUpper(strings.TrimSpace(v)) {
		case "ON", "TRUE", "1":
			return true, true
		case "OFF", "FALSE", "0":
			return false, true
		default:
			return false, false
		}
	case float64:
		return v != 0, true
	default:
		return false, false
	}
}

// UptimeValue returns the device uptime, preferring the "Uptime" string and
// falling back to "UptimeSec".
func (s State) UptimeValue() (time.Duration, bool) {
	if s.Uptime != nil {
		if d, err := value.ParseUptime(*s.Uptime); err == nil {
			return d, true
		}
	}
	if s.UptimeSec != nil {
		return time.Duration(*s.UptimeSec) * time.Second, true
	}
	return 0, false
}

// ToStateChanges reduces the telemetry message to a slice of state.Change.
// If more than one change is produced they are wrapped in a single
// state.Batch; a single change is returned unwrapped, matching Tasmota's own
// behavior of sending sparse STATE updates.
func (s State) ToStateChanges() []state.Change {
	var changes []state.Change

	for _, p := range s.AllPowerStates() {
		changes = append(changes, state.Power(p.Index, p.State))
	}

	if s.Dimmer != nil {
		if d, err := value.NewDimmer(*s.Dimmer); err == nil {
			changes = append(changes, state.DimmerChange(d))
		}
	}

	if s.CT != nil {
		if ct, err := value.NewColorTemperature(*s.CT); err == nil {
			changes = append(changes, state.ColorTemperatureChange(ct))
		}
	}

	if hsb, ok := s.HsbColorValue(); ok {
		changes = append(changes, state.HsbColorChange(hsb))
	}

	if s.Scheme != nil {
		if scheme, err := value.NewScheme(*s.Scheme); err == nil {
			changes = append(changes, state.SchemeChange(scheme))
		}
	}

	if fade, ok := s.fadeEnabled(); ok {
		changes = append(changes, state.FadeEnabledChange(fade))
	}

	if s.Speed != nil {
		if speed, err := value.NewFadeSpeed(*s.Speed); err == nil {
			changes = append(changes, state.FadeSpeedChange(speed))
		}
	}

	if len(changes) > 1 {
		return []state.Change{state.Batch(changes...)}
	}
	return changes
}

// ToSystemInfo extracts uptime and Wi-Fi signal strength. Heap memory isn't
// carried by STATE telemetry at all - it only ever arrives on a Status 0
// probe's StatusMEM block, parsed by capabilities.StatusProbe.SystemInfo
// instead.
func (s State) ToSystemInfo() state.SystemInfo {
	var info state.SystemInfo
	if d, ok := s.UptimeValue(); ok {
		info.Uptime = &d
	}
	// Signal (dBm) is preferred over RSSI (percentage) as the more useful
	// diagnostic figure.
	if s.Wifi != nil && s.Wifi.Signal != nil {
		rssi := *s.Wifi.Signal
		info.WifiRSSI = &rssi
	}
	return info
}
