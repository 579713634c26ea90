// Package value holds small validated newtypes for the quantities Tasmota
// commands and telemetry carry: power states, dimmer percent, HSB color,
// color temperature, light schemes, fade speed, wakeup duration and device
// uptime. Each constructor rejects out-of-range input at the boundary so the
// rest of tasmoctl can treat these as already-valid.
package value

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/northlane/tasmoctl/tasmoerr"
)

// PowerState is a relay/light's on/off state.
type PowerState bool

const (
	PowerOff PowerState = false
	PowerOn  PowerState = true
)

// ParsePowerState accepts Tasmota's literal ON/OFF (any case) plus the
// common boolean spellings telemetry sometimes uses.
func ParsePowerState(s string) (PowerState, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ON", "TRUE", "1":
		return PowerOn, nil
	case "OFF", "FALSE", "0":
		return PowerOff, nil
	default:
		return false, tasmoerr.InvalidPowerState(s)
	}
}

func (p PowerState) String() string {
	if p {
		return "ON"
	}
	return "OFF"
}

// Dimmer is a brightness percentage in [0, 100].
type Dimmer uint8

func NewDimmer(v int) (Dimmer, error) {
	if v < 0 || v > 100 {
		return 0, tasmoerr.OutOfRange(0, 100, float64(v))
	}
	return Dimmer(v), nil
}

// ClampedDimmer clamps v into [0, 100] instead of rejecting it.
func ClampedDimmer(v int) Dimmer {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return Dimmer(v)
}

// HsbColor is hue [0,360], saturation [0,100], brightness [0,100].
type HsbColor struct {
	Hue        uint16
	Saturation uint8
	Brightness uint8
}

func NewHsbColor(h, s, b int) (HsbColor, error) {
	if h < 0 || h > 360 {
		return HsbColor{}, tasmoerr.InvalidHue(fmt.Sprintf("%d", h))
	}
	if s < 0 || s > 100 {
		return HsbColor{}, tasmoerr.InvalidSaturation(fmt.Sprintf("%d", s))
	}
	if b < 0 || b > 100 {
		return HsbColor{}, tasmoerr.InvalidBrightness(fmt.Sprintf("%d", b))
	}
	return HsbColor{Hue: uint16(h), Saturation: uint8(s), Brightness: uint8(b)}, nil
}

// ParseHsbColor parses Tasmota's "h,s,b" HSBColor telemetry string.
func ParseHsbColor(s string) (HsbColor, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return HsbColor{}, tasmoerr.UnexpectedFormat("HSBColor expects \"h,s,b\", got " + s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return HsbColor{}, tasmoerr.InvalidValue("HSBColor", err.Error())
		}
		nums[i] = n
	}
	return NewHsbColor(nums[0], nums[1], nums[2])
}

func (c HsbColor) String() string {
	return fmt.Sprintf("%d,%d,%d", c.Hue, c.Saturation, c.Brightness)
}

// ColorTemperature is Tasmota's mired-ish CT scale, limited to [153, 500];
// NewColorTemperature rejects values outside that range.
type ColorTemperature uint16

func NewColorTemperature(v int) (ColorTemperature, error) {
	if v < 153 || v > 500 {
		return 0, tasmoerr.OutOfRange(153, 500, float64(v))
	}
	return ColorTemperature(v), nil
}

// ClampedColorTemperature clamps v into [153, 500] instead of rejecting it.
func ClampedColorTemperature(v int) ColorTemperature {
	if v < 153 {
		return 153
	}
	if v > 500 {
		return 500
	}
	return ColorTemperature(v)
}

// Mired presets for the ends of Tasmota's CT range.
const (
	ColorTemperatureCool ColorTemperature = 153 // ~6500 K
	ColorTemperatureWarm ColorTemperature = 500 // ~2000 K
)

// Scheme selects one of Tasmota's built-in light animation schemes.
type Scheme uint8

const (
	SchemeSingleColor Scheme = 0
	SchemeWakeup      Scheme = 1
	SchemeCycleUp     Scheme = 2
	SchemeCycleDown   Scheme = 3
	SchemeRandom      Scheme = 4
)

func NewScheme(v int) (Scheme, error) {
	if v < 0 || v > 4 {
		return 0, tasmoerr.OutOfRange(0, 4, float64(v))
	}
	return Scheme(v), nil
}

// FadeSpeed is the light fade transition speed, 1 (fast) to 40 (slow).
type FadeSpeed uint8

func NewFadeSpeed(v int) (FadeSpeed, error) {
	if v < 1 || v > 40 {
		return 0, tasmoerr.OutOfRange(1, 40, float64(v))
	}
	return FadeSpeed(v), nil
}

// WakeupDuration is the wakeup dimmer ramp time in seconds, 1 to 3000.
type WakeupDuration uint16

func NewWakeupDuration(v int) (WakeupDuration, error) {
	if v < 1 || v > 3000 {
		return 0, tasmoerr.OutOfRange(1, 3000, float64(v))
	}
	return WakeupDuration(v), nil
}

// ParseUptime parses Tasmota's "<days>T<hh>:<mm>:<ss>" uptime string into a
// time.Duration.
func ParseUptime(s string) (time.Duration, error) {
	parts := strings.SplitN(s, "T", 2)
	if len(parts) != 2 {
		return 0, tasmoerr.UnexpectedFormat("uptime expects \"<d>T<hh>:<mm>:<ss>\", got " + s)
	}
	days, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, tasmoerr.InvalidValue("uptime.days", err.Error())
	}
	hms := strings.Split(parts[1], ":")
	if len(hms) != 3 {
		return 0, tasmoerr.UnexpectedFormat("uptime time segment expects hh:mm:ss, got " + parts[1])
	}
	var hh, mm, ss int
	for i, dst := range []*int{&hh, &mm, &ss} {
		v, err := strconv.Atoi(hms[i])
		if err != nil {
			return 0, tasmoerr.InvalidValue("uptime.time", err.Error())
		}
		*dst = v
	}
	d := time.Duration(days)*24*time.Hour +
		time.Duration(hh)*time.Hour +
		time.Duration(mm)*time.Minute +
		time.Duration(ss)*time.Second
	return d, nil
}
