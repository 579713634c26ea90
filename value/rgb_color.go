package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/northlane/tasmoctl/tasmoerr"
)

// RgbColor is a color with 8-bit red/green/blue channels. Tasmota lights
// speak HSB on the wire, so an RgbColor is converted through ToHsb before
// being sent; the conversions round, so an RGB->HSB->RGB trip may drift by
// one step while the primaries map exactly.
type RgbColor struct {
	Red   uint8
	Green uint8
	Blue  uint8
}

func NewRgbColor(r, g, b uint8) RgbColor { return RgbColor{Red: r, Green: g, Blue: b} }

// ParseHexColor accepts "#RRGGBB", "RRGGBB", "#RGB", and "RGB".
func ParseHexColor(s string) (RgbColor, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")

	switch len(hex) {
	case 3:
		var ch [3]uint8
		for i := 0; i < 3; i++ {
			n, err := strconv.ParseUint(hex[i:i+1], 16, 8)
			if err != nil {
				return RgbColor{}, tasmoerr.InvalidHexColor(s)
			}
			// 0..F expands to 0..255: F -> FF, 8 -> 88.
			ch[i] = uint8(n) * 17
		}
		return RgbColor{Red: ch[0], Green: ch[1], Blue: ch[2]}, nil
	case 6:
		var ch [3]uint8
		for i := 0; i < 3; i++ {
			n, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
			if err != nil {
				return RgbColor{}, tasmoerr.InvalidHexColor(s)
			}
			ch[i] = uint8(n)
		}
		return RgbColor{Red: ch[0], Green: ch[1], Blue: ch[2]}, nil
	default:
		return RgbColor{}, tasmoerr.InvalidHexColor(s)
	}
}

// Hex formats the color as "RRGGBB" without a hash prefix.
func (c RgbColor) Hex() string {
	return fmt.Sprintf("%02X%02X%02X", c.Red, c.Green, c.Blue)
}

func (c RgbColor) String() string { return "#" + c.Hex() }

// ToHsb converts to Tasmota's HSB representation: hue 0-360, saturation and
// brightness 0-100.
func (c RgbColor) ToHsb() HsbColor {
	r := float64(c.Red) / 255.0
	g := float64(c.Green) / 255.0
	b := float64(c.Blue) / 255.0

	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	delta := max - min

	brightness := uint8(math.Round(max * 100.0))

	var saturation uint8
	if max > 0 {
		saturation = uint8(math.Round(delta / max * 100.0))
	}

	var hue uint16
	switch {
	case delta == 0:
		hue = 0
	case max == r:
		h := 60.0 * math.Mod((g-b)/delta, 6.0)
		if h < 0 {
			h += 360.0
		}
		hue = uint16(math.Round(h))
	case max == g:
		hue = uint16(math.Round(60.0 * ((b-r)/delta + 2.0)))
	default:
		hue = uint16(math.Round(60.0 * ((r-g)/delta + 4.0)))
	}

	return HsbColor{Hue: hue, Saturation: saturation, Brightness: brightness}
}

// RgbFromHsb converts an HSB color back to RGB channels.
func RgbFromHsb(hsb HsbColor) RgbColor {
	s := float64(hsb.Saturation) / 100.0
	v := float64(hsb.Brightness) / 100.0
	h := float64(hsb.Hue)

	c := v * s
	x := c * (1.0 - math.Abs(math.Mod(h/60.0, 2.0)-1.0))
	m := v - c

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}

	return RgbColor{
		Red:   uint8(math.Round((r + m) * 255.0)),
		Green: uint8(math.Round((g + m) * 255.0)),
		Blue:  uint8(math.Round((b + m) * 255.0)),
	}
}
