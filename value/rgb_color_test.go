package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHexColorFullAndShortForms(t *testing.T) {
	c, err := ParseHexColor("#FF5733")
	require.NoError(t, err)
	assert.Equal(t, NewRgbColor(255, 87, 51), c)

	c, err = ParseHexColor("00FF00")
	require.NoError(t, err)
	assert.Equal(t, NewRgbColor(0, 255, 0), c)

	c, err = ParseHexColor("#F00")
	require.NoError(t, err)
	assert.Equal(t, NewRgbColor(255, 0, 0), c)
}

func TestParseHexColorRejectsMalformed(t *testing.T) {
	for _, in := range []string{"#GG0000", "#FF00", "", "FFFF00FF"} {
		_, err := ParseHexColor(in)
		assert.Error(t, err, in)
	}
}

func TestHexFormattingKeepsLeadingZeros(t *testing.T) {
	c := NewRgbColor(0, 15, 255)
	assert.Equal(t, "000FFF", c.Hex())
	assert.Equal(t, "#000FFF", c.String())
}

func TestToHsbPrimaries(t *testing.T) {
	cases := []struct {
		rgb RgbColor
		hsb HsbColor
	}{
		{NewRgbColor(255, 0, 0), HsbColor{Hue: 0, Saturation: 100, Brightness: 100}},
		{NewRgbColor(0, 255, 0), HsbColor{Hue: 120, Saturation: 100, Brightness: 100}},
		{NewRgbColor(0, 0, 255), HsbColor{Hue: 240, Saturation: 100, Brightness: 100}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.hsb, tc.rgb.ToHsb(), tc.rgb.Hex())
	}
}

func TestToHsbWhiteAndBlack(t *testing.T) {
	white := NewRgbColor(255, 255, 255).ToHsb()
	assert.Equal(t, uint8(0), white.Saturation)
	assert.Equal(t, uint8(100), white.Brightness)

	black := NewRgbColor(0, 0, 0).ToHsb()
	assert.Equal(t, uint8(0), black.Brightness)
}

// The conversions round, so an arbitrary color may drift by one step on a
// round trip; the hue gridpoints Tasmota's palette presets sit on must come
// back exactly.
func TestHsbRoundTripAtHueGridpoints(t *testing.T) {
	for h := 0; h < 360; h += 60 {
		for _, sb := range []int{0, 100} {
			original, err := NewHsbColor(h, sb, sb)
			require.NoError(t, err)

			back := RgbFromHsb(original).ToHsb()
			if sb == 0 {
				// Fully desaturated colors collapse to hue 0.
				assert.Equal(t, uint8(0), back.Saturation)
				continue
			}
			assert.Equal(t, original, back, "hue %d", h)
		}
	}
}

func TestHue360MapsToRed(t *testing.T) {
	c, err := NewHsbColor(360, 100, 100)
	require.NoError(t, err)
	assert.Equal(t, NewRgbColor(255, 0, 0), RgbFromHsb(c))
}

func TestRgbRoundTripOnPrimaries(t *testing.T) {
	for _, original := range []RgbColor{
		NewRgbColor(255, 0, 0), NewRgbColor(0, 255, 0), NewRgbColor(0, 0, 255),
		NewRgbColor(255, 255, 255), NewRgbColor(0, 0, 0), NewRgbColor(255, 255, 0),
	} {
		assert.Equal(t, original, RgbFromHsb(original.ToHsb()), original.Hex())
	}
}
