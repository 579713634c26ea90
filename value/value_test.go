package value

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePowerStateAcceptsCommonSpellings(t *testing.T) {
	cases := map[string]PowerState{
		"ON": PowerOn, "on": PowerOn, "TRUE": PowerOn, "1": PowerOn,
		"OFF": PowerOff, "off": PowerOff, "FALSE": PowerOff, "0": PowerOff,
	}
	for input, want := range cases {
		got, err := ParsePowerState(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}
}

func TestParsePowerStateRejectsGarbage(t *testing.T) {
	_, err := ParsePowerState("maybe")
	assert.Error(t, err)
}

func TestNewDimmerRange(t *testing.T) {
	_, err := NewDimmer(-1)
	assert.Error(t, err)
	_, err = NewDimmer(101)
	assert.Error(t, err)

	d, err := NewDimmer(75)
	require.NoError(t, err)
	assert.Equal(t, Dimmer(75), d)
}

func TestClampedDimmer(t *testing.T) {
	assert.Equal(t, Dimmer(50), ClampedDimmer(50))
	assert.Equal(t, Dimmer(100), ClampedDimmer(101))
	assert.Equal(t, Dimmer(100), ClampedDimmer(255))
	assert.Equal(t, Dimmer(0), ClampedDimmer(-1))
}

func TestClampedColorTemperature(t *testing.T) {
	assert.Equal(t, ColorTemperatureCool, ClampedColorTemperature(100))
	assert.Equal(t, ColorTemperatureWarm, ClampedColorTemperature(600))
	assert.Equal(t, ColorTemperature(326), ClampedColorTemperature(326))
}

func TestHsbColorRoundTrip(t *testing.T) {
	for h := 0; h <= 360; h += 60 {
		for _, sb := range []int{0, 100} {
			c, err := NewHsbColor(h, sb, sb)
			require.NoError(t, err)

			parsed, err := ParseHsbColor(c.String())
			require.NoError(t, err)
			assert.Equal(t, c, parsed)
		}
	}
}

func TestNewHsbColorRejectsOutOfRange(t *testing.T) {
	_, err := NewHsbColor(361, 0, 0)
	assert.Error(t, err)
	_, err = NewHsbColor(0, 101, 0)
	assert.Error(t, err)
	_, err = NewHsbColor(0, 0, 101)
	assert.Error(t, err)
}

func TestParseHsbColorRejectsMalformedString(t *testing.T) {
	_, err := ParseHsbColor("180,100")
	assert.Error(t, err)
	_, err = ParseHsbColor("a,b,c")
	assert.Error(t, err)
}

func TestNewColorTemperatureRange(t *testing.T) {
	_, err := NewColorTemperature(152)
	assert.Error(t, err)
	_, err = NewColorTemperature(501)
	assert.Error(t, err)

	ct, err := NewColorTemperature(326)
	require.NoError(t, err)
	assert.Equal(t, ColorTemperature(326), ct)
}

func TestNewSchemeRange(t *testing.T) {
	_, err := NewScheme(5)
	assert.Error(t, err)

	s, err := NewScheme(4)
	require.NoError(t, err)
	assert.Equal(t, SchemeRandom, s)
}

func TestNewFadeSpeedRange(t *testing.T) {
	_, err := NewFadeSpeed(0)
	assert.Error(t, err)
	_, err = NewFadeSpeed(41)
	assert.Error(t, err)

	s, err := NewFadeSpeed(1)
	require.NoError(t, err)
	assert.Equal(t, FadeSpeed(1), s)
}

func TestNewWakeupDurationRange(t *testing.T) {
	_, err := NewWakeupDuration(-1)
	assert.Error(t, err)
	_, err = NewWakeupDuration(0)
	assert.Error(t, err)
	_, err = NewWakeupDuration(3001)
	assert.Error(t, err)

	d, err := NewWakeupDuration(3000)
	require.NoError(t, err)
	assert.Equal(t, WakeupDuration(3000), d)
}

func TestParseUptimeRoundTrip(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"0T00:00:00", 0},
		{"1T02:03:04", 24*time.Hour + 2*time.Hour + 3*time.Minute + 4*time.Second},
		{"10T23:59:59", 10*24*time.Hour + 23*time.Hour + 59*time.Minute + 59*time.Second},
	}
	for _, tc := range cases {
		got, err := ParseUptime(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseUptimeRejectsMalformed(t *testing.T) {
	_, err := ParseUptime("not-a-duration")
	assert.Error(t, err)
	_, err = ParseUptime("1T02:03")
	assert.Error(t, err)
}
