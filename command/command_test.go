package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northlane/tasmoctl/response"
	"github.com/northlane/tasmoctl/value"
)

func TestPowerSuffixNumbering(t *testing.T) {
	assert.Equal(t, "Power1", PowerOn(1).Suffix, "relay 1 is numbered explicitly")
	assert.Equal(t, "Power3", PowerOn(3).Suffix)
	assert.Equal(t, "Power", PowerOn(0).Suffix, "index 0 addresses all relays via the bare suffix")
	assert.Equal(t, "ON", PowerOn(1).Payload)
	assert.Equal(t, "OFF", PowerOff(2).Payload)
	assert.Equal(t, "TOGGLE", PowerToggle(1).Payload)
	assert.Equal(t, "", PowerQuery(1).Payload)
}

func TestTopicFormatting(t *testing.T) {
	assert.Equal(t, "cmnd/bulb/Power1", PowerOn(1).Topic("bulb"))
	assert.Equal(t, "cmnd/bulb/Dimmer", Dimmer(50).Topic("bulb"))
}

func TestStatusAllUsesMultipleSpec(t *testing.T) {
	cmd := StatusAll()
	assert.Equal(t, "0", cmd.Payload)
	assert.Equal(t, response.Multiple, cmd.Response.Kind)
	assert.Len(t, cmd.Response.ExpectedSuffixes, 9)
}

func TestHSBColorPayload(t *testing.T) {
	c, err := value.NewHsbColor(180, 100, 75)
	require.NoError(t, err)
	assert.Equal(t, "180,100,75", HSBColor(c).Payload)
}

func TestEnergyReset3HasEmptyPayload(t *testing.T) {
	assert.Equal(t, "", EnergyReset3().Payload)
	assert.Equal(t, response.Single, EnergyReset3().Response.Kind)
}
