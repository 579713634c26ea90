// Package command builds the cmnd/<topic>/<suffix> publishes for every
// Tasmota command the core library issues, paired with the response.Spec
// that tells the collector how to reassemble the reply.
package command

import (
	"fmt"
	"time"

	"github.com/northlane/tasmoctl/response"
	"github.com/northlane/tasmoctl/value"
)

// defaultSingleTimeout is the 5s default for single-response commands.
const defaultSingleTimeout = 5 * time.Second

// Command is one outbound Tasmota command: the topic suffix published under
// cmnd/<device_topic>/<Suffix>, its ASCII payload, and how the response
// should be collected.
type Command struct {
	Suffix   string
	Payload  string
	Response response.Spec
}

// StatusAll builds "Status 0", which triggers Tasmota's full status sweep
// merged from STATUS..STATUS7 and STATUS11 (STATUS8/9/10 excluded or
// optional, see response.StatusAllSpec).
func StatusAll() Command {
	return Command{Suffix: "Status", Payload: "0", Response: response.StatusAllSpec(defaultSingleTimeout)}
}

// Status builds "Status <n>" for a single status sub-page, 1 through 11.
func Status(n int) Command {
	return Command{Suffix: "Status", Payload: fmt.Sprintf("%d", n), Response: response.SingleSpec(defaultSingleTimeout)}
}

// StatusAbbreviated builds the bare "Status" query (empty payload), which
// Tasmota answers with a single abbreviated status object rather than the
// full Status 0 sweep.
func StatusAbbreviated() Command {
	return Command{Suffix: "Status", Payload: "", Response: response.SingleSpec(defaultSingleTimeout)}
}

// Power builds a query ("" payload), set (ON/OFF), or toggle command for
// relay index (1-based). Index 0 addresses the bare "Power" suffix, which
// Tasmota treats as all relays; every numbered relay, including the first,
// gets an explicit "Power<n>" suffix.
func Power(index uint8, payload string) Command {
	suffix := "Power"
	if index > 0 {
		suffix = fmt.Sprintf("Power%d", index)
	}
	return Command{Suffix: suffix, Payload: payload, Response: response.SingleSpec(defaultSingleTimeout)}
}

func PowerOn(index uint8) Command     { return Power(index, "ON") }
func PowerOff(index uint8) Command    { return Power(index, "OFF") }
func PowerToggle(index uint8) Command { return Power(index, "TOGGLE") }
func PowerQuery(index uint8) Command  { return Power(index, "") }

// Dimmer builds "Dimmer <0..100>".
func Dimmer(d value.Dimmer) Command {
	return Command{Suffix: "Dimmer", Payload: fmt.Sprintf("%d", d), Response: response.SingleSpec(defaultSingleTimeout)}
}

// ColorTemperature builds "CT <153..500>".
func ColorTemperature(ct value.ColorTemperature) Command {
	return Command{Suffix: "CT", Payload: fmt.Sprintf("%d", ct), Response: response.SingleSpec(defaultSingleTimeout)}
}

// HSBColor builds "HSBColor <h,s,b>".
func HSBColor(c value.HsbColor) Command {
	return Command{Suffix: "HSBColor", Payload: c.String(), Response: response.SingleSpec(defaultSingleTimeout)}
}

// Fade builds "Fade 0"/"Fade 1".
func Fade(enabled bool) Command {
	payload := "0"
	if enabled {
		payload = "1"
	}
	return Command{Suffix: "Fade", Payload: payload, Response: response.SingleSpec(defaultSingleTimeout)}
}

// FadeSpeed builds "Speed <1..40>".
func FadeSpeed(s value.FadeSpeed) Command {
	return Command{Suffix: "Speed", Payload: fmt.Sprintf("%d", s), Response: response.SingleSpec(defaultSingleTimeout)}
}

// EnergyReset3 builds "EnergyReset3", which clears the device's cumulative
// energy total. Deliberately has no local state effect: the next telemetry
// frame is the source of truth for the reset counters.
func EnergyReset3() Command {
	return Command{Suffix: "EnergyReset3", Payload: "", Response: response.SingleSpec(defaultSingleTimeout)}
}

// State builds the bare "State" query used for initial-state acquisition.
func State() Command {
	return Command{Suffix: "State", Payload: "", Response: response.SingleSpec(defaultSingleTimeout)}
}

// WakeupDuration builds "WakeupDuration <1..3000>".
func WakeupDuration(d value.WakeupDuration) Command {
	return Command{Suffix: "WakeupDuration", Payload: fmt.Sprintf("%d", d), Response: response.SingleSpec(defaultSingleTimeout)}
}

// Scheme builds "Scheme <0..4>".
func Scheme(s value.Scheme) Command {
	return Command{Suffix: "Scheme", Payload: fmt.Sprintf("%d", s), Response: response.SingleSpec(defaultSingleTimeout)}
}

// Topic builds the full cmnd/<device_topic>/<suffix> publish topic.
func (c Command) Topic(deviceTopic string) string {
	return fmt.Sprintf("cmnd/%s/%s", deviceTopic, c.Suffix)
}
