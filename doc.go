/*
Package tasmoctl is a client library and multi-device coordinator for
Tasmota-firmware smart-home devices: relays, dimmable lights, RGB/CCT
bulbs, and energy-monitoring plugs. It exposes a strongly typed,
asynchronous-style API for sending commands and observing state across two
transports - request/response over HTTP and pub/sub over MQTT.

# Layers

The root package is a thin, single-device facade over the packages that do
the actual engineering:

  - broker owns one shared MQTT session and multiplexes many device topics
    over it, resubscribing automatically on reconnect.
  - router parses incoming topics and fans messages out to the right
    device's callback registry.
  - response reassembles Tasmota's multi-message command responses (a
    "Status 0" query yields nine discrete messages) into one merged JSON
    object within a bounded window.
  - device owns the multi-device Manager: device lifecycle, state
    application, and the broadcast event bus.
  - telemetry translates Tasmota's JSON payloads into the canonical
    state-change vocabulary in package state.

Building one device directly:

	broker, err := tasmoctl.NewMqttBroker().
		Host("mqtt.local").
		Build(ctx)
	if err != nil {
		return err
	}
	defer broker.Close()

	bulb, initial, err := broker.Device("tasmota_bulb").
		Capabilities(capabilities.RGBCCTLight()).
		Build(ctx)
	if err != nil {
		return err
	}
	_ = bulb.SetDimmer(ctx, 75)

Managing many devices at once uses package device's Manager directly; see
its doc comment for the full multi-device surface (Subscribe, Discover,
capability-gated command wrappers).
*/
package tasmoctl

// Version is the tasmoctl module version.
const Version = "0.4.0"
