package main

import (
	"context"
	"fmt"

	"github.com/northlane/tasmoctl"
)

// connectDevice builds an MQTT-addressed Device from the bound
// host/port/username/password/topic flags, skipping the initial status
// probe so one-shot commands don't pay its round trip.
func connectDevice(ctx context.Context) (*tasmoctl.Device, error) {
	if topic == "" {
		return nil, fmt.Errorf("--topic is required")
	}

	builder := tasmoctl.Mqtt(fmt.Sprintf("%s:%d", brokerHost, brokerPort), topic)
	if username != "" {
		builder = builder.Credentials(username, password)
	}

	dv, _, err := builder.BuildWithoutProbe(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", topic, err)
	}
	return dv, nil
}
