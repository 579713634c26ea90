package main

import (
	"context"
	"testing"
)

func TestConnectDeviceRequiresTopic(t *testing.T) {
	oldTopic := topic
	defer func() { topic = oldTopic }()
	topic = ""

	_, err := connectDevice(context.Background())
	if err == nil {
		t.Fatal("expected error when --topic is unset")
	}
}
