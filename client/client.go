// Package client is the shared MQTT client: a thin per-device facade over a
// single broker.Broker connection. It publishes commands under
// cmnd/<topic>/<suffix> and, until its response receiver is taken by a
// consumer task, awaits the matching reply itself.
package client

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/northlane/tasmoctl/broker"
	"github.com/northlane/tasmoctl/command"
	"github.com/northlane/tasmoctl/response"
	"github.com/northlane/tasmoctl/router"
)

// Response is the merged JSON object a command resolves to: one key per
// top-level field across every message the collector gathered.
type Response = map[string]json.RawMessage

// Client is a per-device facade over a shared broker.Broker: one command
// publisher plus (until taken) one response consumer.
type Client struct {
	b           *broker.Broker
	deviceTopic string
	router      *router.Router

	mu        sync.Mutex
	responses <-chan response.Message
	taken     bool
}

// New subscribes deviceTopic on b and returns a Client ready to send
// commands and, until TakeMessageReceiver is called, to await their
// responses itself.
func New(b *broker.Broker, deviceTopic string) (*Client, error) {
	responses, r, err := b.AddDeviceSubscription(deviceTopic)
	if err != nil {
		return nil, err
	}
	return &Client{b: b, deviceTopic: deviceTopic, router: r, responses: responses}, nil
}

// DeviceTopic returns the Tasmota device topic this client addresses.
func (c *Client) DeviceTopic() string { return c.deviceTopic }

// Router returns the topic router that fans incoming messages out to this
// device's callback registry; callers register a router.Callbacks here.
func (c *Client) Router() *router.Router { return c.router }

// SendCommand publishes cmd and, if the response receiver has not yet been
// taken by a background consumer, awaits and returns its parsed response. If
// the receiver has been taken, SendCommand publishes fire-and-forget and
// returns an empty JSON object - the consumer task observes the result via
// the router instead.
func (c *Client) SendCommand(ctx context.Context, cmd command.Command) (Response, error) {
	if err := c.b.PublishCommand(c.deviceTopic, cmd.Suffix, cmd.Payload); err != nil {
		return nil, err
	}

	c.mu.Lock()
	taken := c.taken
	ch := c.responses
	c.mu.Unlock()

	if taken {
		return Response{}, nil
	}

	return response.Collect(ctx, cmd.Response, ch)
}

// TakeMessageReceiver transfers ownership of the response channel to a
// background consumer (the device manager's message-handler task). After
// this call, SendCommand always publishes fire-and-forget. Calling it twice
// is a no-op the second time: the returned channel is nil and ok is false.
func (c *Client) TakeMessageReceiver() (ch <-chan response.Message, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.taken {
		return nil, false
	}
	c.taken = true
	return c.responses, true
}

// Close unregisters this device's subscription from the broker. Best-effort:
// failures are logged by the broker rather than returned.
func (c *Client) Close() {
	c.b.RemoveDeviceSubscription(c.deviceTopic)
}

