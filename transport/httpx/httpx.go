// Package httpx is the HTTP transport for Tasmota's web-console command
// interface: GET http[s]://<host>[:port]/cm?cmnd=<command> with optional
// basic-auth query parameters. A thin request-builder over a plain
// *http.Client, parallel to the MQTT transport in package client.
package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/northlane/tasmoctl/tasmoerr"
)

// defaultTimeout matches the single-response command timeout used by the
// MQTT transport, so callers see the same worst-case latency regardless of
// which transport a device was built with.
const defaultTimeout = 5 * time.Second

// Config configures an HTTP transport client for one device.
type Config struct {
	Host     string
	Port     uint16
	Https    bool
	Username string
	Password string
	Timeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	return c
}

// Client issues Tasmota web-console commands over HTTP and parses the JSON
// response body.
type Client struct {
	cfg    Config
	http   *http.Client
	scheme string
}

// New builds a Client. It performs no network I/O; the connection happens
// lazily on the first Send.
func New(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if cfg.Host == "" {
		return nil, tasmoerr.WrapProtocol(tasmoerr.InvalidAddress(fmt.Errorf("http host is required")))
	}

	scheme := "http"
	if cfg.Https {
		scheme = "https"
	}

	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		scheme: scheme,
	}, nil
}

func (c *Client) baseURL() string {
	if c.cfg.Port != 0 {
		return fmt.Sprintf("%s://%s:%d", c.scheme, c.cfg.Host, c.cfg.Port)
	}
	return fmt.Sprintf("%s://%s", c.scheme, c.cfg.Host)
}

// Send issues "cmnd=<suffix> <payload>" (or "cmnd=<suffix>" for an empty
// payload, which Tasmota treats as a query) to /cm and returns the parsed
// JSON object.
func (c *Client) Send(ctx context.Context, suffix, payload string) (map[string]json.RawMessage, error) {
	cmnd := suffix
	if payload != "" {
		cmnd = suffix + " " + payload
	}

	q := url.Values{}
	q.Set("cmnd", cmnd)
	if c.cfg.Username != "" {
		q.Set("user", c.cfg.Username)
		q.Set("password", c.cfg.Password)
	}

	reqURL := c.baseURL() + "/cm?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, tasmoerr.WrapProtocol(tasmoerr.InvalidAddress(err))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, tasmoerr.WrapProtocol(tasmoerr.ConnectionFailed(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, tasmoerr.WrapProtocol(tasmoerr.ConnectionFailed(err))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, tasmoerr.WrapProtocol(tasmoerr.AuthenticationFailed())
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, tasmoerr.WrapProtocol(tasmoerr.Http(resp.StatusCode, fmt.Errorf("%s", string(body))))
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, tasmoerr.WrapParse(tasmoerr.Json(err))
	}
	return obj, nil
}
