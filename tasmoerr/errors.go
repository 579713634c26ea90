// Package tasmoerr defines the error taxonomy shared by every tasmoctl
// package. Errors are plain structs implementing the error interface so
// callers can use errors.As to recover the structured detail instead of
// string-matching messages.
package tasmoerr

import "fmt"

// Error is the top level error returned by public tasmoctl operations. It
// wraps one of the category errors below (Value, Protocol, Parse, Device) or
// stands alone for the manager-level cases (DeviceNotFound, NotConnected,
// CapabilityNotSupported).
type Error struct {
	Kind string // "value", "protocol", "parse", "device", "not_found", "not_connected", "capability"
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tasmoctl: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("tasmoctl: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(kind string, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// WrapValue wraps a ValueError.
func WrapValue(err *ValueError) *Error { return wrap("value", err) }

// WrapProtocol wraps a ProtocolError.
func WrapProtocol(err *ProtocolError) *Error { return wrap("protocol", err) }

// WrapParse wraps a ParseError.
func WrapParse(err *ParseError) *Error { return wrap("parse", err) }

// WrapDevice wraps a DeviceError.
func WrapDevice(err *DeviceError) *Error { return wrap("device", err) }

// DeviceNotFound is returned when a manager operation names an unknown
// device id.
func DeviceNotFound(id string) *Error {
	return &Error{Kind: "not_found", Err: fmt.Errorf("no device with id %s", id)}
}

// NotConnected is returned when a command is issued to a device that has no
// live transport client attached.
func NotConnected(id string) *Error {
	return &Error{Kind: "not_connected", Err: fmt.Errorf("device %s is not connected", id)}
}

// CapabilityNotSupported is returned when a command is rejected before any
// network I/O because the device's detected capabilities don't support it.
func CapabilityNotSupported(id, capability string) *Error {
	return &Error{Kind: "capability", Err: fmt.Errorf("device %s does not support %s", id, capability)}
}

// ValueError covers validation failures on the newtypes in package value.
type ValueError struct {
	Reason string // "out_of_range", "invalid_power_state", "invalid_hue", "invalid_saturation", "invalid_brightness", "invalid_hex_color"
	Min    float64
	Max    float64
	Actual float64
	Detail string
}

func (e *ValueError) Error() string {
	switch e.Reason {
	case "out_of_range":
		return fmt.Sprintf("value %v out of range [%v, %v]", e.Actual, e.Min, e.Max)
	case "invalid_power_state":
		return fmt.Sprintf("invalid power state: %s", e.Detail)
	case "invalid_hue":
		return fmt.Sprintf("invalid hue: %s", e.Detail)
	case "invalid_saturation":
		return fmt.Sprintf("invalid saturation: %s", e.Detail)
	case "invalid_brightness":
		return fmt.Sprintf("invalid brightness: %s", e.Detail)
	case "invalid_hex_color":
		return fmt.Sprintf("invalid hex color: %s", e.Detail)
	default:
		return fmt.Sprintf("invalid value: %s", e.Detail)
	}
}

// OutOfRange builds a ValueError for a value outside [min, max].
func OutOfRange(min, max, actual float64) *ValueError {
	return &ValueError{Reason: "out_of_range", Min: min, Max: max, Actual: actual}
}

// InvalidPowerState builds a ValueError for an unrecognized power literal.
func InvalidPowerState(detail string) *ValueError {
	return &ValueError{Reason: "invalid_power_state", Detail: detail}
}

// InvalidHue builds a ValueError for a hue outside [0, 360].
func InvalidHue(detail string) *ValueError {
	return &ValueError{Reason: "invalid_hue", Detail: detail}
}

// InvalidSaturation builds a ValueError for a saturation outside [0, 100].
func InvalidSaturation(detail string) *ValueError {
	return &ValueError{Reason: "invalid_saturation", Detail: detail}
}

// InvalidBrightness builds a ValueError for a brightness outside [0, 100].
func InvalidBrightness(detail string) *ValueError {
	return &ValueError{Reason: "invalid_brightness", Detail: detail}
}

// InvalidHexColor builds a ValueError for an unparsable hex color string.
func InvalidHexColor(detail string) *ValueError {
	return &ValueError{Reason: "invalid_hex_color", Detail: detail}
}

// ProtocolError covers transport-level failures: HTTP, MQTT, timeouts,
// malformed addresses, and authentication failures.
type ProtocolError struct {
	Reason string // "http", "mqtt", "connection_failed", "timeout", "invalid_address", "authentication_failed", "channel_closed"
	Status int
	Millis int64
	Err    error
}

func (e *ProtocolError) Error() string {
	switch e.Reason {
	case "http":
		return fmt.Sprintf("http transport error (status %d): %v", e.Status, e.Err)
	case "mqtt":
		return fmt.Sprintf("mqtt transport error: %v", e.Err)
	case "connection_failed":
		return fmt.Sprintf("connection failed: %v", e.Err)
	case "timeout":
		return fmt.Sprintf("timed out after %dms", e.Millis)
	case "invalid_address":
		return fmt.Sprintf("invalid address: %v", e.Err)
	case "authentication_failed":
		return "authentication failed"
	case "channel_closed":
		return "internal channel closed"
	default:
		return fmt.Sprintf("protocol error: %v", e.Err)
	}
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func Http(status int, err error) *ProtocolError {
	return &ProtocolError{Reason: "http", Status: status, Err: err}
}

func Mqtt(err error) *ProtocolError { return &ProtocolError{Reason: "mqtt", Err: err} }

func ConnectionFailed(err error) *ProtocolError {
	return &ProtocolError{Reason: "connection_failed", Err: err}
}

func Timeout(millis int64) *ProtocolError {
	return &ProtocolError{Reason: "timeout", Millis: millis}
}

func InvalidAddress(err error) *ProtocolError {
	return &ProtocolError{Reason: "invalid_address", Err: err}
}

func AuthenticationFailed() *ProtocolError {
	return &ProtocolError{Reason: "authentication_failed"}
}

func ChannelClosed() *ProtocolError {
	return &ProtocolError{Reason: "channel_closed"}
}

// ParseError covers malformed or unexpected wire payloads.
type ParseError struct {
	Reason  string // "json", "missing_field", "unexpected_format", "invalid_value"
	Field   string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	switch e.Reason {
	case "json":
		return fmt.Sprintf("json parse error: %v", e.Err)
	case "missing_field":
		return fmt.Sprintf("missing field %q", e.Field)
	case "unexpected_format":
		return fmt.Sprintf("unexpected format: %s", e.Message)
	case "invalid_value":
		return fmt.Sprintf("invalid value for field %q: %s", e.Field, e.Message)
	default:
		return fmt.Sprintf("parse error: %v", e.Err)
	}
}

func (e *ParseError) Unwrap() error { return e.Err }

func Json(err error) *ParseError { return &ParseError{Reason: "json", Err: err} }

func MissingField(field string) *ParseError {
	return &ParseError{Reason: "missing_field", Field: field}
}

func UnexpectedFormat(message string) *ParseError {
	return &ParseError{Reason: "unexpected_format", Message: message}
}

func InvalidValue(field, message string) *ParseError {
	return &ParseError{Reason: "invalid_value", Field: field, Message: message}
}

// DeviceError covers manager/device level rejects that aren't transport or
// parse failures.
type DeviceError struct {
	Reason  string // "unsupported_capability", "not_connected", "command_rejected", "invalid_configuration"
	Message string
}

func (e *DeviceError) Error() string {
	switch e.Reason {
	case "unsupported_capability":
		return fmt.Sprintf("unsupported capability: %s", e.Message)
	case "not_connected":
		return "device not connected"
	case "command_rejected":
		return fmt.Sprintf("command rejected: %s", e.Message)
	case "invalid_configuration":
		return fmt.Sprintf("invalid configuration: %s", e.Message)
	default:
		return e.Message
	}
}

func UnsupportedCapability(message string) *DeviceError {
	return &DeviceError{Reason: "unsupported_capability", Message: message}
}

func DeviceNotConnected() *DeviceError {
	return &DeviceError{Reason: "not_connected"}
}

func CommandRejected(message string) *DeviceError {
	return &DeviceError{Reason: "command_rejected", Message: message}
}

func InvalidConfiguration(message string) *DeviceError {
	return &DeviceError{Reason: "invalid_configuration", Message: message}
}
