// Package response translates Tasmota's fragmented command responses -
// a single RESULT message, or several STATUS/STATUS1..STATUS11 messages -
// into one logical, merged JSON response.
package response

import (
	"context"
	"encoding/json"
	"time"

	"github.com/northlane/tasmoctl/tasmoerr"
)

// Kind discriminates between a command that answers with a single message
// and one that answers with several messages that must be merged.
type Kind int

const (
	// Single expects exactly one message, on a RESULT topic, within Timeout.
	Single Kind = iota
	// Multiple expects one message per entry in ExpectedSuffixes, merged
	// into a single JSON object once the set is empty or Timeout elapses.
	Multiple
)

// Spec describes how a command's response should be collected.
type Spec struct {
	Kind             Kind
	ExpectedSuffixes []string
	Timeout          time.Duration
}

// SingleSpec builds a Spec for commands that answer with one RESULT message.
func SingleSpec(timeout time.Duration) Spec {
	return Spec{Kind: Single, Timeout: timeout}
}

// MultipleSpec builds a Spec for commands that answer with several distinct
// STATUS* suffixes to be merged.
func MultipleSpec(suffixes []string, timeout time.Duration) Spec {
	return Spec{Kind: Multiple, ExpectedSuffixes: suffixes, Timeout: timeout}
}

// statusAllSuffixes is the default set requested by "Status 0": every status
// page except STATUS8, STATUS9 and the optional STATUS10 (sensor) page.
var statusAllSuffixes = []string{
	"STATUS", "STATUS1", "STATUS2", "STATUS3", "STATUS4",
	"STATUS5", "STATUS6", "STATUS7", "STATUS11",
}

// StatusAllSpec builds the Spec used by "Status 0": the full status sweep,
// with STATUS10 deliberately excluded from the required set since not every
// device reports sensor data.
func StatusAllSpec(timeout time.Duration) Spec {
	suffixes := make([]string, len(statusAllSuffixes))
	copy(suffixes, statusAllSuffixes)
	return MultipleSpec(suffixes, timeout)
}

// Message is a single stat/<topic>/<suffix> arrival handed to Collect.
type Message struct {
	Suffix  string
	Payload []byte
}

// Collect consumes messages from ch according to spec and returns the
// merged top-level JSON object. Duplicate top-level keys across messages
// are resolved last-writer-wins. Zero collected messages is always a
// Timeout error, even for a partial Multiple collection.
func Collect(ctx context.Context, spec Spec, ch <-chan Message) (map[string]json.RawMessage, error) {
	switch spec.Kind {
	case Single:
		return collectSingle(ctx, spec, ch)
	default:
		return collectMultiple(ctx, spec, ch)
	}
}

func collectSingle(ctx context.Context, spec Spec, ch <-chan Message) (map[string]json.RawMessage, error) {
	timer := time.NewTimer(spec.Timeout)
	defer timer.Stop()

	select {
	case msg := <-ch:
		return parseObject(msg.Payload)
	case <-timer.C:
		return nil, tasmoerr.WrapProtocol(tasmoerr.Timeout(spec.Timeout.Milliseconds()))
	case <-ctx.Done():
		return nil, tasmoerr.WrapProtocol(tasmoerr.Timeout(spec.Timeout.Milliseconds()))
	}
}

func collectMultiple(ctx context.Context, spec Spec, ch <-chan Message) (map[string]json.RawMessage, error) {
	expected := make(map[string]struct{}, len(spec.ExpectedSuffixes))
	for _, s := range spec.ExpectedSuffixes {
		expected[s] = struct{}{}
	}

	deadline := time.Now().Add(spec.Timeout)
	merged := make(map[string]json.RawMessage)
	collected := 0

collectLoop:
	for len(expected) > 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		timer := time.NewTimer(remaining)
		select {
		case msg, ok := <-ch:
			timer.Stop()
			if !ok {
				break collectLoop
			}
			if _, wanted := expected[msg.Suffix]; !wanted {
				continue
			}
			delete(expected, msg.Suffix)
			obj, err := parseObject(msg.Payload)
			if err != nil {
				continue
			}
			for k, v := range obj {
				merged[k] = v
			}
			collected++
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			break collectLoop
		}
	}

	if collected == 0 {
		return nil, tasmoerr.WrapProtocol(tasmoerr.Timeout(spec.Timeout.Milliseconds()))
	}
	return merged, nil
}

func parseObject(payload []byte) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return nil, tasmoerr.WrapParse(tasmoerr.Json(err))
	}
	return obj, nil
}
