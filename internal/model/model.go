// Package model defines the data types the first-divergence engine
// consumes: Event, Step, Run, and the fingerprints derived from them.
package model

import "github.com/forkline/forkline/internal/value"

// Recognized event types. Any other string is "other"; arbitrary
// labels are always allowed and carried through.
const (
	EventInput  = "input"
	EventOutput = "output"
	EventError  = "error"
)

// DefaultSchemaVersion is substituted for a Run's SchemaVersion when a
// stored row predates the schema_version column, so a database written
// before that column existed still loads instead of failing Validate.
const DefaultSchemaVersion = "recording_v0"

// Status is a Run's terminal (or pending) state.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusError   Status = "error"
	StatusPending Status = "pending"
)

// Event is one labeled payload within a Step. Timestamp is metadata
// and is excluded from every comparison the core performs.
type Event struct {
	Type      string      `json:"type"`
	Payload   value.Value `json:"payload"`
	Timestamp string      `json:"timestamp"`
}

// Step is one logical operation in a Run: a tool call, an LLM call, or
// similar. Idx equals the step's index in its Run's step sequence;
// Events preserves insertion order.
type Step struct {
	Idx    int     `json:"idx"`
	Name   string  `json:"name"`
	Events []Event `json:"events"`
}

// Run is one recorded execution: an ordered list of Steps plus the
// metadata needed to identify and audit it. Runs are immutable once
// ended; the core never mutates a Run it is given.
type Run struct {
	RunID          string      `json:"run_id"`
	SchemaVersion  string      `json:"schema_version"`
	Steps          []Step      `json:"steps"`
	EnvFingerprint value.Value `json:"env_fingerprint"`
	Status         Status      `json:"status"`
}

// InputPayloads returns the payloads of every EventInput event in s,
// in insertion order.
func (s Step) InputPayloads() []value.Value {
	return payloadsOfType(s.Events, EventInput)
}

// OutputPayloads returns the payloads of every EventOutput event in s,
// in insertion order.
func (s Step) OutputPayloads() []value.Value {
	return payloadsOfType(s.Events, EventOutput)
}

// HasError reports whether s contains at least one EventError event.
func (s Step) HasError() bool {
	for _, e := range s.Events {
		if e.Type == EventError {
			return true
		}
	}
	return false
}

// ErrorPayloads returns the payloads of every EventError event in s,
// in insertion order.
func (s Step) ErrorPayloads() []value.Value {
	return payloadsOfType(s.Events, EventError)
}

func payloadsOfType(events []Event, typ string) []value.Value {
	var out []value.Value
	for _, e := range events {
		if e.Type == typ {
			out = append(out, e.Payload)
		}
	}
	return out
}

// EventsValue renders a Step's full ordered event list as a Value
// (types and payloads only, no timestamps), the input to events_hash.
func (s Step) EventsValue() value.Value {
	seq := make(value.Sequence, len(s.Events))
	for i, e := range s.Events {
		seq[i] = value.Map{
			"type":    value.String(e.Type),
			"payload": e.Payload,
		}
	}
	return seq
}
