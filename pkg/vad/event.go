package vad

import (
	"encoding/json"
	"fmt"
)

// EventType is the discriminant carried in the "type" field of every
// serialised [Event]. Consumers use it to tell detection events apart from
// other message kinds on a shared channel.
const EventType = "vad"

// Event reports a single speaking-state transition. Events are
// edge-triggered: one is produced when the stream flips from silence to
// speech or back, never per block.
type Event struct {
	// Speaking is the new state: true when speech just started, false when
	// it just ended.
	Speaking bool

	// RMS is the root-mean-square amplitude of the block that triggered the
	// transition.
	RMS float64
}

// wireEvent is the JSON wire form of an Event. The shape is fixed for
// compatibility with existing consumers: a "type" discriminant, a boolean
// speaking flag, and a floating-point RMS value.
type wireEvent struct {
	Type     string  `json:"type"`
	Speaking bool    `json:"speaking"`
	RMS      float64 `json:"rms"`
}

// MarshalJSON encodes the event in the fixed wire shape
// {"type":"vad","speaking":<bool>,"rms":<number>}.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEvent{Type: EventType, Speaking: e.Speaking, RMS: e.RMS})
}

// UnmarshalJSON decodes an event from the wire shape, rejecting records
// whose "type" field is not [EventType].
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("vad: decode event: %w", err)
	}
	if w.Type != EventType {
		return fmt.Errorf("vad: unexpected event type %q", w.Type)
	}
	e.Speaking = w.Speaking
	e.RMS = w.RMS
	return nil
}

// State is a read-only snapshot of a [Detector]'s internal counters,
// exposed for diagnostics. Mutating a State has no effect on the detector
// that produced it.
type State struct {
	// AboveCount is the current run of consecutive above-threshold blocks.
	AboveCount int

	// BelowCount is the current run of consecutive below-threshold blocks.
	BelowCount int

	// Speaking is the current speaking state.
	Speaking bool
}
