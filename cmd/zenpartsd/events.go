package main

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ============================================================================
// Client requests
// ============================================================================
// Requests from the screen's clients (IPC, HTTP, websocket UI) are reducer
// Events; TimedEvent adds the arrival time when the daemon loop receives them.
// ============================================================================

// PreferenceChange is a widget value change. Value is the decoded widget value
// (number, string or boolean). Reply, if set, receives the outcome once the
// sink writes have been issued.
type PreferenceChange struct {
	Key   string       `json:"key"`
	Value any          `json:"value"`
	Reply chan<- error `json:"-"`
}

func (PreferenceChange) eventMarker() {}

// PreferenceClick is a tap on an action preference.
type PreferenceClick struct {
	Key   string       `json:"key"`
	Reply chan<- error `json:"-"`
}

func (PreferenceClick) eventMarker() {}

// RebuildPanel re-runs screen creation: capability probes and initial values.
type RebuildPanel struct {
	Reply chan<- error `json:"-"`
}

func (RebuildPanel) eventMarker() {}

// RequestStateSnapshot asks the daemon for a copy of the screen.
type RequestStateSnapshot struct {
	Reply chan<- StateSnapshot `json:"-"`
}

func (RequestStateSnapshot) eventMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================
// EventEnvelope wraps events for JSON serialization/deserialization.
// Since Go doesn't have union types, we use a type discriminator.
// ============================================================================

// EventEnvelope wraps an event with a type discriminator for JSON marshaling
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	envelopePreferenceChange = "preference_change"
	envelopePreferenceClick  = "preference_click"
	envelopeRebuildPanel     = "rebuild_panel"
	envelopeGetPanel         = "get_panel"
)

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case envelopePreferenceChange:
		var a PreferenceChange
		if err := decodeData(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal PreferenceChange: %w", err)
		}
		if a.Key == "" {
			return nil, fmt.Errorf("unmarshal PreferenceChange: key is required")
		}
		return a, nil

	case envelopePreferenceClick:
		var a PreferenceClick
		if err := decodeData(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal PreferenceClick: %w", err)
		}
		if a.Key == "" {
			return nil, fmt.Errorf("unmarshal PreferenceClick: key is required")
		}
		return a, nil

	case envelopeRebuildPanel:
		return RebuildPanel{}, nil

	case envelopeGetPanel:
		return RequestStateSnapshot{}, nil

	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

// decodeData decodes an envelope payload keeping numbers as json.Number so
// integer widget values are not routed through float64.
func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("missing data")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// MarshalEvent serializes an Event into a JSON envelope with type discriminator
func MarshalEvent(e Event) ([]byte, error) {
	var env EventEnvelope

	switch e := e.(type) {
	case PreferenceChange:
		env.Type = envelopePreferenceChange
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal PreferenceChange: %w", err)
		}
		env.Data = data

	case PreferenceClick:
		env.Type = envelopePreferenceClick
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal PreferenceClick: %w", err)
		}
		env.Data = data

	case RebuildPanel:
		env.Type = envelopeRebuildPanel

	case RequestStateSnapshot:
		env.Type = envelopeGetPanel

	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	return json.Marshal(env)
}
