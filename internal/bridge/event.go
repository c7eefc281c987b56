// Package bridge turns voice webhook events into dialogue-engine turns and
// engine replies into call-control responses.
package bridge

import (
	"encoding/json"
	"fmt"
)

// Legs is the call-leg context of an event. The platform sends it either as
// a single string or as an array of strings.
type Legs []string

// UnmarshalJSON accepts a string, an array of strings, or null.
func (l *Legs) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*l = nil
		} else {
			*l = Legs{one}
		}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("uuid: expected string or array of strings")
	}
	*l = many
	return nil
}

// Event is an inbound answer/input webhook body.
type Event struct {
	ConversationUUID string          `json:"conversation_uuid"`
	UUID             Legs            `json:"uuid,omitempty"`
	To               string          `json:"to,omitempty"`
	From             string          `json:"from,omitempty"`
	Speech           json.RawMessage `json:"speech,omitempty"`
}

// ParseEvent decodes a webhook body. Only the envelope is validated; the
// speech payload is inspected lazily by Transcript.
func ParseEvent(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("parse event: %w", err)
	}
	return &ev, nil
}

// Transcript returns the first recognized speech result, or "" when the
// event carries no usable speech.
func (e *Event) Transcript() string {
	if len(e.Speech) == 0 {
		return ""
	}

	var speech struct {
		Results []struct {
			Text string `json:"text"`
		} `json:"results"`
	}
	if err := json.Unmarshal(e.Speech, &speech); err != nil {
		return ""
	}
	if len(speech.Results) == 0 {
		return ""
	}
	return speech.Results[0].Text
}

// CallEvent is a call status callback body.
type CallEvent struct {
	Status           string `json:"status"`
	ConversationUUID string `json:"conversation_uuid"`
	UUID             string `json:"uuid,omitempty"`
	Direction        string `json:"direction,omitempty"`
	Timestamp        string `json:"timestamp,omitempty"`
}

// Call status values that matter to the bridge.
const (
	StatusCompleted = "completed"
)
