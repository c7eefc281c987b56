// Package engine is a client for the Teneo Interaction Engine (TIE) API, the
// dialogue engine that produces the spoken replies of a call.
package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// ChannelVonageVoice tags inputs that come from a phone call.
const ChannelVonageVoice = "vonage_voice"

// Well-known output parameters that steer call control.
const (
	ParamHangup   = "hangup"
	ParamLiveChat = "liveChat"
	ParamToNumber = "toNumber"
)

// Input is one user turn sent to the engine.
type Input struct {
	Text    string
	Channel string

	// Parameters are sent as additional request fields. Reserved names
	// (viewtype, userinput, text, clientOrigin) are dropped.
	Parameters map[string]string
}

// Output is the engine's answer for a turn.
type Output struct {
	Text       string         `json:"text"`
	Emotion    string         `json:"emotion,omitempty"`
	Link       string         `json:"link,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Reply is the decoded engine response.
type Reply struct {
	Status    int    `json:"status"`
	Message   string `json:"message,omitempty"`
	Output    Output `json:"output"`
	SessionID string `json:"sessionId"`
}

// Param returns an output parameter rendered as a string, or "".
func (r *Reply) Param(name string) string {
	v, ok := r.Output.Parameters[name]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// Flag reports whether an output parameter is set to a truthy value. The
// engine sends parameters as strings, so "false", "0", "no" and "off" are
// treated as unset alongside the empty string.
func (r *Reply) Flag(name string) bool {
	v, ok := r.Output.Parameters[name]
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "", "false", "0", "no", "off":
			return false
		}
		return true
	default:
		return true
	}
}
