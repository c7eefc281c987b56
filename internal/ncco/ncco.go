// Package ncco builds Vonage Call Control Objects, the JSON action lists that
// tell the voice platform what to do next on a call.
package ncco

// Action names.
const (
	ActionTalk    = "talk"
	ActionInput   = "input"
	ActionConnect = "connect"
)

// EventTypeSynchronous makes the platform wait for the action to finish
// before moving on.
const EventTypeSynchronous = "synchronous"

// Action is one element of an NCCO.
type Action interface {
	Name() string
}

// NCCO is an ordered list of actions.
type NCCO []Action

// Talk speaks text to the caller.
type Talk struct {
	Action    string `json:"action"`
	EventType string `json:"eventType,omitempty"`
	Text      string `json:"text"`
	VoiceName string `json:"voiceName,omitempty"`
	BargeIn   bool   `json:"bargeIn"`
	Loop      int    `json:"loop"`
}

// Name implements Action.
func (t Talk) Name() string { return ActionTalk }

// Speech configures speech recognition for an Input action.
type Speech struct {
	Language     string   `json:"language,omitempty"`
	UUID         []string `json:"uuid,omitempty"`
	EndOnSilence int      `json:"endOnSilence,omitempty"`
}

// Input collects caller speech and posts the result to EventURL.
type Input struct {
	Action   string   `json:"action"`
	Speech   Speech   `json:"speech"`
	EventURL []string `json:"eventUrl"`
}

// Name implements Action.
func (i Input) Name() string { return ActionInput }

// Endpoint is a connect target.
type Endpoint struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

// Connect bridges the call to another endpoint.
type Connect struct {
	Action    string     `json:"action"`
	EventType string     `json:"eventType,omitempty"`
	Timeout   int        `json:"timeout"`
	From      string     `json:"from,omitempty"`
	Endpoint  []Endpoint `json:"endpoint"`
}

// Name implements Action.
func (c Connect) Name() string { return ActionConnect }
