package bridge

import (
	"sync"

	"github.com/szaher/voicebridge/internal/engine"
	"github.com/szaher/voicebridge/internal/ncco"
)

// Outcome names the shape of a rendered response.
type Outcome string

const (
	OutcomeContinue Outcome = "continue"
	OutcomeTransfer Outcome = "transfer"
	OutcomeHangup   Outcome = "hangup"
	OutcomeFallback Outcome = "fallback"
)

// DefaultTransferTimeout is the connect action ring timeout in seconds.
const DefaultTransferTimeout = 45

// Settings control how replies are voiced.
type Settings struct {
	Voice        string
	Language     string
	BargeIn      bool
	EndOnSilence int
	// EventURL receives the next input event of the call.
	EventURL string

	TransferTimeout int
	// DefaultTransferNumber is used when a live-chat reply names no number.
	DefaultTransferNumber string

	FallbackText string
}

// Renderer converts engine replies into NCCOs. Settings may be swapped while
// the server runs.
type Renderer struct {
	mu       sync.RWMutex
	settings Settings
}

// NewRenderer creates a renderer with the given settings.
func NewRenderer(s Settings) *Renderer {
	return &Renderer{settings: s}
}

// Settings returns the current settings.
func (r *Renderer) Settings() Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings
}

// Update replaces the settings used for subsequent renders.
func (r *Renderer) Update(s Settings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings = s
}

// Render picks the response for a reply. A truthy hangup flag wins over a
// truthy liveChat flag; anything else keeps the conversation going.
func (r *Renderer) Render(reply *engine.Reply, ev *Event) (ncco.NCCO, Outcome) {
	s := r.Settings()

	if reply.Flag(engine.ParamHangup) {
		return ncco.NCCO{r.syncTalk(s, reply.Output.Text)}, OutcomeHangup
	}

	if reply.Flag(engine.ParamLiveChat) {
		number := reply.Param(engine.ParamToNumber)
		if number == "" {
			number = s.DefaultTransferNumber
		}
		if number != "" {
			return r.transfer(s, reply.Output.Text, number, ev.To), OutcomeTransfer
		}
	}

	return r.listen(s, reply.Output.Text, ev.UUID), OutcomeContinue
}

// Fallback is returned when the engine could not produce a reply. It speaks
// the apology and ends the call.
func (r *Renderer) Fallback() ncco.NCCO {
	s := r.Settings()
	return ncco.NCCO{r.syncTalk(s, s.FallbackText)}
}

func (r *Renderer) syncTalk(s Settings, text string) ncco.Talk {
	return ncco.Talk{
		Action:    ncco.ActionTalk,
		EventType: ncco.EventTypeSynchronous,
		Text:      text,
		VoiceName: s.Voice,
		Loop:      1,
	}
}

func (r *Renderer) transfer(s Settings, text, number, from string) ncco.NCCO {
	timeout := s.TransferTimeout
	if timeout <= 0 {
		timeout = DefaultTransferTimeout
	}
	return ncco.NCCO{
		ncco.Talk{
			Action:    ncco.ActionTalk,
			Text:      text,
			VoiceName: s.Voice,
			Loop:      1,
		},
		ncco.Connect{
			Action:    ncco.ActionConnect,
			EventType: ncco.EventTypeSynchronous,
			Timeout:   timeout,
			From:      from,
			Endpoint:  []ncco.Endpoint{{Type: "phone", Number: number}},
		},
	}
}

func (r *Renderer) listen(s Settings, text string, legs Legs) ncco.NCCO {
	endOnSilence := s.EndOnSilence
	if endOnSilence <= 0 {
		endOnSilence = 1
	}
	return ncco.NCCO{
		ncco.Talk{
			Action:    ncco.ActionTalk,
			Text:      text,
			VoiceName: s.Voice,
			BargeIn:   s.BargeIn,
			Loop:      1,
		},
		ncco.Input{
			Action: ncco.ActionInput,
			Speech: ncco.Speech{
				Language:     s.Language,
				UUID:         []string(legs),
				EndOnSilence: endOnSilence,
			},
			EventURL: []string{s.EventURL},
		},
	}
}
