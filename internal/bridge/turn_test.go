package bridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/szaher/voicebridge/internal/engine"
	"github.com/szaher/voicebridge/internal/session"
	"github.com/szaher/voicebridge/internal/testutil"
)

type sentInput struct {
	sessionID string
	input     engine.Input
}

// fakeEngine replays canned replies and records what it was sent.
type fakeEngine struct {
	mu      sync.Mutex
	replies []*engine.Reply
	err     error
	sent    []sentInput
	closed  []string
}

func (f *fakeEngine) SendInput(_ context.Context, sessionID string, in engine.Input) (*engine.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, sentInput{sessionID: sessionID, input: in})
	if f.err != nil {
		return nil, f.err
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return reply, nil
}

func (f *fakeEngine) Close(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, sessionID)
	return nil
}

// failingRegistry fails every operation.
type failingRegistry struct{}

func (failingRegistry) Get(context.Context, string) (string, error) {
	return "", errors.New("store unavailable")
}

func (failingRegistry) Set(context.Context, string, string) error {
	return errors.New("store unavailable")
}

func newTestHandler(eng Engine, reg session.Registry) *Handler {
	return NewHandler(eng, reg, NewRenderer(testSettings()),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func mustParse(t *testing.T, body string) *Event {
	t.Helper()
	ev, err := ParseEvent([]byte(body))
	if err != nil {
		t.Fatalf("ParseEvent returned unexpected error: %v", err)
	}
	return ev
}

func TestTurnContinuesSession(t *testing.T) {
	eng := &fakeEngine{replies: []*engine.Reply{
		{Output: engine.Output{Text: "Hi there", Parameters: map[string]any{}}, SessionID: "sess1"},
		{Output: engine.Output{Text: "Sure"}, SessionID: "sess1"},
	}}
	reg := session.NewMemoryStore(0)
	h := newTestHandler(eng, reg)
	ctx := context.Background()

	body := `{"conversation_uuid":"abc","speech":{"results":[{"text":"hello"}]},"to":"+1555000","uuid":["leg1"]}`
	res := h.Turn(ctx, mustParse(t, body))

	if res.Err != nil {
		t.Fatalf("Turn returned unexpected error: %v", res.Err)
	}
	if res.Outcome != OutcomeContinue {
		t.Errorf("Outcome = %q, want %q", res.Outcome, OutcomeContinue)
	}
	actions := testutil.DecodeActions(t, testutil.MustMarshalJSON(t, res.NCCO))
	if len(actions) != 2 || actions[0]["text"] != "Hi there" || actions[1]["action"] != "input" {
		t.Errorf("NCCO = %v, want talk Hi there + input", actions)
	}

	if eng.sent[0].sessionID != "" {
		t.Errorf("first turn sent session %q, want empty", eng.sent[0].sessionID)
	}
	if eng.sent[0].input.Text != "hello" || eng.sent[0].input.Channel != "vonage_voice" {
		t.Errorf("first turn input = %+v, want text hello channel vonage_voice", eng.sent[0].input)
	}
	if got, _ := reg.Get(ctx, "abc"); got != "sess1" {
		t.Errorf("registry holds %q, want %q", got, "sess1")
	}

	h.Turn(ctx, mustParse(t, `{"conversation_uuid":"abc","speech":{"results":[{"text":"more"}]}}`))
	if eng.sent[1].sessionID != "sess1" {
		t.Errorf("second turn sent session %q, want %q", eng.sent[1].sessionID, "sess1")
	}
}

func TestTurnStoresRotatedSession(t *testing.T) {
	eng := &fakeEngine{replies: []*engine.Reply{{Output: engine.Output{Text: "ok"}, SessionID: "sess-new"}}}
	reg := session.NewMemoryStore(0)
	_ = reg.Set(context.Background(), "abc", "sess-old")
	h := newTestHandler(eng, reg)

	h.Turn(context.Background(), &Event{ConversationUUID: "abc"})

	if eng.sent[0].sessionID != "sess-old" {
		t.Errorf("sent session %q, want %q", eng.sent[0].sessionID, "sess-old")
	}
	if got, _ := reg.Get(context.Background(), "abc"); got != "sess-new" {
		t.Errorf("registry holds %q, want %q", got, "sess-new")
	}
}

func TestTurnWithoutSpeechSendsEmptyTranscript(t *testing.T) {
	eng := &fakeEngine{replies: []*engine.Reply{{Output: engine.Output{Text: "Welcome"}, SessionID: "s"}}}
	h := newTestHandler(eng, session.NewMemoryStore(0))

	res := h.Turn(context.Background(), mustParse(t, `{"conversation_uuid":"abc","to":"+1555000"}`))
	if res.Err != nil {
		t.Fatalf("Turn returned unexpected error: %v", res.Err)
	}
	if len(eng.sent) != 1 || eng.sent[0].input.Text != "" {
		t.Errorf("engine input = %+v, want empty transcript", eng.sent)
	}
}

func TestTurnEngineFailureFallsBack(t *testing.T) {
	eng := &fakeEngine{err: &engine.Error{HTTPStatus: 503}}
	reg := session.NewMemoryStore(0)
	_ = reg.Set(context.Background(), "abc", "sess1")
	h := newTestHandler(eng, reg)

	res := h.Turn(context.Background(), &Event{ConversationUUID: "abc"})

	if res.Err == nil {
		t.Fatal("Result.Err should carry the engine failure")
	}
	var engErr *engine.Error
	if !errors.As(res.Err, &engErr) {
		t.Errorf("Result.Err = %T, want *engine.Error", res.Err)
	}
	if res.Outcome != OutcomeFallback {
		t.Errorf("Outcome = %q, want %q", res.Outcome, OutcomeFallback)
	}
	actions := testutil.DecodeActions(t, testutil.MustMarshalJSON(t, res.NCCO))
	if len(actions) != 1 || actions[0]["text"] != "Sorry, something went wrong." {
		t.Errorf("NCCO = %v, want the fallback apology", actions)
	}
	if got, _ := reg.Get(context.Background(), "abc"); got != "sess1" {
		t.Errorf("registry holds %q after failure, want it unchanged", got)
	}
}

func TestTurnRegistryFailureStillAnswers(t *testing.T) {
	eng := &fakeEngine{replies: []*engine.Reply{{Output: engine.Output{Text: "Hi"}, SessionID: "s"}}}
	h := newTestHandler(eng, failingRegistry{})

	res := h.Turn(context.Background(), &Event{ConversationUUID: "abc"})
	if res.Err != nil {
		t.Fatalf("Turn returned unexpected error: %v", res.Err)
	}
	if res.Outcome != OutcomeContinue {
		t.Errorf("Outcome = %q, want %q", res.Outcome, OutcomeContinue)
	}
	if eng.sent[0].sessionID != "" {
		t.Errorf("sent session %q, want empty after lookup failure", eng.sent[0].sessionID)
	}
}

func TestCallStatusCompletedReleasesSession(t *testing.T) {
	eng := &fakeEngine{}
	reg := session.NewMemoryStore(0)
	_ = reg.Set(context.Background(), "abc", "sess1")
	h := newTestHandler(eng, reg)

	h.CallStatus(context.Background(), &CallEvent{Status: "answered", ConversationUUID: "abc"})
	if len(eng.closed) != 0 || reg.Len() != 1 {
		t.Fatalf("non-final status released the session: closed=%v len=%d", eng.closed, reg.Len())
	}

	h.CallStatus(context.Background(), &CallEvent{Status: StatusCompleted, ConversationUUID: "abc"})
	if len(eng.closed) != 1 || eng.closed[0] != "sess1" {
		t.Errorf("closed = %v, want [sess1]", eng.closed)
	}
	if reg.Len() != 0 {
		t.Errorf("registry Len = %d, want 0", reg.Len())
	}
}

func TestCallStatusCompletedUnknownConversation(t *testing.T) {
	eng := &fakeEngine{}
	h := newTestHandler(eng, session.NewMemoryStore(0))

	h.CallStatus(context.Background(), &CallEvent{Status: StatusCompleted, ConversationUUID: "nope"})
	if len(eng.closed) != 0 {
		t.Errorf("closed = %v, want none", eng.closed)
	}
}
