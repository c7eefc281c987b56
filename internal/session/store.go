// Package session maps telephony conversation identifiers to dialogue-engine
// session identifiers so that consecutive turns of one call continue the same
// engine conversation.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by backend clients when a key does not exist.
// Registries translate it into an empty session ID.
var ErrNotFound = errors.New("session: key not found")

// Entry is a stored conversation-to-session mapping.
type Entry struct {
	ConversationID string    `json:"conversation_id"`
	SessionID      string    `json:"session_id"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Registry stores at most one engine session ID per conversation ID.
type Registry interface {
	// Get returns the engine session ID stored for the conversation, or ""
	// when none was ever stored. Unknown conversations are not an error.
	Get(ctx context.Context, conversationID string) (string, error)

	// Set stores or overwrites the engine session ID for the conversation.
	Set(ctx context.Context, conversationID, sessionID string) error
}

// Deleter is implemented by registries that can forget a conversation.
type Deleter interface {
	Delete(ctx context.Context, conversationID string) error
}

// Expirer is implemented by registries that hold expired entries in process
// and need a periodic sweep to release them.
type Expirer interface {
	Sweep(ctx context.Context) int
}
