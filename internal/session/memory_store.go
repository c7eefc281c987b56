package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory registry with optional idle expiry.
// Entries live for the lifetime of the process unless an expiry is set.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*Entry
	expiry  time.Duration
	now     func() time.Time
}

// NewMemoryStore creates an in-memory session registry.
// expiry defines the idle timeout of an entry; 0 means no expiry.
func NewMemoryStore(expiry time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*Entry),
		expiry:  expiry,
		now:     time.Now,
	}
}

// Get returns the session ID for the conversation, or "" if unknown or expired.
func (s *MemoryStore) Get(_ context.Context, conversationID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[conversationID]
	if !ok {
		return "", nil
	}

	if s.expired(e) {
		delete(s.entries, conversationID)
		return "", nil
	}

	return e.SessionID, nil
}

// Set stores or overwrites the session ID for the conversation.
func (s *MemoryStore) Set(_ context.Context, conversationID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[conversationID] = &Entry{
		ConversationID: conversationID,
		SessionID:      sessionID,
		UpdatedAt:      s.now(),
	}
	return nil
}

// Delete removes the mapping for the conversation.
func (s *MemoryStore) Delete(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, conversationID)
	return nil
}

// Sweep drops expired entries and returns how many were removed.
func (s *MemoryStore) Sweep(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.expiry <= 0 {
		return 0
	}

	removed := 0
	for id, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) expired(e *Entry) bool {
	return s.expiry > 0 && s.now().Sub(e.UpdatedAt) > s.expiry
}
