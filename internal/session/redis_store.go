package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// RedisClient is the interface for Redis operations needed by the session store.
// Get must return ErrNotFound when the key does not exist.
type RedisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// RedisStore implements Registry backed by Redis.
type RedisStore struct {
	client RedisClient
	prefix string
	ttl    time.Duration
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithPrefix sets the key prefix for session keys.
func WithPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// WithTTL sets the entry TTL. Zero keeps keys until deleted.
func WithTTL(ttl time.Duration) RedisStoreOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

// NewRedisStore creates a new Redis-backed session registry.
func NewRedisStore(client RedisClient, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		client: client,
		prefix: "voicebridge:session:",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(conversationID string) string {
	return s.prefix + conversationID
}

// Get retrieves the session ID for a conversation.
func (s *RedisStore) Get(ctx context.Context, conversationID string) (string, error) {
	data, err := s.client.Get(ctx, s.key(conversationID))
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}

	var e Entry
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return "", fmt.Errorf("unmarshal entry: %w", err)
	}
	return e.SessionID, nil
}

// Set stores the session ID for a conversation and refreshes its TTL.
func (s *RedisStore) Set(ctx context.Context, conversationID, sessionID string) error {
	data, err := json.Marshal(Entry{
		ConversationID: conversationID,
		SessionID:      sessionID,
		UpdatedAt:      time.Now(),
	})
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	if err := s.client.Set(ctx, s.key(conversationID), string(data), s.ttl); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes the mapping for a conversation.
func (s *RedisStore) Delete(ctx context.Context, conversationID string) error {
	return s.client.Del(ctx, s.key(conversationID))
}
