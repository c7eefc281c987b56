package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxConn is the subset of *pgxpool.Pool used by PostgresStore.
type PgxConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Registry on a single Postgres table keyed by
// conversation ID.
type PostgresStore struct {
	db    PgxConn
	table string
}

// NewPostgresStore creates a Postgres-backed registry using the given table.
func NewPostgresStore(db PgxConn, table string) *PostgresStore {
	if table == "" {
		table = "call_sessions"
	}
	return &PostgresStore{db: db, table: table}
}

// OpenPostgres creates a connection pool and verifies connectivity.
func OpenPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the session table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	conversation_id   TEXT PRIMARY KEY,
	engine_session_id TEXT NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
)`, pgx.Identifier{s.table}.Sanitize()))
	if err != nil {
		return fmt.Errorf("create session table: %w", err)
	}
	return nil
}

// Get retrieves the session ID for a conversation.
func (s *PostgresStore) Get(ctx context.Context, conversationID string) (string, error) {
	var sessionID string
	err := s.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT engine_session_id FROM %s WHERE conversation_id = $1`, pgx.Identifier{s.table}.Sanitize()),
		conversationID,
	).Scan(&sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("postgres get: %w", err)
	}
	return sessionID, nil
}

// Set upserts the session ID for a conversation.
func (s *PostgresStore) Set(ctx context.Context, conversationID, sessionID string) error {
	_, err := s.db.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (conversation_id, engine_session_id, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (conversation_id) DO UPDATE
SET engine_session_id = EXCLUDED.engine_session_id, updated_at = EXCLUDED.updated_at`, pgx.Identifier{s.table}.Sanitize()),
		conversationID, sessionID,
	)
	if err != nil {
		return fmt.Errorf("postgres set: %w", err)
	}
	return nil
}

// Delete removes the mapping for a conversation.
func (s *PostgresStore) Delete(ctx context.Context, conversationID string) error {
	_, err := s.db.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE conversation_id = $1`, pgx.Identifier{s.table}.Sanitize()),
		conversationID,
	)
	if err != nil {
		return fmt.Errorf("postgres delete: %w", err)
	}
	return nil
}
