// Package postgres implements reef.Storage using PostgreSQL.
//
// Storage accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nevindra/reef"
)

// Storage implements reef.Storage backed by PostgreSQL.
type Storage struct {
	pool *pgxpool.Pool
}

var _ reef.Storage = (*Storage)(nil)

// New creates a Storage using an existing pgxpool.Pool.
// The caller owns the pool and is responsible for closing it.
func New(pool *pgxpool.Pool) *Storage {
	return &Storage{pool: pool}
}

// Init creates the messages table and its indexes.
func (s *Storage) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS messages (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_messages_session
		ON messages (user_id, session_id, created_at)`)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// SaveMessage appends a message to the session's history.
func (s *Storage) SaveMessage(ctx context.Context, userID, sessionID string, msg reef.ConversationMessage) error {
	content, err := json.Marshal(msg.Content)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO messages (id, user_id, session_id, role, content, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), userID, sessionID, string(msg.Role), content, time.Now())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// History returns the session's messages in insertion order. limit <= 0
// returns the full history; otherwise the most recent limit messages.
func (s *Storage) History(ctx context.Context, userID, sessionID string, limit int) ([]reef.ConversationMessage, error) {
	query := `SELECT role, content FROM messages
		WHERE user_id = $1 AND session_id = $2
		ORDER BY created_at DESC, id DESC`
	args := []any{userID, sessionID}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []reef.ConversationMessage
	for rows.Next() {
		var role string
		var content []byte
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		var blocks []reef.ContentBlock
		if err := json.Unmarshal(content, &blocks); err != nil {
			return nil, fmt.Errorf("unmarshal content: %w", err)
		}
		msgs = append(msgs, reef.ConversationMessage{Role: reef.ParticipantRole(role), Content: blocks})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
