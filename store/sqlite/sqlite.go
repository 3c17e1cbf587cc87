// Package sqlite implements reef.Storage using pure-Go SQLite.
// Zero CGO required.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nevindra/reef"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// StorageOption configures a SQLite Storage.
type StorageOption func(*Storage)

// WithLogger sets a structured logger for the store. When set, the store
// emits debug logs for every operation including timing and row counts.
func WithLogger(l *slog.Logger) StorageOption {
	return func(s *Storage) { s.logger = l }
}

// Storage implements reef.Storage backed by a local SQLite file. Message
// content blocks are stored as JSON text.
type Storage struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ reef.Storage = (*Storage)(nil)

// nopLogger discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// New creates a Storage using a local SQLite file at dbPath. It opens a
// single shared connection pool with SetMaxOpenConns(1) so all goroutines
// serialize through one connection, eliminating SQLITE_BUSY errors from
// concurrent writers.
func New(dbPath string, opts ...StorageOption) *Storage {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	s := &Storage{db: db, logger: nopLogger}
	for _, o := range opts {
		o(s)
	}
	s.logger.Debug("sqlite: storage opened", "path", dbPath)
	return s
}

// Init creates the messages table and its indexes.
func (s *Storage) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	_, _ = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(user_id, session_id, created_at)`)
	return nil
}

// Close closes the underlying database handle.
func (s *Storage) Close() error { return s.db.Close() }

// SaveMessage appends a message to the session's history.
func (s *Storage) SaveMessage(ctx context.Context, userID, sessionID string, msg reef.ConversationMessage) error {
	start := time.Now()
	content, err := json.Marshal(msg.Content)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (id, user_id, session_id, role, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), userID, sessionID, string(msg.Role), string(content), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	s.logger.Debug("sqlite: message saved",
		"user", userID, "session", sessionID, "role", msg.Role,
		"duration", time.Since(start))
	return nil
}

// History returns the session's messages in insertion order. limit <= 0
// returns the full history; otherwise the most recent limit messages.
func (s *Storage) History(ctx context.Context, userID, sessionID string, limit int) ([]reef.ConversationMessage, error) {
	query := `SELECT role, content FROM messages
		WHERE user_id = ? AND session_id = ?
		ORDER BY created_at DESC, id DESC`
	args := []any{userID, sessionID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []reef.ConversationMessage
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		var blocks []reef.ContentBlock
		if err := json.Unmarshal([]byte(content), &blocks); err != nil {
			return nil, fmt.Errorf("unmarshal content: %w", err)
		}
		msgs = append(msgs, reef.ConversationMessage{Role: reef.ParticipantRole(role), Content: blocks})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	// Rows come newest-first so LIMIT keeps the most recent; reverse back to
	// insertion order for the conversation builder.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
