package reef

import (
	"context"
	"sync"
)

// Storage persists conversation history. The agent core never calls it;
// callers load history before Respond and save the exchange after. Keys are
// (userID, sessionID) so independent sessions never share history.
type Storage interface {
	// SaveMessage appends a message to the session's history.
	SaveMessage(ctx context.Context, userID, sessionID string, msg ConversationMessage) error
	// History returns the session's messages in insertion order. limit <= 0
	// returns the full history; otherwise the most recent limit messages.
	History(ctx context.Context, userID, sessionID string, limit int) ([]ConversationMessage, error)
}

// MemoryStorage is an in-process Storage for tests and single-run tools.
// Safe for concurrent use.
type MemoryStorage struct {
	mu       sync.Mutex
	sessions map[string][]ConversationMessage
}

var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{sessions: make(map[string][]ConversationMessage)}
}

func sessionKey(userID, sessionID string) string {
	return userID + "\x00" + sessionID
}

// SaveMessage appends a message to the session's history.
func (s *MemoryStorage) SaveMessage(_ context.Context, userID, sessionID string, msg ConversationMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey(userID, sessionID)
	s.sessions[key] = append(s.sessions[key], msg)
	return nil
}

// History returns the session's messages in insertion order.
func (s *MemoryStorage) History(_ context.Context, userID, sessionID string, limit int) ([]ConversationMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.sessions[sessionKey(userID, sessionID)]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]ConversationMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}
