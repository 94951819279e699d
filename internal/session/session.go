// Package session stores the short-lived record binding one prompt to one
// model for a single streamed exchange.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("session not found")

// DefaultTTL is the fixed lifetime of a session. ExpiresAt is always
// CreatedAt + TTL and never changes after creation.
const DefaultTTL = 10 * time.Minute

// Session is created by the orchestrator's start operation, read once by the
// stream operation and never updated. Expired sessions are reaped lazily: a
// stream request against one fails instead of being actively collected.
type Session struct {
	ID             string    `json:"session_id"`
	OwnerID        string    `json:"owner_id"`
	ModelID        string    `json:"model_id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// New builds a session with a fresh ID and the fixed TTL applied.
func New(ownerID, modelID, conversationID string, ttl time.Duration) *Session {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now().UTC()
	return &Session{
		ID:             uuid.NewString(),
		OwnerID:        ownerID,
		ModelID:        modelID,
		ConversationID: strings.TrimSpace(conversationID),
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
	}
}

// Expired reports whether the session is past its TTL at the given instant.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Store persists sessions. Sessions are immutable after Create, so Get needs
// no locking against writers beyond the store's own synchronization.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Close() error
}

// NewStore creates a postgres-backed store when configured, otherwise in-memory.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}
