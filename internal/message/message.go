// Package message persists chat transcripts: the user's prompt at session
// creation and the assistant's response after the stream completes.
package message

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("message not found")

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultConversationLimit caps ByConversation listings when the caller
// passes no limit. Both backends apply it.
const DefaultConversationLimit = 50

// Message is one persisted transcript entry. Prompts and assistant records
// are immutable once written.
type Message struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	SessionID      string    `json:"session_id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	ModelID        string    `json:"model_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store persists and retrieves transcript messages.
type Store interface {
	Save(ctx context.Context, m Message) error
	// LatestPrompt returns the most recent user message matching the
	// owner/model pair and, when non-empty, the conversation key. The prompt
	// text is never carried on the session record itself.
	LatestPrompt(ctx context.Context, ownerID, modelID, conversationID string) (Message, error)
	BySession(ctx context.Context, sessionID string) ([]Message, error)
	ByConversation(ctx context.Context, conversationID string, limit int) ([]Message, error)
	Close() error
}

// NewStore creates a postgres-backed store when configured, otherwise in-memory.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}
