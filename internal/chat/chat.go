// Package chat composes the streaming pipeline: session lifecycle, the
// cache-or-dispatch decision, command interception and exactly-once
// persistence of the assistant's response.
package chat

import (
	"errors"
	"fmt"

	"github.com/Whalli/whalli-sub000/internal/policy"
)

var (
	// ErrInvalidRequest covers malformed start requests (missing owner,
	// model or prompt).
	ErrInvalidRequest = errors.New("invalid request")

	// ErrModelNotFound means the requested model is not in the catalog.
	ErrModelNotFound = errors.New("model not found")

	// ErrConversationNotFound covers both unknown conversations and
	// conversations owned by someone else.
	ErrConversationNotFound = errors.New("conversation not found")
)

// AccessDeniedError is returned when the owner's tier does not cover the
// requested model. Needed carries the lowest tier that would.
type AccessDeniedError struct {
	ModelID string
	Tier    policy.Tier
	Needed  policy.Tier
}

func (e *AccessDeniedError) Error() string {
	if e.Needed != "" {
		return fmt.Sprintf("model %q requires the %s plan (current plan: %s)", e.ModelID, e.Needed, e.Tier)
	}
	return fmt.Sprintf("model %q is not available on the %s plan", e.ModelID, e.Tier)
}

// ModelInfo is one catalog entry as the orchestrator sees it.
type ModelInfo struct {
	ID          string
	Vendor      string
	DisplayName string
}
