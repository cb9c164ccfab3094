// Package draft manages the lifecycle of in-progress AI-assisted reply
// drafts: debounced persistence, versioning, restore, history, and a fixed
// retention TTL.
package draft

import (
	"strings"
	"time"
)

// TTL is the fixed retention window for a saved draft. Drafts past
// CreatedAt+TTL are eligible for sweep but are never deleted by the
// manager itself.
const TTL = 7 * 24 * time.Hour

// DefaultDebounce is the save debounce window used when the caller does
// not override it.
const DefaultDebounce = 5 * time.Second

// Draft represents one saved snapshot of a reply in progress.
type Draft struct {
	// ID is a ULID assigned at persistence time
	ID string `json:"id"`

	// ConversationID and MessageID identify the reply target. A pair may
	// have many versions but at most one active draft at a time.
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`

	// DraftText is the current edited content
	DraftText string `json:"draft_text"`

	// Confidence is the carried-through quality score (0-100) from the
	// originating AI suggestion; opaque to this package
	Confidence float64 `json:"confidence"`

	// Version increases monotonically per (conversation, message) pair,
	// starting at 1. The caller supplies it, typically from History.
	Version int `json:"version"`

	// IsActive is true for the latest draft of a pair; superseded
	// versions are flipped to false before a new one is written
	IsActive bool `json:"is_active"`

	// CreatedAt is the Unix timestamp when the draft was committed
	CreatedAt int64 `json:"created_at"`

	// ExpiresAt is CreatedAt + TTL as a Unix timestamp
	ExpiresAt int64 `json:"expires_at"`
}

// Key identifies the reply target a draft belongs to.
type Key struct {
	ConversationID string
	MessageID      string
}

// Valid reports whether both key components are non-empty.
func (k Key) Valid() bool {
	return strings.TrimSpace(k.ConversationID) != "" && strings.TrimSpace(k.MessageID) != ""
}

// Store is the persistence collaborator for drafts. Implementations must
// honor ExpiresAt when purging. See internal/db for the SQLite store.
type Store interface {
	// Insert writes a new draft document.
	Insert(d *Draft) error

	// ActiveByKey returns all drafts for the key with IsActive true.
	// More than one entry indicates a supersession race; callers decide
	// how to resolve it.
	ActiveByKey(conversationID, messageID string) ([]Draft, error)

	// Deactivate flips IsActive to false for the given draft ID.
	Deactivate(id string) error

	// History returns all versions for the key ordered by version
	// ascending, regardless of active flag.
	History(conversationID, messageID string) ([]Draft, error)

	// DeleteByKey removes every draft for the key and returns the count.
	DeleteByKey(conversationID, messageID string) (int, error)

	// PurgeExpired removes drafts whose ExpiresAt is at or before now.
	PurgeExpired(now int64) (int, error)
}
