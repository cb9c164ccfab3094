// Package inbox models incoming creator messages and builds the daily
// "Meaningful 10" digest from them.
package inbox

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/metamonk/yipyap/internal/errors"
)

// Message represents one incoming fan message. Classification fields come
// from an external classifier; this package treats them as opaque scores.
type Message struct {
	// ID is a ULID assigned when the message is logged
	ID string `json:"id"`

	// ConversationID identifies the conversation the message belongs to
	ConversationID string `json:"conversation_id"`

	// SenderID identifies the fan who sent it
	SenderID string `json:"sender_id"`

	// Body is the message text
	Body string `json:"body"`

	// FAQConfidence is the external classifier's FAQ-match score (0..1)
	FAQConfidence float64 `json:"faq_confidence"`

	// Crisis marks messages the sentiment classifier flagged for
	// immediate personal attention
	Crisis bool `json:"crisis"`

	// ReceivedAt is the Unix timestamp when the message arrived
	ReceivedAt int64 `json:"received_at"`
}

// Store is the persistence collaborator for messages.
type Store interface {
	// Insert writes a new message.
	Insert(m *Message) error

	// ListSince returns messages with ReceivedAt >= since, oldest first.
	ListSince(since int64) ([]Message, error)

	// CountSince returns the number of messages with ReceivedAt >= since.
	CountSince(since int64) (int, error)
}

// LogInput contains parameters for the Log operation.
type LogInput struct {
	ConversationID string
	SenderID       string
	Body           string
	FAQConfidence  float64
	Crisis         bool
}

// LogOutput contains the result of the Log operation.
type LogOutput struct {
	ID         string `json:"id"`
	ReceivedAt int64  `json:"received_at"`
}

// Log records an incoming message.
func Log(store Store, input LogInput) (*LogOutput, error) {
	if strings.TrimSpace(input.ConversationID) == "" {
		return nil, errors.NewInvalidRequest("conversation_id is required")
	}
	if strings.TrimSpace(input.SenderID) == "" {
		return nil, errors.NewInvalidRequest("sender_id is required")
	}
	if input.Body == "" {
		return nil, errors.NewInvalidRequest("body is required")
	}
	if input.FAQConfidence < 0 || input.FAQConfidence > 1 {
		return nil, errors.NewInvalidRequest("faq_confidence must be between 0 and 1")
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	m := &Message{
		ID:             id,
		ConversationID: input.ConversationID,
		SenderID:       input.SenderID,
		Body:           input.Body,
		FAQConfidence:  input.FAQConfidence,
		Crisis:         input.Crisis,
		ReceivedAt:     time.Now().Unix(),
	}
	if err := store.Insert(m); err != nil {
		return nil, err
	}

	return &LogOutput{ID: m.ID, ReceivedAt: m.ReceivedAt}, nil
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
