package db

import (
	"database/sql"

	"github.com/metamonk/yipyap/internal/errors"
	"github.com/metamonk/yipyap/internal/inbox"
)

// MessageStore is the SQLite-backed inbox.Store implementation.
type MessageStore struct {
	db *sql.DB
}

// NewMessageStore creates a MessageStore on an initialized database.
func NewMessageStore(db *sql.DB) *MessageStore {
	return &MessageStore{db: db}
}

// Insert writes a new message.
func (s *MessageStore) Insert(m *inbox.Message) error {
	query := `
		INSERT INTO messages (
			id, conversation_id, sender_id, body,
			faq_confidence, crisis, received_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		m.ID, m.ConversationID, m.SenderID, m.Body,
		m.FAQConfidence, boolToInt(m.Crisis), m.ReceivedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}

	return nil
}

// ListSince returns messages with received_at >= since, oldest first.
func (s *MessageStore) ListSince(since int64) ([]inbox.Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, body,
			faq_confidence, crisis, received_at
		FROM messages
		WHERE received_at >= ?
		ORDER BY received_at ASC
	`

	rows, err := s.db.Query(query, since)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var messages []inbox.Message
	for rows.Next() {
		var (
			m      inbox.Message
			crisis int
		)
		err := rows.Scan(
			&m.ID, &m.ConversationID, &m.SenderID, &m.Body,
			&m.FAQConfidence, &crisis, &m.ReceivedAt,
		)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		m.Crisis = crisis != 0
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return messages, nil
}

// CountSince returns the number of messages with received_at >= since.
func (s *MessageStore) CountSince(since int64) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM messages WHERE received_at >= ?`, since,
	).Scan(&count)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return count, nil
}
