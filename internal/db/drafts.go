package db

import (
	"database/sql"

	"github.com/metamonk/yipyap/internal/draft"
	"github.com/metamonk/yipyap/internal/errors"
)

// DraftStore is the SQLite-backed draft.Store implementation.
type DraftStore struct {
	db *sql.DB
}

// NewDraftStore creates a DraftStore on an initialized database.
func NewDraftStore(db *sql.DB) *DraftStore {
	return &DraftStore{db: db}
}

// Insert writes a new draft document.
func (s *DraftStore) Insert(d *draft.Draft) error {
	query := `
		INSERT INTO drafts (
			id, conversation_id, message_id, draft_text,
			confidence, version, is_active, created_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		d.ID, d.ConversationID, d.MessageID, d.DraftText,
		d.Confidence, d.Version, boolToInt(d.IsActive), d.CreatedAt, d.ExpiresAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}

	return nil
}

// ActiveByKey returns all active drafts for the key, newest version first.
func (s *DraftStore) ActiveByKey(conversationID, messageID string) ([]draft.Draft, error) {
	query := `
		SELECT id, conversation_id, message_id, draft_text,
			confidence, version, is_active, created_at, expires_at
		FROM drafts
		WHERE conversation_id = ? AND message_id = ? AND is_active = 1
		ORDER BY version DESC
	`

	rows, err := s.db.Query(query, conversationID, messageID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	return scanDrafts(rows)
}

// Deactivate flips is_active to false for the given draft ID.
func (s *DraftStore) Deactivate(id string) error {
	result, err := s.db.Exec(`UPDATE drafts SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(id)
	}

	return nil
}

// History returns all versions for the key ordered by version ascending.
func (s *DraftStore) History(conversationID, messageID string) ([]draft.Draft, error) {
	query := `
		SELECT id, conversation_id, message_id, draft_text,
			confidence, version, is_active, created_at, expires_at
		FROM drafts
		WHERE conversation_id = ? AND message_id = ?
		ORDER BY version ASC
	`

	rows, err := s.db.Query(query, conversationID, messageID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	return scanDrafts(rows)
}

// DeleteByKey removes every draft for the key and returns the count.
func (s *DraftStore) DeleteByKey(conversationID, messageID string) (int, error) {
	result, err := s.db.Exec(
		`DELETE FROM drafts WHERE conversation_id = ? AND message_id = ?`,
		conversationID, messageID,
	)
	if err != nil {
		return 0, errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}

	return int(rowsAffected), nil
}

// PurgeExpired removes drafts whose expires_at is at or before now.
func (s *DraftStore) PurgeExpired(now int64) (int, error) {
	result, err := s.db.Exec(`DELETE FROM drafts WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}

	return int(rowsAffected), nil
}

// scanDrafts reads all rows into draft structs.
func scanDrafts(rows *sql.Rows) ([]draft.Draft, error) {
	var drafts []draft.Draft
	for rows.Next() {
		var (
			d        draft.Draft
			isActive int
		)
		err := rows.Scan(
			&d.ID, &d.ConversationID, &d.MessageID, &d.DraftText,
			&d.Confidence, &d.Version, &isActive, &d.CreatedAt, &d.ExpiresAt,
		)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		d.IsActive = isActive != 0
		drafts = append(drafts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return drafts, nil
}

// boolToInt converts a bool to the 0/1 form SQLite stores.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
