package draft

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// PendingDraftID is returned from SaveDraft before the underlying write
// completes. Callers needing the committed ID wait on SaveResult.Done.
const PendingDraftID = "pending"

// SaveResult is the immediate outcome of a SaveDraft call.
type SaveResult struct {
	Success bool   `json:"success"`
	DraftID string `json:"draft_id,omitempty"`
	Error   string `json:"error,omitempty"`

	// Done receives the commit outcome once the debounce window elapses
	// and the write finishes. It is closed without a value when the
	// pending save is cancelled or superseded by a later save.
	Done <-chan CommitResult `json:"-"`
}

// CommitResult is the outcome of the underlying draft write.
type CommitResult struct {
	Success bool   `json:"success"`
	DraftID string `json:"draft_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RestoreResult is the outcome of RestoreDraft. Draft is nil when no
// active draft exists; that is not an error.
type RestoreResult struct {
	Success bool   `json:"success"`
	Draft   *Draft `json:"draft,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HistoryResult is the outcome of GetDraftHistory.
type HistoryResult struct {
	Success bool    `json:"success"`
	Drafts  []Draft `json:"drafts"`
	Error   string  `json:"error,omitempty"`
}

// ClearResult is the outcome of ClearDrafts.
type ClearResult struct {
	Success bool   `json:"success"`
	Deleted int    `json:"deleted"`
	Error   string `json:"error,omitempty"`
}

// pendingSave is an armed debounce timer for one key. Arming a new save
// for the same key replaces it (last write wins, not a queue).
type pendingSave struct {
	timer *time.Timer
	done  chan CommitResult
}

// Manager owns the debounce timers and commits drafts to a Store.
// Persistence failures surface as result values, never panics: a failed
// autosave must not take down the composer. The deactivate-then-write
// sequence is not atomic; the design assumes one writer per key.
type Manager struct {
	store Store

	mu      sync.Mutex
	pending map[Key]*pendingSave

	now func() time.Time
}

// NewManager creates a Manager backed by the given store.
func NewManager(store Store) *Manager {
	return &Manager{
		store:   store,
		pending: make(map[Key]*pendingSave),
		now:     time.Now,
	}
}

// SaveDraft schedules a draft write for (conversationID, messageID).
//
// With debounce > 0 the write commits after the window elapses; a second
// call for the same key within the window cancels the first and re-arms
// with the new text. With debounce <= 0 any pending debounced save for
// the key is cancelled and the write is dispatched immediately in the
// background. Either way the call returns at once with DraftID set to
// PendingDraftID; the commit outcome arrives on Done.
//
// The version is caller-supplied, typically previous max + 1 from
// GetDraftHistory.
func (m *Manager) SaveDraft(conversationID, messageID, draftText string, confidence float64, version int, debounce time.Duration) SaveResult {
	key := Key{ConversationID: conversationID, MessageID: messageID}
	if !key.Valid() {
		return SaveResult{Success: false, Error: "conversation_id and message_id are required"}
	}
	if version < 1 {
		return SaveResult{Success: false, Error: "version must be >= 1"}
	}

	done := make(chan CommitResult, 1)

	if debounce <= 0 {
		// Fast path: commit in the background, report acceptance without
		// waiting for the write. An armed debounced save for the key is
		// superseded first so its stale text cannot commit after this one.
		m.mu.Lock()
		if prev, ok := m.pending[key]; ok {
			prev.timer.Stop()
			delete(m.pending, key)
			close(prev.done)
		}
		m.mu.Unlock()

		go func() {
			done <- m.commit(key, draftText, confidence, version)
			close(done)
		}()
		return SaveResult{Success: true, DraftID: PendingDraftID, Done: done}
	}

	m.mu.Lock()
	if prev, ok := m.pending[key]; ok {
		prev.timer.Stop()
		close(prev.done)
	}
	p := &pendingSave{done: done}
	p.timer = time.AfterFunc(debounce, func() {
		m.fire(key, p, draftText, confidence, version)
	})
	m.pending[key] = p
	m.mu.Unlock()

	return SaveResult{Success: true, DraftID: PendingDraftID, Done: done}
}

// fire runs when a debounce timer elapses. The map entry is checked under
// the lock so a racing cancel or re-arm wins cleanly.
func (m *Manager) fire(key Key, p *pendingSave, draftText string, confidence float64, version int) {
	m.mu.Lock()
	if m.pending[key] != p {
		// Cancelled or superseded between timer fire and lock acquisition.
		m.mu.Unlock()
		return
	}
	delete(m.pending, key)
	m.mu.Unlock()

	p.done <- m.commit(key, draftText, confidence, version)
	close(p.done)
}

// commit deactivates any existing active drafts for the key, then writes
// the new version as the single active draft.
func (m *Manager) commit(key Key, draftText string, confidence float64, version int) CommitResult {
	actives, err := m.store.ActiveByKey(key.ConversationID, key.MessageID)
	if err != nil {
		return CommitResult{Success: false, Error: err.Error()}
	}
	for _, a := range actives {
		if err := m.store.Deactivate(a.ID); err != nil {
			return CommitResult{Success: false, Error: err.Error()}
		}
	}

	id, err := generateULID()
	if err != nil {
		return CommitResult{Success: false, Error: err.Error()}
	}

	now := m.now()
	d := &Draft{
		ID:             id,
		ConversationID: key.ConversationID,
		MessageID:      key.MessageID,
		DraftText:      draftText,
		Confidence:     confidence,
		Version:        version,
		IsActive:       true,
		CreatedAt:      now.Unix(),
		ExpiresAt:      now.Add(TTL).Unix(),
	}
	if err := m.store.Insert(d); err != nil {
		return CommitResult{Success: false, Error: err.Error()}
	}

	return CommitResult{Success: true, DraftID: id}
}

// RestoreDraft returns the most recent active draft for the key, or a
// successful result with a nil Draft when none exists.
func (m *Manager) RestoreDraft(conversationID, messageID string) RestoreResult {
	key := Key{ConversationID: conversationID, MessageID: messageID}
	if !key.Valid() {
		return RestoreResult{Success: false, Error: "conversation_id and message_id are required"}
	}

	actives, err := m.store.ActiveByKey(conversationID, messageID)
	if err != nil {
		return RestoreResult{Success: false, Error: err.Error()}
	}
	if len(actives) == 0 {
		return RestoreResult{Success: true}
	}

	// A supersession race can leave more than one active draft; prefer
	// the highest version.
	latest := actives[0]
	for _, a := range actives[1:] {
		if a.Version > latest.Version {
			latest = a
		}
	}
	return RestoreResult{Success: true, Draft: &latest}
}

// GetDraftHistory returns all versions for the key, version ascending.
// Empty history is success with an empty slice.
func (m *Manager) GetDraftHistory(conversationID, messageID string) HistoryResult {
	key := Key{ConversationID: conversationID, MessageID: messageID}
	if !key.Valid() {
		return HistoryResult{Success: false, Error: "conversation_id and message_id are required"}
	}

	drafts, err := m.store.History(conversationID, messageID)
	if err != nil {
		return HistoryResult{Success: false, Error: err.Error()}
	}
	if drafts == nil {
		drafts = []Draft{}
	}
	return HistoryResult{Success: true, Drafts: drafts}
}

// ClearDrafts cancels any pending save for the key, then deletes every
// version. Cancellation happens first so an armed timer cannot resurrect
// a draft after clearing. Clearing an empty key succeeds trivially.
func (m *Manager) ClearDrafts(conversationID, messageID string) ClearResult {
	key := Key{ConversationID: conversationID, MessageID: messageID}
	if !key.Valid() {
		return ClearResult{Success: false, Error: "conversation_id and message_id are required"}
	}

	m.CancelDebouncedSave(conversationID, messageID)

	deleted, err := m.store.DeleteByKey(conversationID, messageID)
	if err != nil {
		return ClearResult{Success: false, Error: err.Error()}
	}
	return ClearResult{Success: true, Deleted: deleted}
}

// CancelDebouncedSave stops the armed timer for the key, if any, with no
// persistence side effect. Safe to call when nothing is pending; an
// already in-flight commit is not aborted.
func (m *Manager) CancelDebouncedSave(conversationID, messageID string) {
	key := Key{ConversationID: conversationID, MessageID: messageID}

	m.mu.Lock()
	p, ok := m.pending[key]
	if ok {
		delete(m.pending, key)
		p.timer.Stop()
	}
	m.mu.Unlock()

	if ok {
		close(p.done)
	}
}

// PendingCount reports how many debounced saves are currently armed.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
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
