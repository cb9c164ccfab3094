package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/metamonk/yipyap/internal/draft"
)

// End-to-end draft lifecycle over the real SQLite store: save, supersede,
// restore, clear.

func TestWorkflow_DraftLifecycle(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := Init(tmpDir)
	require.NoError(t, err)
	defer database.Close()

	m := draft.NewManager(NewDraftStore(database))

	// First save commits version 1.
	r1 := m.SaveDraft("conv-1", "msg-1", "thanks so much for reaching out", 82, 1, 0)
	require.True(t, r1.Success)
	c1 := <-r1.Done
	require.True(t, c1.Success)
	require.NotEmpty(t, c1.DraftID)

	// Restore returns it.
	restore := m.RestoreDraft("conv-1", "msg-1")
	require.True(t, restore.Success)
	require.NotNil(t, restore.Draft)
	require.Equal(t, 1, restore.Draft.Version)
	require.True(t, restore.Draft.IsActive)

	// Second save supersedes the first.
	r2 := m.SaveDraft("conv-1", "msg-1", "thanks so much, answered your question below", 90, 2, 0)
	c2 := <-r2.Done
	require.True(t, c2.Success)

	history := m.GetDraftHistory("conv-1", "msg-1")
	require.True(t, history.Success)
	require.Len(t, history.Drafts, 2)
	require.False(t, history.Drafts[0].IsActive)
	require.True(t, history.Drafts[1].IsActive)

	restore = m.RestoreDraft("conv-1", "msg-1")
	require.True(t, restore.Success)
	require.Equal(t, 2, restore.Draft.Version)

	// Clear removes everything.
	clear := m.ClearDrafts("conv-1", "msg-1")
	require.True(t, clear.Success)
	require.Equal(t, 2, clear.Deleted)

	restore = m.RestoreDraft("conv-1", "msg-1")
	require.True(t, restore.Success)
	require.Nil(t, restore.Draft)
}

func TestWorkflow_DebouncedSaveOverSQLite(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := Init(tmpDir)
	require.NoError(t, err)
	defer database.Close()

	m := draft.NewManager(NewDraftStore(database))

	first := m.SaveDraft("conv-1", "msg-1", "typing…", 70, 1, 20*time.Millisecond)
	second := m.SaveDraft("conv-1", "msg-1", "typing… done", 75, 1, 20*time.Millisecond)

	_, ok := <-first.Done
	require.False(t, ok, "first save should be superseded")

	c2, ok := <-second.Done
	require.True(t, ok)
	require.True(t, c2.Success)

	history := m.GetDraftHistory("conv-1", "msg-1")
	require.Len(t, history.Drafts, 1)
	require.Equal(t, "typing… done", history.Drafts[0].DraftText)
}

func TestWorkflow_TTLStampAndSweep(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := Init(tmpDir)
	require.NoError(t, err)
	defer database.Close()

	store := NewDraftStore(database)
	m := draft.NewManager(store)

	r := m.SaveDraft("conv-1", "msg-1", "expiring note", 70, 1, 0)
	c := <-r.Done
	require.True(t, c.Success)

	history := m.GetDraftHistory("conv-1", "msg-1")
	require.Len(t, history.Drafts, 1)
	d := history.Drafts[0]
	require.Equal(t, d.CreatedAt+int64(draft.TTL/time.Second), d.ExpiresAt)

	// Not yet expired.
	purged, err := store.PurgeExpired(time.Now().Unix())
	require.NoError(t, err)
	require.Equal(t, 0, purged)

	// Past the TTL horizon it goes away.
	purged, err = store.PurgeExpired(d.ExpiresAt)
	require.NoError(t, err)
	require.Equal(t, 1, purged)
}
