package db

import (
	"testing"

	"github.com/metamonk/yipyap/internal/inbox"
)

func testMessage(id string, receivedAt int64) *inbox.Message {
	return &inbox.Message{
		ID:             id,
		ConversationID: "conv-1",
		SenderID:       "fan-1",
		Body:           "body " + id,
		FAQConfidence:  0.4,
		Crisis:         false,
		ReceivedAt:     receivedAt,
	}
}

func TestMessageStore_InsertAndListSince(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer database.Close()

	store := NewMessageStore(database)

	for _, m := range []*inbox.Message{
		testMessage("m3", 3000),
		testMessage("m1", 1000),
		testMessage("m2", 2000),
	} {
		if err := store.Insert(m); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	messages, err := store.ListSince(2000)
	if err != nil {
		t.Fatalf("ListSince failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("ListSince length = %d, want 2", len(messages))
	}
	if messages[0].ID != "m2" || messages[1].ID != "m3" {
		t.Errorf("order = [%s, %s], want [m2, m3]", messages[0].ID, messages[1].ID)
	}
}

func TestMessageStore_RoundTripFields(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer database.Close()

	store := NewMessageStore(database)

	m := testMessage("m1", 1000)
	m.FAQConfidence = 0.92
	m.Crisis = true
	if err := store.Insert(m); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	messages, err := store.ListSince(0)
	if err != nil {
		t.Fatalf("ListSince failed: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("ListSince length = %d, want 1", len(messages))
	}
	got := messages[0]
	if got.FAQConfidence != 0.92 {
		t.Errorf("FAQConfidence = %v, want 0.92", got.FAQConfidence)
	}
	if !got.Crisis {
		t.Error("Crisis flag not round-tripped")
	}
}

func TestMessageStore_CountSince(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer database.Close()

	store := NewMessageStore(database)

	for i := int64(1); i <= 5; i++ {
		if err := store.Insert(testMessage(string(rune('a'+i)), i*1000)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	count, err := store.CountSince(3000)
	if err != nil {
		t.Fatalf("CountSince failed: %v", err)
	}
	if count != 3 {
		t.Errorf("CountSince = %d, want 3", count)
	}

	count, err = store.CountSince(99999)
	if err != nil {
		t.Fatalf("CountSince failed: %v", err)
	}
	if count != 0 {
		t.Errorf("CountSince = %d, want 0", count)
	}
}
