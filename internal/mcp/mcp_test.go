package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/metamonk/yipyap/internal/config"
	"github.com/metamonk/yipyap/internal/db"
	"github.com/metamonk/yipyap/internal/draft"
)

// testSetup creates a temporary database, handlers, and config for testing.
func testSetup(t *testing.T) (*Handlers, *config.Config, func()) {
	t.Helper()

	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}

	cfg := config.DefaultConfig()
	draftStore := db.NewDraftStore(database)
	h := NewHandlers(draft.NewManager(draftStore), draftStore, db.NewMessageStore(database), cfg)

	cleanup := func() {
		database.Close()
	}

	return h, cfg, cleanup
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

// resultText extracts the JSON payload text from a tool result.
func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is not TextContent: %T", result.Content[0])
	}
	return text.Text
}

// assertErrorCode checks that an error result carries the expected code.
func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	var payload map[string]any
	if err := json.Unmarshal([]byte(resultText(t, result)), &payload); err != nil {
		t.Errorf("failed to unmarshal error payload: %v", err)
		return
	}

	errorObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Errorf("no error object in payload")
		return
	}

	code, ok := errorObj["code"].(string)
	if !ok {
		t.Errorf("no code in error object")
		return
	}

	if code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func TestHandleDraftSave(t *testing.T) {
	h, _, cleanup := testSetup(t)
	defer cleanup()

	ctx := context.Background()

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
	}{
		{
			name: "save valid draft",
			args: map[string]any{
				"conversation_id": "conv-1",
				"message_id":      "msg-1",
				"draft_text":      "thanks for the kind words!",
				"confidence":      88,
			},
			wantError: false,
		},
		{
			name: "save without conversation_id",
			args: map[string]any{
				"message_id": "msg-1",
				"draft_text": "orphan",
			},
			wantError: true,
		},
		{
			name: "save without draft_text succeeds as empty draft is cleared text",
			args: map[string]any{
				"conversation_id": "conv-1",
				"message_id":      "msg-2",
				"draft_text":      "",
			},
			wantError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleDraftSave(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if tt.wantError != result.IsError {
				t.Errorf("IsError = %v, want %v (%s)", result.IsError, tt.wantError, resultText(t, result))
			}
		})
	}
}

func TestHandleDraftSave_AutoVersions(t *testing.T) {
	h, _, cleanup := testSetup(t)
	defer cleanup()

	ctx := context.Background()
	args := map[string]any{
		"conversation_id": "conv-1",
		"message_id":      "msg-1",
		"draft_text":      "take one",
	}

	for i := 0; i < 3; i++ {
		result, err := h.HandleDraftSave(ctx, makeRequest(args))
		if err != nil {
			t.Fatalf("handler returned error: %v", err)
		}
		if result.IsError {
			t.Fatalf("save %d failed: %s", i, resultText(t, result))
		}
	}

	histResult, err := h.HandleDraftHistory(ctx, makeRequest(map[string]any{
		"conversation_id": "conv-1",
		"message_id":      "msg-1",
	}))
	if err != nil {
		t.Fatalf("history handler error: %v", err)
	}

	var history draft.HistoryResult
	if err := json.Unmarshal([]byte(resultText(t, histResult)), &history); err != nil {
		t.Fatalf("failed to decode history: %v", err)
	}
	if len(history.Drafts) != 3 {
		t.Fatalf("history length = %d, want 3", len(history.Drafts))
	}
	for i, d := range history.Drafts {
		if d.Version != i+1 {
			t.Errorf("Drafts[%d].Version = %d, want %d", i, d.Version, i+1)
		}
	}
}

func TestHandleDraftRestore(t *testing.T) {
	h, _, cleanup := testSetup(t)
	defer cleanup()

	ctx := context.Background()

	// Restore with nothing saved is success with no draft.
	result, err := h.HandleDraftRestore(ctx, makeRequest(map[string]any{
		"conversation_id": "conv-1",
		"message_id":      "msg-1",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got %s", resultText(t, result))
	}

	var restore draft.RestoreResult
	if err := json.Unmarshal([]byte(resultText(t, result)), &restore); err != nil {
		t.Fatalf("failed to decode restore: %v", err)
	}
	if restore.Draft != nil {
		t.Error("expected no draft before any save")
	}

	// Save, then restore finds it.
	saveResult, err := h.HandleDraftSave(ctx, makeRequest(map[string]any{
		"conversation_id": "conv-1",
		"message_id":      "msg-1",
		"draft_text":      "found me",
	}))
	if err != nil {
		t.Fatalf("save handler error: %v", err)
	}
	if saveResult.IsError {
		t.Fatalf("save failed: %s", resultText(t, saveResult))
	}

	result, err = h.HandleDraftRestore(ctx, makeRequest(map[string]any{
		"conversation_id": "conv-1",
		"message_id":      "msg-1",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &restore); err != nil {
		t.Fatalf("failed to decode restore: %v", err)
	}
	if restore.Draft == nil || restore.Draft.DraftText != "found me" {
		t.Errorf("restored draft = %+v, want text %q", restore.Draft, "found me")
	}
}

func TestHandleDraftClear(t *testing.T) {
	h, _, cleanup := testSetup(t)
	defer cleanup()

	ctx := context.Background()

	saveResult, err := h.HandleDraftSave(ctx, makeRequest(map[string]any{
		"conversation_id": "conv-1",
		"message_id":      "msg-1",
		"draft_text":      "delete me",
	}))
	if err != nil || saveResult.IsError {
		t.Fatalf("save failed: %v", err)
	}

	result, err := h.HandleDraftClear(ctx, makeRequest(map[string]any{
		"conversation_id": "conv-1",
		"message_id":      "msg-1",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("clear failed: %s", resultText(t, result))
	}

	var clearResult draft.ClearResult
	if err := json.Unmarshal([]byte(resultText(t, result)), &clearResult); err != nil {
		t.Fatalf("failed to decode clear: %v", err)
	}
	if clearResult.Deleted != 1 {
		t.Errorf("Deleted = %d, want 1", clearResult.Deleted)
	}
}

func TestHandleTriageSuggest(t *testing.T) {
	h, _, cleanup := testSetup(t)
	defer cleanup()

	result, err := h.HandleTriageSuggest(context.Background(), makeRequest(map[string]any{
		"average_daily_messages": 80,
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}

	var resp TriageSuggestResponse
	if err := json.Unmarshal([]byte(resultText(t, result)), &resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.Capacity != 14 {
		t.Errorf("Capacity = %d, want 14", resp.Capacity)
	}
	if resp.TimeMinutes != 28 {
		t.Errorf("TimeMinutes = %d, want 28", resp.TimeMinutes)
	}
}

func TestHandleTriagePreview(t *testing.T) {
	h, _, cleanup := testSetup(t)
	defer cleanup()

	ctx := context.Background()

	result, err := h.HandleTriagePreview(ctx, makeRequest(map[string]any{
		"capacity":       10,
		"total_messages": 50,
		"faq_rate":       0.15,
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}

	text := resultText(t, result)
	for _, want := range []string{`"deep":10`, `"faq":8`, `"archived":32`} {
		if !strings.Contains(text, want) {
			t.Errorf("payload %q missing %q", text, want)
		}
	}

	// An explicit zero rate is honored, not replaced with the default.
	result, err = h.HandleTriagePreview(ctx, makeRequest(map[string]any{
		"capacity":       10,
		"total_messages": 50,
		"faq_rate":       0,
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	text = resultText(t, result)
	for _, want := range []string{`"deep":10`, `"faq":0`, `"archived":40`} {
		if !strings.Contains(text, want) {
			t.Errorf("zero-rate payload %q missing %q", text, want)
		}
	}

	// Invalid input surfaces INVALID_REQUEST.
	result, err = h.HandleTriagePreview(ctx, makeRequest(map[string]any{
		"capacity":       -1,
		"total_messages": 50,
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for negative capacity")
	}
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleInboxLogAndDigest(t *testing.T) {
	h, _, cleanup := testSetup(t)
	defer cleanup()

	ctx := context.Background()

	logs := []map[string]any{
		{"conversation_id": "conv-1", "sender_id": "fan-1", "body": "love your work!!", "faq_confidence": 0.1},
		{"conversation_id": "conv-2", "sender_id": "fan-2", "body": "when is the next drop?", "faq_confidence": 0.95},
		{"conversation_id": "conv-3", "sender_id": "fan-3", "body": "really struggling lately", "faq_confidence": 0.2, "crisis": true},
	}
	for _, args := range logs {
		result, err := h.HandleInboxLog(ctx, makeRequest(args))
		if err != nil {
			t.Fatalf("log handler error: %v", err)
		}
		if result.IsError {
			t.Fatalf("log failed: %s", resultText(t, result))
		}
	}

	result, err := h.HandleInboxDigest(ctx, makeRequest(map[string]any{
		"capacity": 2,
		"markdown": true,
	}))
	if err != nil {
		t.Fatalf("digest handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("digest failed: %s", resultText(t, result))
	}

	text := resultText(t, result)
	if !strings.Contains(text, "fan-3") {
		t.Errorf("digest should include the crisis-flagged sender: %q", text)
	}
	if !strings.Contains(text, "markdown") {
		t.Errorf("digest should include rendered markdown: %q", text)
	}
}

func TestHandleInboxLog_Validation(t *testing.T) {
	h, _, cleanup := testSetup(t)
	defer cleanup()

	result, err := h.HandleInboxLog(context.Background(), makeRequest(map[string]any{
		"sender_id": "fan-1",
		"body":      "missing conversation",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result")
	}
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestServerRegistration(t *testing.T) {
	h, cfg, cleanup := testSetup(t)
	defer cleanup()

	s := NewServer(h, cfg, "test")
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	expectedTools := []string{
		"draft_save",
		"draft_restore",
		"draft_history",
		"draft_clear",
		"draft_purge",
		"triage_suggest",
		"triage_preview",
		"inbox_log",
		"inbox_digest",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}

	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	h, cfg, cleanup := testSetup(t)
	defer cleanup()

	cfg.DisabledTools = []string{"draft_purge", "inbox_digest"}
	s := NewServer(h, cfg, "test")
	tools := s.ListTools()

	if len(tools) != 7 {
		t.Errorf("registered tool count = %d, want 7", len(tools))
	}
	for _, name := range cfg.DisabledTools {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
}

func TestServerRegistration_WithDisabledTypes(t *testing.T) {
	h, cfg, cleanup := testSetup(t)
	defer cleanup()

	cfg.DisabledTypes = []string{"triage"}
	s := NewServer(h, cfg, "test")
	tools := s.ListTools()

	if len(tools) != 7 {
		t.Errorf("registered tool count = %d, want 7", len(tools))
	}
	for _, name := range []string{"triage_suggest", "triage_preview"} {
		if _, ok := tools[name]; ok {
			t.Errorf("tool %q of disabled type should not be registered", name)
		}
	}
}

func TestValidateDisabledTools(t *testing.T) {
	unknown := ValidateDisabledTools([]string{"draft_save", "bogus_tool"})
	if len(unknown) != 1 || unknown[0] != "bogus_tool" {
		t.Errorf("unknown = %v, want [bogus_tool]", unknown)
	}
}

func TestValidateDisabledTypes(t *testing.T) {
	unknown := ValidateDisabledTypes([]string{"draft", "capsule"})
	if len(unknown) != 1 || unknown[0] != "capsule" {
		t.Errorf("unknown = %v, want [capsule]", unknown)
	}
}

func TestGetTypeForTool(t *testing.T) {
	if got := GetTypeForTool("draft_save"); got != "draft" {
		t.Errorf("GetTypeForTool(draft_save) = %q, want draft", got)
	}
	if got := GetTypeForTool("nounderscore"); got != "" {
		t.Errorf("GetTypeForTool(nounderscore) = %q, want empty", got)
	}
}
