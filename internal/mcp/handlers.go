package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/metamonk/yipyap/internal/config"
	"github.com/metamonk/yipyap/internal/draft"
	"github.com/metamonk/yipyap/internal/errors"
	"github.com/metamonk/yipyap/internal/inbox"
	"github.com/metamonk/yipyap/internal/triage"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	manager    *draft.Manager
	draftStore draft.Store
	msgStore   inbox.Store
	cfg        *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(manager *draft.Manager, draftStore draft.Store, msgStore inbox.Store, cfg *config.Config) *Handlers {
	return &Handlers{
		manager:    manager,
		draftStore: draftStore,
		msgStore:   msgStore,
		cfg:        cfg,
	}
}

// Request types for each tool

// DraftSaveRequest represents the arguments for draft_save.
type DraftSaveRequest struct {
	ConversationID string  `json:"conversation_id"`
	MessageID      string  `json:"message_id"`
	DraftText      string  `json:"draft_text"`
	Confidence     float64 `json:"confidence,omitempty"`
	Version        int     `json:"version,omitempty"`
}

// DraftKeyRequest represents the arguments for restore/history/clear.
type DraftKeyRequest struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

// TriageSuggestRequest represents the arguments for triage_suggest.
type TriageSuggestRequest struct {
	AverageDailyMessages float64 `json:"average_daily_messages"`
}

// TriagePreviewRequest represents the arguments for triage_preview.
// FAQRate is a pointer so an explicit 0 is distinct from absent.
type TriagePreviewRequest struct {
	Capacity      int      `json:"capacity"`
	TotalMessages int      `json:"total_messages"`
	FAQRate       *float64 `json:"faq_rate,omitempty"`
}

// InboxLogRequest represents the arguments for inbox_log.
type InboxLogRequest struct {
	ConversationID string  `json:"conversation_id"`
	SenderID       string  `json:"sender_id"`
	Body           string  `json:"body"`
	FAQConfidence  float64 `json:"faq_confidence,omitempty"`
	Crisis         bool    `json:"crisis,omitempty"`
}

// InboxDigestRequest represents the arguments for inbox_digest.
// FAQRate is a pointer so an explicit 0 is distinct from absent.
type InboxDigestRequest struct {
	Capacity int      `json:"capacity,omitempty"`
	FAQRate  *float64 `json:"faq_rate,omitempty"`
	Since    int64    `json:"since,omitempty"`
	Markdown bool     `json:"markdown,omitempty"`
}

// TriageSuggestResponse pairs the suggested capacity with its time cost.
type TriageSuggestResponse struct {
	Capacity    int `json:"capacity"`
	TimeMinutes int `json:"time_minutes"`
}

// DigestResponse wraps a digest with its optional rendering.
type DigestResponse struct {
	Digest   *inbox.Digest `json:"digest"`
	Markdown string        `json:"markdown,omitempty"`
}

// PurgeResponse reports a TTL purge result.
type PurgeResponse struct {
	Purged int `json:"purged"`
}

// decode unmarshals MCP request arguments into one of the typed request
// structs above. Pointer fields (like FAQRate) survive the round-trip as
// nil when absent, which the handlers rely on to apply config defaults.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	args := req.GetArguments()
	b, err := json.Marshal(args)
	if err != nil {
		return result, fmt.Errorf("marshal args: %w", err)
	}
	if err := json.Unmarshal(b, &result); err != nil {
		return result, fmt.Errorf("unmarshal args: %w", err)
	}
	return result, nil
}

// Handler implementations

// HandleDraftSave handles the draft_save tool call. The write is
// committed before returning; the debounced path is for interactive
// composers, not tool calls.
func (h *Handlers) HandleDraftSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DraftSaveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if input.ConversationID == "" || input.MessageID == "" {
		return errorResult(errors.NewInvalidRequest("conversation_id and message_id are required")), nil
	}

	version := input.Version
	if version == 0 {
		history := h.manager.GetDraftHistory(input.ConversationID, input.MessageID)
		if !history.Success {
			return errorResult(errors.NewInternal(stderrors.New(history.Error))), nil
		}
		version = 1
		if n := len(history.Drafts); n > 0 {
			version = history.Drafts[n-1].Version + 1
		}
	}

	result := h.manager.SaveDraft(input.ConversationID, input.MessageID, input.DraftText, input.Confidence, version, 0)
	if !result.Success {
		return errorResult(errors.NewInvalidRequest(result.Error)), nil
	}

	select {
	case commit, ok := <-result.Done:
		if !ok {
			return errorResult(errors.NewConflict("save was cancelled")), nil
		}
		return successResult(commit)
	case <-ctx.Done():
		return errorResult(errors.NewInternal(ctx.Err())), nil
	}
}

// HandleDraftRestore handles the draft_restore tool call.
func (h *Handlers) HandleDraftRestore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DraftKeyRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result := h.manager.RestoreDraft(input.ConversationID, input.MessageID)
	if !result.Success {
		return errorResult(errors.NewInvalidRequest(result.Error)), nil
	}
	return successResult(result)
}

// HandleDraftHistory handles the draft_history tool call.
func (h *Handlers) HandleDraftHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DraftKeyRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result := h.manager.GetDraftHistory(input.ConversationID, input.MessageID)
	if !result.Success {
		return errorResult(errors.NewInvalidRequest(result.Error)), nil
	}
	return successResult(result)
}

// HandleDraftClear handles the draft_clear tool call.
func (h *Handlers) HandleDraftClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DraftKeyRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result := h.manager.ClearDrafts(input.ConversationID, input.MessageID)
	if !result.Success {
		return errorResult(errors.NewInvalidRequest(result.Error)), nil
	}
	return successResult(result)
}

// HandleDraftPurge handles the draft_purge tool call.
func (h *Handlers) HandleDraftPurge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	purged, err := h.draftStore.PurgeExpired(time.Now().Unix())
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(PurgeResponse{Purged: purged})
}

// HandleTriageSuggest handles the triage_suggest tool call.
func (h *Handlers) HandleTriageSuggest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TriageSuggestRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	capacity := triage.SuggestCapacity(input.AverageDailyMessages)
	return successResult(TriageSuggestResponse{
		Capacity:    capacity,
		TimeMinutes: triage.CalculateTimeCommitment(capacity),
	})
}

// HandleTriagePreview handles the triage_preview tool call.
func (h *Handlers) HandleTriagePreview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TriagePreviewRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	rate := h.cfg.FAQAutoHandleRate
	if input.FAQRate != nil {
		rate = *input.FAQRate
	}

	dist, err := triage.PreviewDistribution(input.Capacity, input.TotalMessages, rate)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(dist)
}

// HandleInboxLog handles the inbox_log tool call.
func (h *Handlers) HandleInboxLog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[InboxLogRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := inbox.Log(h.msgStore, inbox.LogInput{
		ConversationID: input.ConversationID,
		SenderID:       input.SenderID,
		Body:           input.Body,
		FAQConfidence:  input.FAQConfidence,
		Crisis:         input.Crisis,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleInboxDigest handles the inbox_digest tool call.
func (h *Handlers) HandleInboxDigest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[InboxDigestRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	rate := h.cfg.FAQAutoHandleRate
	if input.FAQRate != nil {
		rate = *input.FAQRate
	}

	digest, err := inbox.BuildFromStore(h.msgStore, inbox.DigestInput{
		Capacity: input.Capacity,
		FAQRate:  &rate,
		Since:    input.Since,
	})
	if err != nil {
		return errorResult(err), nil
	}

	resp := DigestResponse{Digest: digest}
	if input.Markdown {
		resp.Markdown = digest.RenderMarkdown()
	}
	return successResult(resp)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if yipErr, ok := err.(*errors.YipError); ok {
		errorObj := map[string]any{
			"code":    yipErr.Code,
			"message": yipErr.Message,
			"status":  yipErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if yipErr.Code != errors.ErrInternal && yipErr.Details != nil {
			errorObj["details"] = yipErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{"error": map[string]any{
			"code":    errors.ErrInternal,
			"message": err.Error(),
			"status":  500,
		}}
	}

	result, jsonErr := mcp.NewToolResultJSON(payload)
	if jsonErr != nil {
		return mcp.NewToolResultError(err.Error())
	}
	result.IsError = true
	return result
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
