package mcp

import (
	"database/sql"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/metamonk/yipyap/internal/config"
	"github.com/metamonk/yipyap/internal/db"
	"github.com/metamonk/yipyap/internal/draft"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"draft", "triage", "inbox"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"draft_save": {
		def:     draftSaveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDraftSave },
	},
	"draft_restore": {
		def:     draftRestoreToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDraftRestore },
	},
	"draft_history": {
		def:     draftHistoryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDraftHistory },
	},
	"draft_clear": {
		def:     draftClearToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDraftClear },
	},
	"draft_purge": {
		def:     draftPurgeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDraftPurge },
	},
	"triage_suggest": {
		def:     triageSuggestToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTriageSuggest },
	},
	"triage_preview": {
		def:     triagePreviewToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTriagePreview },
	},
	"inbox_log": {
		def:     inboxLogToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleInboxLog },
	},
	"inbox_digest": {
		def:     inboxDigestToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleInboxDigest },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "draft_save" → "draft").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	// Build set of types for O(1) lookup
	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	// Collect tools belonging to disabled types
	tools := make([]string, 0)
	for name := range toolRegistry {
		typ := GetTypeForTool(name)
		if typeSet[typ] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates a new MCP server with yipyap tools registered.
// Tools listed in cfg.DisabledTools or belonging to cfg.DisabledTypes
// are excluded from registration.
func NewServer(h *Handlers, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"yipyap",
		version,
		server.WithToolCapabilities(true),
	)

	// Build set of disabled tools: first expand types, then add individual tools
	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	// Register tools (skip disabled)
	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server on stdio, wiring stores on the given database.
func Run(database *sql.DB, cfg *config.Config, version string) error {
	draftStore := db.NewDraftStore(database)
	msgStore := db.NewMessageStore(database)
	h := NewHandlers(draft.NewManager(draftStore), draftStore, msgStore, cfg)
	s := NewServer(h, cfg, version)
	return server.ServeStdio(s)
}
