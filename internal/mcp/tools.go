package mcp

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the yipyap creator-inbox surface.

var draftSaveToolDef = mcp.NewTool("draft_save",
	mcp.WithDescription("Save a reply draft for a conversation message. Deactivates prior versions and writes the new one as the single active draft."),
	mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation the reply belongs to")),
	mcp.WithString("message_id", mcp.Required(), mcp.Description("Message being replied to")),
	mcp.WithString("draft_text", mcp.Required(), mcp.Description("Current draft content")),
	mcp.WithNumber("confidence", mcp.Description("Quality score (0-100) from the originating AI suggestion")),
	mcp.WithNumber("version", mcp.Description("Version number; defaults to previous max + 1")),
)

var draftRestoreToolDef = mcp.NewTool("draft_restore",
	mcp.WithDescription("Restore the latest active draft for a conversation message. Returns an empty result when none exists."),
	mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation the reply belongs to")),
	mcp.WithString("message_id", mcp.Required(), mcp.Description("Message being replied to")),
)

var draftHistoryToolDef = mcp.NewTool("draft_history",
	mcp.WithDescription("List all draft versions for a conversation message, oldest version first."),
	mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation the reply belongs to")),
	mcp.WithString("message_id", mcp.Required(), mcp.Description("Message being replied to")),
)

var draftClearToolDef = mcp.NewTool("draft_clear",
	mcp.WithDescription("Delete every draft version for a conversation message, cancelling any pending save first."),
	mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation the reply belongs to")),
	mcp.WithString("message_id", mcp.Required(), mcp.Description("Message being replied to")),
)

var draftPurgeToolDef = mcp.NewTool("draft_purge",
	mcp.WithDescription("Permanently delete drafts whose 7-day retention TTL has passed."),
)

var triageSuggestToolDef = mcp.NewTool("triage_suggest",
	mcp.WithDescription("Suggest a daily reply capacity and time commitment from average daily message volume."),
	mcp.WithNumber("average_daily_messages", mcp.Required(), mcp.Description("Average messages received per day")),
)

var triagePreviewToolDef = mcp.NewTool("triage_preview",
	mcp.WithDescription("Preview how a day's messages split into deep/faq/archived buckets under a capacity."),
	mcp.WithNumber("capacity", mcp.Required(), mcp.Description("Daily reply capacity")),
	mcp.WithNumber("total_messages", mcp.Required(), mcp.Description("Messages received in the day")),
	mcp.WithNumber("faq_rate", mcp.Description("FAQ auto-handle rate (0-1); defaults to the configured rate")),
)

var inboxLogToolDef = mcp.NewTool("inbox_log",
	mcp.WithDescription("Record an incoming fan message with its classifier scores."),
	mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation the message belongs to")),
	mcp.WithString("sender_id", mcp.Required(), mcp.Description("Fan who sent the message")),
	mcp.WithString("body", mcp.Required(), mcp.Description("Message text")),
	mcp.WithNumber("faq_confidence", mcp.Description("External classifier FAQ-match score (0-1)")),
	mcp.WithBoolean("crisis", mcp.Description("Sentiment classifier crisis flag")),
)

var inboxDigestToolDef = mcp.NewTool("inbox_digest",
	mcp.WithDescription("Build the daily digest of logged messages: the personal-reply picks, auto-answered FAQ, and archived remainder."),
	mcp.WithNumber("capacity", mcp.Description("Daily reply capacity; suggested from volume when omitted")),
	mcp.WithNumber("faq_rate", mcp.Description("FAQ auto-handle rate (0-1); defaults to the configured rate")),
	mcp.WithNumber("since", mcp.Description("Unix timestamp bounding the window; defaults to 24 hours ago")),
	mcp.WithBoolean("markdown", mcp.Description("Include the rendered markdown digest in the result")),
)
