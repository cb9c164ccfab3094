package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/metamonk/yipyap/internal/config"
	"github.com/metamonk/yipyap/internal/db"
	"github.com/metamonk/yipyap/internal/draft"
	"github.com/metamonk/yipyap/internal/errors"
	"github.com/metamonk/yipyap/internal/inbox"
	"github.com/metamonk/yipyap/internal/triage"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(database *sql.DB, cfg *config.Config) *cli.App {
	var (
		draftStore draft.Store
		msgStore   inbox.Store
		manager    *draft.Manager
	)
	if database != nil {
		ds := db.NewDraftStore(database)
		draftStore = ds
		msgStore = db.NewMessageStore(database)
		manager = draft.NewManager(ds)
	}

	app := &cli.App{
		Name:    "yipyap",
		Usage:   "Creator inbox triage and draft store",
		Version: Version,
		Commands: []*cli.Command{
			saveCmd(manager),
			restoreCmd(manager),
			historyCmd(manager),
			clearCmd(manager),
			purgeCmd(draftStore),
			suggestCmd(),
			previewCmd(cfg),
			logCmd(msgStore),
			digestCmd(msgStore, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// keyFlags are the flags shared by every per-draft command.
func keyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "conversation", Aliases: []string{"c"}, Required: true, Usage: "Conversation ID"},
		&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Required: true, Usage: "Message ID"},
	}
}

// saveCmd creates the save command.
func saveCmd(manager *draft.Manager) *cli.Command {
	return &cli.Command{
		Name:  "save",
		Usage: "Save a draft reply (reads draft text from stdin)",
		Flags: append(keyFlags(),
			&cli.Float64Flag{Name: "confidence", Usage: "Suggestion confidence, 0-100"},
			&cli.IntFlag{Name: "version", Usage: "Draft version (defaults to latest + 1)"},
		),
		Action: func(c *cli.Context) error {
			if !stdinHasData() {
				return outputError(errors.NewInvalidRequest("draft text must be piped via stdin"))
			}

			draftText, err := readStdin()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}

			conversationID := c.String("conversation")
			messageID := c.String("message")

			version := c.Int("version")
			if version == 0 {
				history := manager.GetDraftHistory(conversationID, messageID)
				if !history.Success {
					return outputError(errors.NewInvalidRequest(history.Error))
				}
				version = 1
				if n := len(history.Drafts); n > 0 {
					version = history.Drafts[n-1].Version + 1
				}
			}

			result := manager.SaveDraft(conversationID, messageID, draftText, c.Float64("confidence"), version, 0)
			if !result.Success {
				return outputError(errors.NewInvalidRequest(result.Error))
			}

			commit, ok := <-result.Done
			if !ok {
				return outputError(errors.NewConflict("save was cancelled"))
			}
			if !commit.Success {
				return outputError(errors.NewInternal(fmt.Errorf("%s", commit.Error)))
			}
			return outputJSON(commit)
		},
	}
}

// restoreCmd creates the restore command.
func restoreCmd(manager *draft.Manager) *cli.Command {
	return &cli.Command{
		Name:  "restore",
		Usage: "Restore the active draft for a message",
		Flags: keyFlags(),
		Action: func(c *cli.Context) error {
			result := manager.RestoreDraft(c.String("conversation"), c.String("message"))
			if !result.Success {
				return outputError(errors.NewInvalidRequest(result.Error))
			}
			return outputJSON(result)
		},
	}
}

// historyCmd creates the history command.
func historyCmd(manager *draft.Manager) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List every saved version of a draft, oldest first",
		Flags: keyFlags(),
		Action: func(c *cli.Context) error {
			result := manager.GetDraftHistory(c.String("conversation"), c.String("message"))
			if !result.Success {
				return outputError(errors.NewInvalidRequest(result.Error))
			}
			return outputJSON(result)
		},
	}
}

// clearCmd creates the clear command.
func clearCmd(manager *draft.Manager) *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Delete all draft versions for a message",
		Flags: keyFlags(),
		Action: func(c *cli.Context) error {
			result := manager.ClearDrafts(c.String("conversation"), c.String("message"))
			if !result.Success {
				return outputError(errors.NewInvalidRequest(result.Error))
			}
			return outputJSON(result)
		},
	}
}

// purgeCmd creates the purge command.
func purgeCmd(store draft.Store) *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Permanently delete drafts whose retention TTL has passed",
		Action: func(c *cli.Context) error {
			purged, err := store.PurgeExpired(time.Now().Unix())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]int{"purged": purged})
		},
	}
}

// suggestCmd creates the suggest command.
func suggestCmd() *cli.Command {
	return &cli.Command{
		Name:  "suggest",
		Usage: "Suggest a daily reply capacity from average message volume",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "average", Aliases: []string{"a"}, Required: true, Usage: "Average daily message volume"},
		},
		Action: func(c *cli.Context) error {
			capacity := triage.SuggestCapacity(c.Float64("average"))
			return outputJSON(map[string]int{
				"capacity":     capacity,
				"time_minutes": triage.CalculateTimeCommitment(capacity),
			})
		},
	}
}

// previewCmd creates the preview command.
func previewCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "preview",
		Usage: "Preview how a day's messages split across deep, FAQ, and archive",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "capacity", Required: true, Usage: "Daily reply capacity"},
			&cli.IntFlag{Name: "total", Required: true, Usage: "Total incoming messages"},
			&cli.Float64Flag{Name: "faq-rate", Usage: "Fraction auto-handled as FAQ (defaults from config)"},
		},
		Action: func(c *cli.Context) error {
			rate := cfg.FAQAutoHandleRate
			if c.IsSet("faq-rate") {
				rate = c.Float64("faq-rate")
			}

			dist, err := triage.PreviewDistribution(c.Int("capacity"), c.Int("total"), rate)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(dist)
		},
	}
}

// logCmd creates the log command.
func logCmd(store inbox.Store) *cli.Command {
	return &cli.Command{
		Name:  "log",
		Usage: "Record an incoming message (reads body from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "conversation", Aliases: []string{"c"}, Required: true, Usage: "Conversation ID"},
			&cli.StringFlag{Name: "sender", Aliases: []string{"s"}, Required: true, Usage: "Sender ID"},
			&cli.Float64Flag{Name: "faq-confidence", Usage: "Classifier confidence that this is an FAQ, 0-1"},
			&cli.BoolFlag{Name: "crisis", Usage: "Flag the message as needing urgent care"},
		},
		Action: func(c *cli.Context) error {
			if !stdinHasData() {
				return outputError(errors.NewInvalidRequest("message body must be piped via stdin"))
			}

			body, err := readStdin()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}

			result, err := inbox.Log(store, inbox.LogInput{
				ConversationID: c.String("conversation"),
				SenderID:       c.String("sender"),
				Body:           body,
				FAQConfidence:  c.Float64("faq-confidence"),
				Crisis:         c.Bool("crisis"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(result)
		},
	}
}

// digestCmd creates the digest command.
func digestCmd(store inbox.Store, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "digest",
		Usage: "Build today's triaged digest from logged messages",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "capacity", Usage: "Daily reply capacity (defaults to suggestion from volume)"},
			&cli.Float64Flag{Name: "faq-rate", Usage: "Fraction auto-handled as FAQ (defaults from config)"},
			&cli.Int64Flag{Name: "since", Usage: "Unix timestamp lower bound (defaults to 24h ago)"},
			&cli.BoolFlag{Name: "markdown", Usage: "Print rendered markdown instead of JSON"},
		},
		Action: func(c *cli.Context) error {
			rate := cfg.FAQAutoHandleRate
			if c.IsSet("faq-rate") {
				rate = c.Float64("faq-rate")
			}

			digest, err := inbox.BuildFromStore(store, inbox.DigestInput{
				Capacity: c.Int("capacity"),
				FAQRate:  &rate,
				Since:    c.Int64("since"),
			})
			if err != nil {
				return outputError(err)
			}

			if c.Bool("markdown") {
				fmt.Println(digest.RenderMarkdown())
				return nil
			}
			return outputJSON(digest)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if yipErr, ok := err.(*errors.YipError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", yipErr.Code, yipErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
