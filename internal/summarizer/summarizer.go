// Package summarizer maintains the per-user rolling summary: a short
// persistent-facts digest of history that stands in for everything older
// than the recent context window.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ent0n29/empathai/internal/completion"
	"github.com/ent0n29/empathai/internal/memory"
	"github.com/ent0n29/empathai/internal/policy"
)

// ErrSummarization wraps any completion-collaborator failure. The prior
// summary is left untouched; the next cadence trigger retries naturally.
var ErrSummarization = errors.New("summarization failed")

const (
	DefaultMessageWindow    = 200
	DefaultSnapshotMaxChars = 3000
	DefaultMaxOutputTokens  = 220

	truncationMarker = "...(truncated)...\n"

	systemInstruction = "You summarize user chat histories concisely."

	promptPreamble = "You are a concise summarizer. Given the user's past chat history below, " +
		"extract persistent personal facts, recurring topics, preferences, and anything that " +
		"may help the assistant in future conversations. Keep it short and factual: 2-4 " +
		"sentences. Avoid revealing or inventing sensitive PII.\n\n"
)

// ContentOpener recovers plaintext from a stored message body.
// *keyring.Keyring satisfies it.
type ContentOpener interface {
	Open(ctx context.Context, userID, content string, encrypted bool) (string, error)
}

type Config struct {
	MessageWindow    int
	SnapshotMaxChars int
	MaxOutputTokens  int
}

type Summarizer struct {
	store   memory.Store
	opener  ContentOpener
	adapter completion.Adapter
	cfg     Config
}

func New(store memory.Store, opener ContentOpener, adapter completion.Adapter, cfg Config) *Summarizer {
	if cfg.MessageWindow <= 0 {
		cfg.MessageWindow = DefaultMessageWindow
	}
	if cfg.SnapshotMaxChars <= 0 {
		cfg.SnapshotMaxChars = DefaultSnapshotMaxChars
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = DefaultMaxOutputTokens
	}
	return &Summarizer{store: store, opener: opener, adapter: adapter, cfg: cfg}
}

// Run refreshes the user's rolling summary from their recent history across
// all sessions. Returns ran=false when the user has no messages; nothing is
// written in that case or on any failure.
func (s *Summarizer) Run(ctx context.Context, userID string) (record memory.SummaryRecord, ran bool, err error) {
	recent, err := s.store.RecentMessages(ctx, userID, s.cfg.MessageWindow, memory.OrderAsc)
	if err != nil {
		return memory.SummaryRecord{}, false, fmt.Errorf("load history: %w", err)
	}
	if len(recent) == 0 {
		return memory.SummaryRecord{}, false, nil
	}

	lines := make([]string, 0, len(recent))
	for _, msg := range recent {
		content, err := s.opener.Open(ctx, userID, msg.Content, msg.Encrypted)
		if err != nil {
			return memory.SummaryRecord{}, false, fmt.Errorf("open message %s: %w", msg.ID, err)
		}
		// The summary instruction forbids PII in the output; masking it in
		// the input keeps it out of the external call entirely.
		content, _ = policy.RedactPII(content)
		lines = append(lines, roleLabel(msg.Role)+": "+content)
	}

	snapshot := buildSnapshot(lines, s.cfg.SnapshotMaxChars)

	text, err := s.adapter.Complete(ctx, completion.Request{
		Turns: []completion.Turn{
			{Role: completion.RoleSystem, Text: systemInstruction},
			{Role: completion.RoleUser, Text: promptPreamble + snapshot},
		},
		MaxOutputTokens: s.cfg.MaxOutputTokens,
		Temperature:     0,
	})
	if err != nil {
		return memory.SummaryRecord{}, false, fmt.Errorf("%w: %v", ErrSummarization, err)
	}

	record, err = s.store.UpsertSummary(ctx, userID, strings.TrimSpace(text), int64(len(recent)))
	if err != nil {
		return memory.SummaryRecord{}, false, fmt.Errorf("persist summary: %w", err)
	}
	return record, true, nil
}

// buildSnapshot joins rendered lines and right-truncates over-budget text:
// the trailing maxChars survive, so the oldest context is dropped first. The
// cut never lands inside a multi-byte rune.
func buildSnapshot(lines []string, maxChars int) string {
	joined := strings.Join(lines, "\n")
	if len(joined) <= maxChars {
		return joined
	}
	tail := joined[len(joined)-maxChars:]
	for len(tail) > 0 && !utf8.RuneStart(tail[0]) {
		tail = tail[1:]
	}
	return truncationMarker + tail
}

func roleLabel(role memory.Role) string {
	switch role {
	case memory.RoleAssistant:
		return "Assistant"
	case memory.RoleSystem:
		return "System"
	default:
		return "User"
	}
}
