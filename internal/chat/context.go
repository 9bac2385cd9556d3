package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/ent0n29/empathai/internal/completion"
	"github.com/ent0n29/empathai/internal/memory"
)

const (
	DefaultHistoryLimit = 10

	DefaultSystemPrompt = "You are EmpathAI, a warm, attentive companion. Listen closely, " +
		"respond with empathy, and keep replies conversational and grounded in what the " +
		"user has actually said."

	backgroundPreamble = "Background about this user from previous conversations:\n"
)

// ContentOpener recovers plaintext from a stored message body.
// *keyring.Keyring satisfies it.
type ContentOpener interface {
	Open(ctx context.Context, userID, content string, encrypted bool) (string, error)
}

// ContextBuilder assembles the ordered prompt for one chat turn: system
// prompt, the rolling summary as background, the recent history oldest first,
// and the new user message last.
type ContextBuilder struct {
	store        memory.Store
	opener       ContentOpener
	historyLimit int
	systemPrompt string
}

func NewContextBuilder(store memory.Store, opener ContentOpener, historyLimit int, systemPrompt string) *ContextBuilder {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &ContextBuilder{
		store:        store,
		opener:       opener,
		historyLimit: historyLimit,
		systemPrompt: systemPrompt,
	}
}

// Build returns the turns for the completion call. The new user message is
// always the last turn. With memory disabled the result is exactly the
// system prompt plus the new message.
func (b *ContextBuilder) Build(ctx context.Context, userID string, memoryEnabled bool, userText string) ([]completion.Turn, error) {
	turns := []completion.Turn{{Role: completion.RoleSystem, Text: b.systemPrompt}}

	if memoryEnabled {
		summary, err := b.store.Summary(ctx, userID)
		switch {
		case err == nil:
			if summary.Text != "" {
				turns = append(turns, completion.Turn{
					Role: completion.RoleSystem,
					Text: backgroundPreamble + summary.Text,
				})
			}
		case errors.Is(err, memory.ErrNotFound):
			// No summary yet; nothing to add.
		default:
			return nil, fmt.Errorf("load summary: %w", err)
		}

		recent, err := b.store.RecentMessages(ctx, userID, b.historyLimit, memory.OrderAsc)
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
		for _, msg := range recent {
			content, err := b.opener.Open(ctx, userID, msg.Content, msg.Encrypted)
			if err != nil {
				return nil, fmt.Errorf("open message %s: %w", msg.ID, err)
			}
			turns = append(turns, completion.Turn{Role: turnRole(msg.Role), Text: content})
		}
	}

	return append(turns, completion.Turn{Role: completion.RoleUser, Text: userText}), nil
}

func turnRole(role memory.Role) string {
	switch role {
	case memory.RoleAssistant:
		return completion.RoleAssistant
	case memory.RoleSystem:
		return completion.RoleSystem
	default:
		return completion.RoleUser
	}
}
