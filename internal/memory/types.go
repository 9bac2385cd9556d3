// Package memory persists conversational history: the append-only message
// log, chat sessions, and the per-user rolling summary.
package memory

import (
	"context"
	"errors"
	"time"
)

// Role tags who authored a message, matching the completion wire roles.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Order selects the creation-order direction of a history query. Ordering is
// a store-level contract; callers never fetch-then-reverse.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// ErrNotFound is returned for absent sessions and summaries.
var ErrNotFound = errors.New("not found")

// MessageRecord is one immutable conversational turn. Content holds either
// plaintext or, when Encrypted is set, the encoded {iv,data,tag} envelope.
// Seq is assigned by the store and strictly increases within a session.
type MessageRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Encrypted bool      `json:"encrypted"`
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionRecord is one chat session. Sessions are closed, never deleted.
type SessionRecord struct {
	ID        string     `json:"session_id"`
	UserID    string     `json:"user_id"`
	Active    bool       `json:"active"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// SummaryRecord is the single rolling summary kept per user. It is replaced
// on every refresh; MessageCount accumulates how many messages have been
// folded in across refreshes.
type SummaryRecord struct {
	UserID       string    `json:"user_id"`
	Text         string    `json:"text"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int64     `json:"message_count"`
}

// Store persists and retrieves conversational memory.
type Store interface {
	// AppendMessage inserts one message and returns it with its assigned
	// ID, sequence number, and creation time.
	AppendMessage(ctx context.Context, record MessageRecord) (MessageRecord, error)

	// RecentMessages returns up to limit messages for the user across all
	// sessions, in the requested creation order.
	RecentMessages(ctx context.Context, userID string, limit int, order Order) ([]MessageRecord, error)

	// SessionMessages returns every message of one session in ascending
	// creation order, scoped to the owning user.
	SessionMessages(ctx context.Context, userID, sessionID string) ([]MessageRecord, error)

	// CountUserMessages counts the user-authored messages for a user.
	CountUserMessages(ctx context.Context, userID string) (int64, error)

	CreateSession(ctx context.Context, userID string) (SessionRecord, error)
	Session(ctx context.Context, sessionID, userID string) (SessionRecord, error)
	EndSession(ctx context.Context, sessionID, userID string) (SessionRecord, error)
	ListSessions(ctx context.Context, userID string) ([]SessionRecord, error)

	// Summary returns the user's rolling summary, or ErrNotFound before the
	// first refresh.
	Summary(ctx context.Context, userID string) (SummaryRecord, error)

	// UpsertSummary replaces the summary text, advances UpdatedAt, and adds
	// addCount to the accumulated message counter.
	UpsertSummary(ctx context.Context, userID, text string, addCount int64) (SummaryRecord, error)

	Close() error
}
