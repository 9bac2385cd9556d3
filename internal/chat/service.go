// Package chat runs the conversational turn: it persists both sides of the
// exchange, assembles the prompt context, and hands the turn to the
// completion adapter.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ent0n29/empathai/internal/completion"
	"github.com/ent0n29/empathai/internal/cryptox"
	"github.com/ent0n29/empathai/internal/logging"
	"github.com/ent0n29/empathai/internal/memory"
	"github.com/ent0n29/empathai/internal/observability"
	"github.com/ent0n29/empathai/internal/summarizer"
	"github.com/ent0n29/empathai/internal/users"
)

// ErrSessionEnded is returned when a message targets a closed session.
var ErrSessionEnded = errors.New("session has ended")

const (
	defaultReplyMaxTokens = 512
	defaultTemperature    = 0.7
)

// Sealer handles at-rest protection of message bodies. *keyring.Keyring
// satisfies it.
type Sealer interface {
	ContentOpener
	Enabled() bool
	Seal(ctx context.Context, userID, plaintext string) (string, error)
}

type Config struct {
	// EncryptAtRest makes every stored message body an encrypted envelope.
	// When set without a configured master key, writes are refused rather
	// than silently downgraded to plaintext.
	EncryptAtRest  bool
	ReplyMaxTokens int
	Temperature    float64
}

// TurnResult is one completed chat exchange. Message contents are plaintext
// regardless of how they were stored.
type TurnResult struct {
	UserMessage memory.MessageRecord `json:"user_message"`
	Reply       memory.MessageRecord `json:"reply"`
}

type Service struct {
	store   memory.Store
	users   *users.Service
	sealer  Sealer
	adapter completion.Adapter
	builder *ContextBuilder
	sched   *summarizer.Scheduler
	metrics *observability.Metrics
	log     logging.Logger
	cfg     Config
}

func NewService(
	store memory.Store,
	userSvc *users.Service,
	sealer Sealer,
	adapter completion.Adapter,
	builder *ContextBuilder,
	sched *summarizer.Scheduler,
	metrics *observability.Metrics,
	log logging.Logger,
	cfg Config,
) *Service {
	if log == nil {
		log = logging.Nop()
	}
	if cfg.ReplyMaxTokens <= 0 {
		cfg.ReplyMaxTokens = defaultReplyMaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}
	return &Service{
		store:   store,
		users:   userSvc,
		sealer:  sealer,
		adapter: adapter,
		builder: builder,
		sched:   sched,
		metrics: metrics,
		log:     log,
		cfg:     cfg,
	}
}

// Send runs one chat turn. The user message is appended before the
// completion call, so it stands even when the request is cancelled while the
// model is thinking; the reply is only appended when the request is still
// live.
func (s *Service) Send(ctx context.Context, userID, sessionID, text string) (TurnResult, error) {
	account, err := s.users.User(ctx, userID)
	if err != nil {
		return TurnResult{}, fmt.Errorf("load user: %w", err)
	}

	session, err := s.store.Session(ctx, sessionID, userID)
	if err != nil {
		return TurnResult{}, err
	}
	if !session.Active {
		return TurnResult{}, ErrSessionEnded
	}

	// Context is built from history as it stood before this message; the
	// new text always rides along as the final turn.
	turns, err := s.builder.Build(ctx, userID, account.MemoryEnabled, text)
	if err != nil {
		s.observeTurn("context_error")
		return TurnResult{}, err
	}

	userMsg, err := s.appendMessage(ctx, userID, sessionID, memory.RoleUser, text)
	if err != nil {
		s.observeTurn("append_error")
		return TurnResult{}, err
	}

	if count, err := s.store.CountUserMessages(ctx, userID); err != nil {
		s.log.Warn(ctx, "count user messages failed, skipping refresh check",
			"user_id", userID, "error", err)
	} else if account.MemoryEnabled {
		s.sched.MaybeRefresh(userID, count)
	}

	start := time.Now()
	replyText, err := s.adapter.Complete(ctx, completion.Request{
		Turns:           turns,
		MaxOutputTokens: s.cfg.ReplyMaxTokens,
		Temperature:     s.cfg.Temperature,
	})
	if s.metrics != nil {
		s.metrics.ObserveCompletionLatency(time.Since(start))
	}
	if err != nil {
		s.observeTurn("completion_error")
		return TurnResult{}, fmt.Errorf("completion: %w", err)
	}

	// The user message stands, but a dead request gets no reply row.
	if err := ctx.Err(); err != nil {
		s.observeTurn("cancelled")
		return TurnResult{}, err
	}

	reply, err := s.appendMessage(ctx, userID, sessionID, memory.RoleAssistant, replyText)
	if err != nil {
		s.observeTurn("append_error")
		return TurnResult{}, err
	}

	s.observeTurn("ok")
	userMsg.Content, userMsg.Encrypted = text, false
	reply.Content, reply.Encrypted = replyText, false
	return TurnResult{UserMessage: userMsg, Reply: reply}, nil
}

// StartSession opens a fresh session for the user.
func (s *Service) StartSession(ctx context.Context, userID string) (memory.SessionRecord, error) {
	session, err := s.store.CreateSession(ctx, userID)
	if err != nil {
		return memory.SessionRecord{}, err
	}
	if s.metrics != nil {
		s.metrics.ActiveSessions.Inc()
	}
	return session, nil
}

// EndSession closes the session. Closed sessions keep their history.
func (s *Service) EndSession(ctx context.Context, userID, sessionID string) (memory.SessionRecord, error) {
	session, err := s.store.EndSession(ctx, sessionID, userID)
	if err != nil {
		return memory.SessionRecord{}, err
	}
	if s.metrics != nil {
		s.metrics.ActiveSessions.Dec()
	}
	return session, nil
}

func (s *Service) Sessions(ctx context.Context, userID string) ([]memory.SessionRecord, error) {
	return s.store.ListSessions(ctx, userID)
}

// Session returns one session, scoped to its owner.
func (s *Service) Session(ctx context.Context, userID, sessionID string) (memory.SessionRecord, error) {
	return s.store.Session(ctx, sessionID, userID)
}

// SessionHistory returns one session's messages in creation order with
// contents opened to plaintext.
func (s *Service) SessionHistory(ctx context.Context, userID, sessionID string) ([]memory.MessageRecord, error) {
	if _, err := s.store.Session(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	msgs, err := s.store.SessionMessages(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		content, err := s.sealer.Open(ctx, userID, msgs[i].Content, msgs[i].Encrypted)
		if err != nil {
			if s.metrics != nil {
				s.metrics.EncryptionFailures.WithLabelValues("open").Inc()
			}
			return nil, fmt.Errorf("open message %s: %w", msgs[i].ID, err)
		}
		msgs[i].Content, msgs[i].Encrypted = content, false
	}
	return msgs, nil
}

// SetMemoryEnabled flips the user's long-term memory preference.
func (s *Service) SetMemoryEnabled(ctx context.Context, userID string, enabled bool) error {
	return s.users.SetMemoryEnabled(ctx, userID, enabled)
}

// appendMessage stores one turn, sealing the body when encryption at rest is
// on. A missing master key refuses the write instead of storing plaintext.
func (s *Service) appendMessage(ctx context.Context, userID, sessionID string, role memory.Role, text string) (memory.MessageRecord, error) {
	content, encrypted := text, false
	if s.cfg.EncryptAtRest {
		if !s.sealer.Enabled() {
			if s.metrics != nil {
				s.metrics.EncryptionFailures.WithLabelValues("not_configured").Inc()
			}
			return memory.MessageRecord{}, cryptox.ErrNotConfigured
		}
		sealed, err := s.sealer.Seal(ctx, userID, text)
		if err != nil {
			if s.metrics != nil {
				s.metrics.EncryptionFailures.WithLabelValues("seal").Inc()
			}
			return memory.MessageRecord{}, fmt.Errorf("seal message: %w", err)
		}
		content, encrypted = sealed, true
	}

	return s.store.AppendMessage(ctx, memory.MessageRecord{
		UserID:    userID,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Encrypted: encrypted,
	})
}

func (s *Service) observeTurn(result string) {
	if s.metrics != nil {
		s.metrics.ObserveChatTurn(result)
	}
}
