package summarizer

import (
	"context"
	"sync"
	"time"

	"github.com/ent0n29/empathai/internal/logging"
	"github.com/ent0n29/empathai/internal/observability"
)

const (
	DefaultCadence        = 8
	defaultRefreshTimeout = 60 * time.Second
)

// Scheduler decides, after each user message, whether a summary refresh is
// due and dispatches it in the background. The chat turn never waits on a
// refresh, and a refresh failure never reaches the request path.
type Scheduler struct {
	summarizer *Summarizer
	cadence    int64
	timeout    time.Duration
	log        logging.Logger
	metrics    *observability.Metrics

	mu       sync.Mutex
	inflight map[string]bool
	wg       sync.WaitGroup
}

func NewScheduler(s *Summarizer, cadence int, log logging.Logger, metrics *observability.Metrics) *Scheduler {
	if cadence <= 0 {
		cadence = DefaultCadence
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Scheduler{
		summarizer: s,
		cadence:    int64(cadence),
		timeout:    defaultRefreshTimeout,
		log:        log,
		metrics:    metrics,
		inflight:   make(map[string]bool),
	}
}

// Due reports whether the given user-authored message count lands on the
// refresh cadence.
func (s *Scheduler) Due(userMessageCount int64) bool {
	return userMessageCount > 0 && userMessageCount%s.cadence == 0
}

// MaybeRefresh dispatches a background refresh when one is due. It returns
// immediately; the refresh runs on its own context, so cancelling the
// request that triggered it has no effect. At most one refresh per user is
// in flight at a time.
func (s *Scheduler) MaybeRefresh(userID string, userMessageCount int64) {
	if !s.Due(userMessageCount) {
		return
	}

	s.mu.Lock()
	if s.inflight[userID] {
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.ObserveSummaryRefresh("skipped_inflight")
		}
		return
	}
	s.inflight[userID] = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inflight, userID)
			s.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		record, ran, err := s.summarizer.Run(ctx, userID)
		switch {
		case err != nil:
			s.log.Error(ctx, "summary refresh failed", "user_id", userID, "error", err)
			if s.metrics != nil {
				s.metrics.ObserveSummaryRefresh("error")
			}
		case ran:
			s.log.Debug(ctx, "summary refreshed",
				"user_id", userID, "messages_total", record.MessageCount)
			if s.metrics != nil {
				s.metrics.ObserveSummaryRefresh("ok")
			}
		}
	}()
}

// Wait blocks until all dispatched refreshes finish. Used on shutdown and in
// tests.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
