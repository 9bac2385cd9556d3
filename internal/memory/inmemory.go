package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process store for local/dev use and tests.
type InMemoryStore struct {
	mu        sync.RWMutex
	seq       int64
	messages  map[string][]MessageRecord // by userID, append order
	sessions  map[string]SessionRecord   // by sessionID
	summaries map[string]SummaryRecord   // by userID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		messages:  make(map[string][]MessageRecord),
		sessions:  make(map[string]SessionRecord),
		summaries: make(map[string]SummaryRecord),
	}
}

func (s *InMemoryStore) AppendMessage(_ context.Context, record MessageRecord) (MessageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	s.seq++
	record.Seq = s.seq
	record.CreatedAt = time.Now().UTC()
	s.messages[record.UserID] = append(s.messages[record.UserID], record)
	return record, nil
}

func (s *InMemoryStore) RecentMessages(_ context.Context, userID string, limit int, order Order) ([]MessageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.messages[userID]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	recent := all[len(all)-limit:]

	out := make([]MessageRecord, len(recent))
	if order == OrderDesc {
		for i, r := range recent {
			out[len(out)-1-i] = r
		}
	} else {
		copy(out, recent)
	}
	return out, nil
}

func (s *InMemoryStore) SessionMessages(_ context.Context, userID, sessionID string) ([]MessageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []MessageRecord
	for _, r := range s.messages[userID] {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *InMemoryStore) CountUserMessages(_ context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, r := range s.messages[userID] {
		if r.Role == RoleUser {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) CreateSession(_ context.Context, userID string) (SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record := SessionRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		Active:    true,
		StartedAt: time.Now().UTC(),
	}
	s.sessions[record.ID] = record
	return record, nil
}

func (s *InMemoryStore) Session(_ context.Context, sessionID, userID string) (SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.sessions[sessionID]
	if !ok || r.UserID != userID {
		return SessionRecord{}, ErrNotFound
	}
	return r, nil
}

func (s *InMemoryStore) EndSession(_ context.Context, sessionID, userID string) (SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.sessions[sessionID]
	if !ok || r.UserID != userID {
		return SessionRecord{}, ErrNotFound
	}
	if r.Active {
		now := time.Now().UTC()
		r.Active = false
		r.EndedAt = &now
		s.sessions[sessionID] = r
	}
	return r, nil
}

func (s *InMemoryStore) ListSessions(_ context.Context, userID string) ([]SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []SessionRecord
	for _, r := range s.sessions {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Summary(_ context.Context, userID string) (SummaryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.summaries[userID]
	if !ok {
		return SummaryRecord{}, ErrNotFound
	}
	return r, nil
}

func (s *InMemoryStore) UpsertSummary(_ context.Context, userID, text string, addCount int64) (SummaryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.summaries[userID]
	r.UserID = userID
	r.Text = text
	r.MessageCount += addCount
	if now := time.Now().UTC(); now.After(r.UpdatedAt) {
		r.UpdatedAt = now
	}
	s.summaries[userID] = r
	return r, nil
}

func (s *InMemoryStore) Close() error { return nil }
