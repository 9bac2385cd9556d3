package moods

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryStore keeps mood entries in process memory for local/dev use and
// tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]map[string]Entry // by userID, then date
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]map[string]Entry)}
}

func (s *InMemoryStore) List(_ context.Context, userID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.entries[userID] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *InMemoryStore) ByDate(_ context.Context, userID, date string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[userID][date]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (s *InMemoryStore) Upsert(_ context.Context, entry Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDate, ok := s.entries[entry.UserID]
	if !ok {
		byDate = make(map[string]Entry)
		s.entries[entry.UserID] = byDate
	}

	now := time.Now().UTC()
	entry.UpdatedAt = now
	if prev, ok := byDate[entry.Date]; ok {
		entry.CreatedAt = prev.CreatedAt
	} else {
		entry.CreatedAt = now
	}
	byDate[entry.Date] = entry
	return entry, nil
}

func (s *InMemoryStore) Delete(_ context.Context, userID, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[userID][date]; !ok {
		return ErrNotFound
	}
	delete(s.entries[userID], date)
	return nil
}
