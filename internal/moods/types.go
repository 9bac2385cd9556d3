// Package moods persists the daily mood journal: at most one entry per user
// per calendar date, replaced in place on re-submission.
package moods

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned for absent mood entries.
var ErrNotFound = errors.New("mood not found")

// Entry is one journaled day. Date is a YYYY-MM-DD calendar date; Sentiment
// is normalized to [-1, 1].
type Entry struct {
	UserID    string    `json:"-"`
	Date      string    `json:"date"`
	Mood      string    `json:"mood"`
	Note      string    `json:"note"`
	Sentiment float64   `json:"sentiment"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var validMoods = map[string]bool{
	"great":   true,
	"good":    true,
	"neutral": true,
	"low":     true,
	"down":    true,
}

// Validate checks the caller-supplied fields of an entry.
func (e Entry) Validate() error {
	if _, err := time.Parse("2006-01-02", e.Date); err != nil {
		return fmt.Errorf("date must be YYYY-MM-DD")
	}
	if !validMoods[e.Mood] {
		return fmt.Errorf("mood must be one of great, good, neutral, low, down")
	}
	if e.Sentiment < -1 || e.Sentiment > 1 {
		return fmt.Errorf("sentiment must be between -1 and 1")
	}
	return nil
}

// Store persists mood journal entries.
type Store interface {
	// List returns every entry for the user in ascending date order.
	List(ctx context.Context, userID string) ([]Entry, error)

	// ByDate returns the entry for one date, or ErrNotFound.
	ByDate(ctx context.Context, userID, date string) (Entry, error)

	// Upsert inserts the entry or replaces the one already journaled for
	// its date, keeping the original creation time.
	Upsert(ctx context.Context, entry Entry) (Entry, error)

	// Delete removes the entry for one date, or returns ErrNotFound.
	Delete(ctx context.Context, userID, date string) error
}
