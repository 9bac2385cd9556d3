package moods

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists mood entries in PostgreSQL, one row per user and
// date.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// NewStore returns a postgres-backed store when a pool is supplied,
// otherwise the in-process store.
func NewStore(pool *pgxpool.Pool) Store {
	if pool == nil {
		return NewInMemoryStore()
	}
	return NewPostgresStore(pool)
}

func (s *PostgresStore) List(ctx context.Context, userID string) ([]Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, date, mood, note, sentiment, created_at, updated_at
		 FROM moods WHERE user_id=$1 ORDER BY date ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list moods: %w", err)
	}
	defer rows.Close()

	var items []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.UserID, &e.Date, &e.Mood, &e.Note, &e.Sentiment, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan mood row: %w", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mood rows: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ByDate(ctx context.Context, userID, date string) (Entry, error) {
	var e Entry
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, date, mood, note, sentiment, created_at, updated_at
		 FROM moods WHERE user_id=$1 AND date=$2`,
		userID, date,
	).Scan(&e.UserID, &e.Date, &e.Mood, &e.Note, &e.Sentiment, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get mood: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, entry Entry) (Entry, error) {
	now := time.Now().UTC()
	err := s.pool.QueryRow(ctx,
		`INSERT INTO moods (user_id, date, mood, note, sentiment, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)
		 ON CONFLICT (user_id, date) DO UPDATE SET
		     mood = EXCLUDED.mood,
		     note = EXCLUDED.note,
		     sentiment = EXCLUDED.sentiment,
		     updated_at = EXCLUDED.updated_at
		 RETURNING user_id, date, mood, note, sentiment, created_at, updated_at`,
		entry.UserID, entry.Date, entry.Mood, entry.Note, entry.Sentiment, now,
	).Scan(&entry.UserID, &entry.Date, &entry.Mood, &entry.Note, &entry.Sentiment, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("upsert mood: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID, date string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM moods WHERE user_id=$1 AND date=$2`,
		userID, date,
	)
	if err != nil {
		return fmt.Errorf("delete mood: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
