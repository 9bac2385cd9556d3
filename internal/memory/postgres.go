package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists conversational memory in PostgreSQL. The schema is
// managed by the embedded migrations in internal/storage.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) AppendMessage(ctx context.Context, record MessageRecord) (MessageRecord, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	// seq is a BIGSERIAL: the database serializes appends and hands back a
	// strictly increasing position, so retrieval order never depends on
	// clock resolution.
	err := s.pool.QueryRow(ctx,
		`INSERT INTO messages (id, user_id, session_id, role, content, encrypted)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING seq, created_at`,
		record.ID,
		record.UserID,
		record.SessionID,
		record.Role,
		record.Content,
		record.Encrypted,
	).Scan(&record.Seq, &record.CreatedAt)
	if err != nil {
		return MessageRecord{}, fmt.Errorf("append message: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) RecentMessages(ctx context.Context, userID string, limit int, order Order) ([]MessageRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `SELECT id, user_id, session_id, role, content, encrypted, seq, created_at
	          FROM messages WHERE user_id=$1 ORDER BY seq DESC LIMIT $2`
	if order == OrderAsc {
		query = `SELECT id, user_id, session_id, role, content, encrypted, seq, created_at
		         FROM (
		             SELECT id, user_id, session_id, role, content, encrypted, seq, created_at
		             FROM messages WHERE user_id=$1 ORDER BY seq DESC LIMIT $2
		         ) recent ORDER BY seq ASC`
	}

	rows, err := s.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}
	return scanMessages(rows, limit)
}

func (s *PostgresStore) SessionMessages(ctx context.Context, userID, sessionID string) ([]MessageRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, session_id, role, content, encrypted, seq, created_at
		 FROM messages WHERE user_id=$1 AND session_id=$2 ORDER BY seq ASC`,
		userID, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query session messages: %w", err)
	}
	return scanMessages(rows, 0)
}

func scanMessages(rows pgx.Rows, sizeHint int) ([]MessageRecord, error) {
	defer rows.Close()

	items := make([]MessageRecord, 0, sizeHint)
	for rows.Next() {
		var r MessageRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.SessionID, &r.Role, &r.Content, &r.Encrypted, &r.Seq, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CountUserMessages(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE user_id=$1 AND role=$2`,
		userID, RoleUser,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count user messages: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, userID string) (SessionRecord, error) {
	record := SessionRecord{
		ID:     uuid.NewString(),
		UserID: userID,
		Active: true,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO sessions (id, user_id, active) VALUES ($1, $2, TRUE)
		 RETURNING started_at`,
		record.ID, record.UserID,
	).Scan(&record.StartedAt)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("create session: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) Session(ctx context.Context, sessionID, userID string) (SessionRecord, error) {
	var r SessionRecord
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, active, started_at, ended_at
		 FROM sessions WHERE id=$1 AND user_id=$2`,
		sessionID, userID,
	).Scan(&r.ID, &r.UserID, &r.Active, &r.StartedAt, &r.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return SessionRecord{}, ErrNotFound
	}
	if err != nil {
		return SessionRecord{}, fmt.Errorf("get session: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) EndSession(ctx context.Context, sessionID, userID string) (SessionRecord, error) {
	var r SessionRecord
	err := s.pool.QueryRow(ctx,
		`UPDATE sessions SET active=FALSE, ended_at=COALESCE(ended_at, now())
		 WHERE id=$1 AND user_id=$2
		 RETURNING id, user_id, active, started_at, ended_at`,
		sessionID, userID,
	).Scan(&r.ID, &r.UserID, &r.Active, &r.StartedAt, &r.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return SessionRecord{}, ErrNotFound
	}
	if err != nil {
		return SessionRecord{}, fmt.Errorf("end session: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, userID string) ([]SessionRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, active, started_at, ended_at
		 FROM sessions WHERE user_id=$1 ORDER BY started_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var items []SessionRecord
	for rows.Next() {
		var r SessionRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.Active, &r.StartedAt, &r.EndedAt); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) Summary(ctx context.Context, userID string) (SummaryRecord, error) {
	var r SummaryRecord
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, text, updated_at, message_count FROM summaries WHERE user_id=$1`,
		userID,
	).Scan(&r.UserID, &r.Text, &r.UpdatedAt, &r.MessageCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return SummaryRecord{}, ErrNotFound
	}
	if err != nil {
		return SummaryRecord{}, fmt.Errorf("get summary: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) UpsertSummary(ctx context.Context, userID, text string, addCount int64) (SummaryRecord, error) {
	now := time.Now().UTC()
	var r SummaryRecord
	// GREATEST keeps updated_at monotonically non-decreasing when two
	// refreshes for the same user race; text stays last-write-wins.
	err := s.pool.QueryRow(ctx,
		`INSERT INTO summaries (user_id, text, updated_at, message_count)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE SET
		     text = EXCLUDED.text,
		     updated_at = GREATEST(summaries.updated_at, EXCLUDED.updated_at),
		     message_count = summaries.message_count + $4
		 RETURNING user_id, text, updated_at, message_count`,
		userID, text, now, addCount,
	).Scan(&r.UserID, &r.Text, &r.UpdatedAt, &r.MessageCount)
	if err != nil {
		return SummaryRecord{}, fmt.Errorf("upsert summary: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
