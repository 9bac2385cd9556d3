package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists accounts in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) (User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (id, email, name, password_salt, password_verifier, memory_enabled)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		user.ID, user.Email, user.Name, user.PasswordSalt, user.PasswordVerifier, user.MemoryEnabled,
	).Scan(&user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) UserByID(ctx context.Context, id string) (User, error) {
	return s.getUser(ctx, `WHERE id=$1`, id)
}

func (s *PostgresStore) UserByEmail(ctx context.Context, email string) (User, error) {
	return s.getUser(ctx, `WHERE email=$1`, strings.ToLower(strings.TrimSpace(email)))
}

func (s *PostgresStore) getUser(ctx context.Context, where string, arg any) (User, error) {
	var (
		u          User
		wrappedKey *string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, name, password_salt, password_verifier, memory_enabled, wrapped_key, created_at
		 FROM users `+where,
		arg,
	).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordSalt, &u.PasswordVerifier, &u.MemoryEnabled, &wrappedKey, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	if wrappedKey != nil {
		u.WrappedKey = *wrappedKey
	}
	return u, nil
}

func (s *PostgresStore) SetWrappedKey(ctx context.Context, userID, wrappedKey string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET wrapped_key=$2 WHERE id=$1`,
		userID, wrappedKey,
	)
	if err != nil {
		return fmt.Errorf("set wrapped key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetMemoryEnabled(ctx context.Context, userID string, enabled bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET memory_enabled=$2 WHERE id=$1`,
		userID, enabled,
	)
	if err != nil {
		return fmt.Errorf("set memory enabled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
