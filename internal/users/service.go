package users

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ent0n29/empathai/internal/cryptox"
)

const saltSize = 16

// Service handles registration and credential checks. Passwords are never
// stored: each account keeps a random salt and an argon2id-derived verifier.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// NewStore returns a postgres-backed store when a pool is supplied,
// otherwise the in-process store.
func NewStore(pool *pgxpool.Pool) Store {
	if pool == nil {
		return NewInMemoryStore()
	}
	return NewPostgresStore(pool)
}

func (s *Service) Register(ctx context.Context, email, name, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("invalid email %q", email)
	}
	if len(password) < 6 {
		return User{}, fmt.Errorf("password must be at least 6 characters")
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return User{}, fmt.Errorf("generate salt: %w", err)
	}

	user := User{
		Email:            email,
		Name:             strings.TrimSpace(name),
		PasswordSalt:     salt,
		PasswordVerifier: verifier(password, salt),
		MemoryEnabled:    true,
	}
	return s.store.CreateUser(ctx, user)
}

// Login checks credentials and returns the account. The comparison is
// constant-time; absent users and wrong passwords are indistinguishable.
func (s *Service) Login(ctx context.Context, email, password string) (User, error) {
	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		return User{}, ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare(verifier(password, user.PasswordSalt), user.PasswordVerifier) != 1 {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *Service) User(ctx context.Context, id string) (User, error) {
	return s.store.UserByID(ctx, id)
}

func (s *Service) SetMemoryEnabled(ctx context.Context, userID string, enabled bool) error {
	return s.store.SetMemoryEnabled(ctx, userID, enabled)
}

func verifier(password string, salt []byte) []byte {
	return cryptox.MakeVerifier(cryptox.DeriveKey([]byte(password), salt))
}
