// Package users stores account records, including the per-user memory
// setting and the wrapped data key that envelope encryption hangs off.
package users

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User is one account. The password is kept as an argon2id-derived verifier
// plus its salt; WrappedKey holds the encoded envelope of the user's data
// key, empty until encryption first touches this user.
type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	PasswordSalt     []byte    `json:"-"`
	PasswordVerifier []byte    `json:"-"`
	MemoryEnabled    bool      `json:"memory_enabled"`
	WrappedKey       string    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
}

// Store persists user accounts.
type Store interface {
	CreateUser(ctx context.Context, user User) (User, error)
	UserByID(ctx context.Context, id string) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	SetWrappedKey(ctx context.Context, userID, wrappedKey string) error
	SetMemoryEnabled(ctx context.Context, userID string, enabled bool) error
}
