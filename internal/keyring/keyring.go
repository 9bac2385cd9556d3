// Package keyring manages per-user data keys for envelope encryption. Keys
// are generated lazily, stored only in wrapped form on the user record, and
// cached unwrapped in process memory.
package keyring

import (
	"context"
	"fmt"
	"sync"

	"github.com/ent0n29/empathai/internal/cryptox"
	"github.com/ent0n29/empathai/internal/users"
)

type Keyring struct {
	crypto *cryptox.Service
	store  users.Store

	mu    sync.Mutex
	cache map[string][]byte
}

func New(crypto *cryptox.Service, store users.Store) *Keyring {
	return &Keyring{
		crypto: crypto,
		store:  store,
		cache:  make(map[string][]byte),
	}
}

// Enabled reports whether sealing and opening can work at all.
func (k *Keyring) Enabled() bool { return k.crypto.Enabled() }

// DataKey returns the user's unwrapped data key, generating and persisting a
// wrapped one on first use. Fails with cryptox.ErrNotConfigured when no
// master key is loaded.
func (k *Keyring) DataKey(ctx context.Context, userID string) ([]byte, error) {
	if !k.crypto.Enabled() {
		return nil, cryptox.ErrNotConfigured
	}

	// The lock also serializes first-use generation, so one process never
	// wraps two competing keys for the same user.
	k.mu.Lock()
	defer k.mu.Unlock()

	if key, ok := k.cache[userID]; ok {
		return key, nil
	}

	user, err := k.store.UserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user for key: %w", err)
	}

	var key []byte
	if user.WrappedKey != "" {
		blob, err := cryptox.DecodeBlob(user.WrappedKey)
		if err != nil {
			return nil, fmt.Errorf("decode wrapped key: %w", err)
		}
		key, err = k.crypto.UnwrapUserKey(blob)
		if err != nil {
			return nil, err
		}
	} else {
		key, err = k.crypto.GenerateUserKey()
		if err != nil {
			return nil, err
		}
		wrapped, err := k.crypto.WrapUserKey(key)
		if err != nil {
			return nil, err
		}
		encoded, err := wrapped.Encode()
		if err != nil {
			return nil, fmt.Errorf("encode wrapped key: %w", err)
		}
		if err := k.store.SetWrappedKey(ctx, userID, encoded); err != nil {
			return nil, err
		}
	}

	k.cache[userID] = key
	return key, nil
}

// Seal encrypts plaintext under the user's data key and returns the encoded
// envelope for storage.
func (k *Keyring) Seal(ctx context.Context, userID, plaintext string) (string, error) {
	key, err := k.DataKey(ctx, userID)
	if err != nil {
		return "", err
	}
	blob, err := k.crypto.Encrypt([]byte(plaintext), key)
	if err != nil {
		return "", err
	}
	return blob.Encode()
}

// Open reverses Seal. When encrypted is false the content is returned as-is,
// so callers can read rows written before encryption was turned on.
func (k *Keyring) Open(ctx context.Context, userID, content string, encrypted bool) (string, error) {
	if !encrypted {
		return content, nil
	}
	blob, err := cryptox.DecodeBlob(content)
	if err != nil {
		return "", err
	}
	key, err := k.DataKey(ctx, userID)
	if err != nil {
		return "", err
	}
	plaintext, err := k.crypto.Decrypt(blob, key)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// Forget drops a user's cached key, forcing the next use to unwrap again.
func (k *Keyring) Forget(userID string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.cache, userID)
}
