// Package cryptox implements the envelope encryption used for message
// content at rest: each user's data is encrypted with a per-user 32-byte
// data key, and the data key itself is stored only wrapped under the
// process-wide master key. Discarding a wrapped key makes that user's
// history unreadable without touching the message rows.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	// KeySize is the AES-256 key length for both master and user keys.
	KeySize = 32

	nonceSize = 12
	tagSize   = 16
)

var (
	// ErrNotConfigured means the master key is absent or malformed. The
	// service stays constructed but refuses every operation that depends on
	// it, so callers never fall back to an implicit or degraded key.
	ErrNotConfigured = errors.New("master key not configured")

	// ErrKeyGeneration means the secure random source failed.
	ErrKeyGeneration = errors.New("key generation failed")

	// ErrAuthentication means the GCM tag did not verify: the payload was
	// tampered with or the wrong key was supplied. No plaintext is returned.
	ErrAuthentication = errors.New("authentication failed")

	// ErrInvalidKey reports a key of the wrong length.
	ErrInvalidKey = errors.New("invalid key length")
)

// Service performs AES-256-GCM authenticated encryption. The master key is
// fixed at construction and never changes; a Service built without a valid
// master key is permanently disabled.
type Service struct {
	masterKey []byte
}

// NewService builds the encryption service. A masterKey of any length other
// than KeySize (including nil) yields a disabled service whose operations
// all fail with ErrNotConfigured.
func NewService(masterKey []byte) *Service {
	if len(masterKey) != KeySize {
		return &Service{}
	}
	key := make([]byte, KeySize)
	copy(key, masterKey)
	return &Service{masterKey: key}
}

// NewServiceFromHex decodes a 64-hex-character master key. Malformed input
// yields a disabled service, mirroring NewService.
func NewServiceFromHex(masterKeyHex string) *Service {
	key, err := hex.DecodeString(masterKeyHex)
	if err != nil {
		return &Service{}
	}
	return NewService(key)
}

// Enabled reports whether a valid master key is loaded. Callers that depend
// on confidentiality must check this before writing.
func (s *Service) Enabled() bool {
	return len(s.masterKey) == KeySize
}

// GenerateUserKey returns a fresh random 32-byte data key.
func (s *Service) GenerateUserKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}
	return key, nil
}

// Encrypt seals plaintext under the given data key with a fresh random
// 12-byte nonce. Nonces are never reused for the same key: every call draws
// a new one from the CSPRNG, and a failure of that source aborts the call.
func (s *Service) Encrypt(plaintext, key []byte) (Blob, error) {
	if !s.Enabled() {
		return Blob{}, ErrNotConfigured
	}
	if len(key) != KeySize {
		return Blob{}, fmt.Errorf("%w: got %d bytes", ErrInvalidKey, len(key))
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return Blob{}, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}

	aesgcm, err := newGCM(key)
	if err != nil {
		return Blob{}, err
	}

	sealed := aesgcm.Seal(nil, nonce, plaintext, nil)

	// Seal appends the tag to the ciphertext; the wire format keeps them separate.
	split := len(sealed) - tagSize
	return Blob{
		Nonce:      nonce,
		Ciphertext: sealed[:split],
		Tag:        sealed[split:],
	}, nil
}

// Decrypt verifies the blob's authentication tag and returns the plaintext.
// A tag mismatch yields ErrAuthentication and no partial output.
func (s *Service) Decrypt(blob Blob, key []byte) ([]byte, error) {
	if !s.Enabled() {
		return nil, ErrNotConfigured
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKey, len(key))
	}
	if len(blob.Nonce) != nonceSize || len(blob.Tag) != tagSize {
		return nil, fmt.Errorf("%w: bad nonce or tag size", ErrMalformedBlob)
	}

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(blob.Ciphertext)+tagSize)
	sealed = append(sealed, blob.Ciphertext...)
	sealed = append(sealed, blob.Tag...)

	plaintext, err := aesgcm.Open(nil, blob.Nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	return plaintext, nil
}

// WrapUserKey encrypts a per-user data key under the master key.
func (s *Service) WrapUserKey(userKey []byte) (Blob, error) {
	if !s.Enabled() {
		return Blob{}, ErrNotConfigured
	}
	if len(userKey) != KeySize {
		return Blob{}, fmt.Errorf("%w: got %d bytes", ErrInvalidKey, len(userKey))
	}
	return s.Encrypt(userKey, s.masterKey)
}

// UnwrapUserKey recovers a data key wrapped by WrapUserKey.
func (s *Service) UnwrapUserKey(blob Blob) ([]byte, error) {
	if !s.Enabled() {
		return nil, ErrNotConfigured
	}
	key, err := s.Decrypt(blob, s.masterKey)
	if err != nil {
		return nil, err
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: unwrapped %d bytes", ErrInvalidKey, len(key))
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// DeriveKey stretches a low-entropy secret into a 32-byte key with
// argon2id. Used both for passphrase-configured master keys and for
// password verifiers.
func DeriveKey(secret, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, KeySize)
}

// MakeVerifier hashes a derived secret into the value stored for password
// checks, so the secret itself is never persisted.
func MakeVerifier(secret []byte) []byte {
	hash := sha256.Sum256(secret)
	return hash[:]
}
