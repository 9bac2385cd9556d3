package cryptox

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testService(t *testing.T) *Service {
	t.Helper()
	master := bytes.Repeat([]byte{0xA5}, KeySize)
	svc := NewService(master)
	require.True(t, svc.Enabled())
	return svc
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	svc := testService(t)
	key, err := svc.GenerateUserKey()
	require.NoError(t, err)

	for _, plaintext := range []string{"", "hi", "a longer message with unicode — привет"} {
		blob, err := svc.Encrypt([]byte(plaintext), key)
		require.NoError(t, err)
		assert.Len(t, blob.Nonce, 12)
		assert.Len(t, blob.Tag, 16)

		got, err := svc.Decrypt(blob, key)
		require.NoError(t, err)
		assert.Equal(t, plaintext, string(got))
	}
}

func TestDecryptDetectsTampering(t *testing.T) {
	svc := testService(t)
	key, err := svc.GenerateUserKey()
	require.NoError(t, err)

	blob, err := svc.Encrypt([]byte("sensitive message"), key)
	require.NoError(t, err)

	cases := map[string]func(b *Blob){
		"nonce":      func(b *Blob) { b.Nonce[0] ^= 0x01 },
		"ciphertext": func(b *Blob) { b.Ciphertext[0] ^= 0x01 },
		"tag":        func(b *Blob) { b.Tag[0] ^= 0x01 },
	}
	for name, flip := range cases {
		t.Run(name, func(t *testing.T) {
			mutated := Blob{
				Nonce:      append([]byte(nil), blob.Nonce...),
				Ciphertext: append([]byte(nil), blob.Ciphertext...),
				Tag:        append([]byte(nil), blob.Tag...),
			}
			flip(&mutated)
			out, err := svc.Decrypt(mutated, key)
			assert.ErrorIs(t, err, ErrAuthentication)
			assert.Nil(t, out)
		})
	}
}

func TestDecryptWrongKey(t *testing.T) {
	svc := testService(t)
	k1, err := svc.GenerateUserKey()
	require.NoError(t, err)
	k2, err := svc.GenerateUserKey()
	require.NoError(t, err)

	blob, err := svc.Encrypt([]byte("secret"), k1)
	require.NoError(t, err)

	_, err = svc.Decrypt(blob, k2)
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestWrapUnwrapUserKey(t *testing.T) {
	svc := testService(t)
	key, err := svc.GenerateUserKey()
	require.NoError(t, err)

	wrapped, err := svc.WrapUserKey(key)
	require.NoError(t, err)

	got, err := svc.UnwrapUserKey(wrapped)
	require.NoError(t, err)
	assert.Equal(t, key, got)

	wrapped.Tag[3] ^= 0x80
	_, err = svc.UnwrapUserKey(wrapped)
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestEncryptNonceUniqueness(t *testing.T) {
	svc := testService(t)
	key, err := svc.GenerateUserKey()
	require.NoError(t, err)

	b1, err := svc.Encrypt([]byte("same plaintext"), key)
	require.NoError(t, err)
	b2, err := svc.Encrypt([]byte("same plaintext"), key)
	require.NoError(t, err)

	assert.NotEqual(t, b1.Nonce, b2.Nonce)
	assert.NotEqual(t, b1.Ciphertext, b2.Ciphertext)
}

func TestDisabledServiceFailsFast(t *testing.T) {
	for _, svc := range []*Service{
		NewService(nil),
		NewService([]byte("short")),
		NewServiceFromHex("not hex at all"),
		NewServiceFromHex("abcd"), // valid hex, wrong length
	} {
		require.False(t, svc.Enabled())

		key := bytes.Repeat([]byte{1}, KeySize)
		_, err := svc.Encrypt([]byte("x"), key)
		assert.ErrorIs(t, err, ErrNotConfigured)
		_, err = svc.Decrypt(Blob{}, key)
		assert.ErrorIs(t, err, ErrNotConfigured)
		_, err = svc.WrapUserKey(key)
		assert.ErrorIs(t, err, ErrNotConfigured)
		_, err = svc.UnwrapUserKey(Blob{})
		assert.ErrorIs(t, err, ErrNotConfigured)
	}
}

func TestBlobWireFormat(t *testing.T) {
	svc := testService(t)
	key, err := svc.GenerateUserKey()
	require.NoError(t, err)

	blob, err := svc.Encrypt([]byte("round trip me"), key)
	require.NoError(t, err)

	encoded, err := blob.Encode()
	require.NoError(t, err)
	assert.Contains(t, encoded, `"iv"`)
	assert.Contains(t, encoded, `"data"`)
	assert.Contains(t, encoded, `"tag"`)

	decoded, err := DecodeBlob(encoded)
	require.NoError(t, err)
	plaintext, err := svc.Decrypt(decoded, key)
	require.NoError(t, err)
	assert.Equal(t, "round trip me", string(plaintext))
}

func TestDecodeBlobRejectsMissingFields(t *testing.T) {
	for _, raw := range []string{
		`{}`,
		`{"iv":"aXY=","data":"ZGF0YQ=="}`,
		`{"iv":"aXY=","tag":"dGFn"}`,
		`{"data":"ZGF0YQ==","tag":"dGFn"}`,
		`{"iv":"***","data":"ZGF0YQ==","tag":"dGFn"}`,
	} {
		_, err := DecodeBlob(raw)
		if !errors.Is(err, ErrMalformedBlob) {
			t.Fatalf("DecodeBlob(%s) error = %v, want ErrMalformedBlob", raw, err)
		}
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	k1 := DeriveKey([]byte("passphrase"), []byte("salt"))
	k2 := DeriveKey([]byte("passphrase"), []byte("salt"))
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, KeySize)

	k3 := DeriveKey([]byte("passphrase"), []byte("other-salt"))
	assert.NotEqual(t, k1, k3)
}
