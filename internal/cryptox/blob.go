package cryptox

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedBlob reports a stored payload that is missing one of the three
// envelope fields or carries invalid base64.
var ErrMalformedBlob = errors.New("malformed encrypted blob")

// Blob is the at-rest form of an encrypted payload: a 12-byte nonce, the
// ciphertext, and the 16-byte GCM authentication tag. It serializes to the
// same {iv, data, tag} base64 triple the mobile clients already understand.
type Blob struct {
	Nonce      []byte
	Ciphertext []byte
	Tag        []byte
}

type blobWire struct {
	IV   string `json:"iv"`
	Data string `json:"data"`
	Tag  string `json:"tag"`
}

func (b Blob) MarshalJSON() ([]byte, error) {
	return json.Marshal(blobWire{
		IV:   base64.StdEncoding.EncodeToString(b.Nonce),
		Data: base64.StdEncoding.EncodeToString(b.Ciphertext),
		Tag:  base64.StdEncoding.EncodeToString(b.Tag),
	})
}

func (b *Blob) UnmarshalJSON(data []byte) error {
	var w blobWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBlob, err)
	}
	if w.IV == "" || w.Data == "" || w.Tag == "" {
		return fmt.Errorf("%w: missing field", ErrMalformedBlob)
	}

	var err error
	if b.Nonce, err = base64.StdEncoding.DecodeString(w.IV); err != nil {
		return fmt.Errorf("%w: iv: %v", ErrMalformedBlob, err)
	}
	if b.Ciphertext, err = base64.StdEncoding.DecodeString(w.Data); err != nil {
		return fmt.Errorf("%w: data: %v", ErrMalformedBlob, err)
	}
	if b.Tag, err = base64.StdEncoding.DecodeString(w.Tag); err != nil {
		return fmt.Errorf("%w: tag: %v", ErrMalformedBlob, err)
	}
	return nil
}

// Encode renders the blob as its compact JSON wire form.
func (b Blob) Encode() (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeBlob parses the JSON wire form, rejecting payloads that are missing
// any of the nonce, ciphertext, or tag fields.
func DecodeBlob(s string) (Blob, error) {
	var b Blob
	if err := json.Unmarshal([]byte(s), &b); err != nil {
		return Blob{}, err
	}
	return b, nil
}
