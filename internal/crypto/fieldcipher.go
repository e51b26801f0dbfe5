// Package crypto provides the field-level transformation applied to
// sensitive identifiers at the storage boundary. The rest of the engine
// treats encrypted fields as opaque strings.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

var ErrCiphertextInvalid = errors.New("ciphertext is malformed")

// FieldCipher encrypts and decrypts individual field values with AES-GCM.
// Output is base64(nonce || ciphertext).
type FieldCipher struct {
	aead cipher.AEAD
}

// NewFieldCipher creates a FieldCipher from a 32-byte key.
func NewFieldCipher(key []byte) (*FieldCipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("field cipher key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &FieldCipher{aead: aead}, nil
}

// Encrypt seals a plaintext field value.
func (f *FieldCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, f.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := f.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value previously produced by Encrypt.
func (f *FieldCipher) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrCiphertextInvalid
	}
	if len(raw) < f.aead.NonceSize() {
		return "", ErrCiphertextInvalid
	}
	nonce, ciphertext := raw[:f.aead.NonceSize()], raw[f.aead.NonceSize():]
	plaintext, err := f.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrCiphertextInvalid
	}
	return string(plaintext), nil
}
