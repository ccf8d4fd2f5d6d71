package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

var (
	ErrEmptyKey          = errors.New("encryption key must not be empty")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrDecryptionFailed  = errors.New("decryption failed")
)

// Sealer encrypts short secrets (account tokens, DAV tokens) with AES-256-GCM.
// Output is URL-safe base64 of nonce||ciphertext.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer creates a sealer. Keys that are not 32 bytes are stretched with SHA-256.
func NewSealer(key string) (*Sealer, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	raw := []byte(key)
	if len(raw) != 32 {
		sum := sha256.Sum256(raw)
		raw = sum[:]
	}

	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext. The empty string seals to the empty string.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (s *Sealer) Open(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	data, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	n := s.aead.NonceSize()
	if len(data) < n+s.aead.Overhead() {
		return "", ErrInvalidCiphertext
	}

	plaintext, err := s.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// SealAll encrypts each field in place, stopping at the first failure.
func (s *Sealer) SealAll(fields ...*string) error {
	for _, f := range fields {
		v, err := s.Seal(*f)
		if err != nil {
			return err
		}
		*f = v
	}
	return nil
}

// OpenAll decrypts each field in place, stopping at the first failure.
func (s *Sealer) OpenAll(fields ...*string) error {
	for _, f := range fields {
		v, err := s.Open(*f)
		if err != nil {
			return err
		}
		*f = v
	}
	return nil
}
