package postgres

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// Leading byte of every sealed blob so the format can evolve
	secretVersion = 0x01

	nonceSize = 12
	keySize   = 32

	// HKDF context string; changing it invalidates every stored secret
	keyInfo = "sercha-rag/team-settings/v1"
)

var (
	// ErrEmptySecret is returned when no encryption secret is configured.
	ErrEmptySecret = errors.New("encryption secret is empty")

	// ErrInvalidBlobSize is returned when a sealed blob is too small.
	ErrInvalidBlobSize = errors.New("encrypted blob is too small")

	// ErrUnsupportedVersion is returned when the blob version is unknown.
	ErrUnsupportedVersion = errors.New("unsupported secret blob version")

	// ErrDecryptionFailed is returned for a wrong key or corrupted data.
	ErrDecryptionFailed = errors.New("failed to decrypt secret blob")
)

// SecretBox seals values with AES-256-GCM under a key derived from an
// operator secret. Sealed format: version(1) || nonce(12) || ciphertext.
type SecretBox struct {
	gcm cipher.AEAD
}

// NewSecretBox derives a 256-bit key from secret with HKDF-SHA256.
func NewSecretBox(secret string) (*SecretBox, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &SecretBox{gcm: gcm}, nil
}

// Seal JSON-encodes value and encrypts it.
func (b *SecretBox) Seal(value any) ([]byte, error) {
	plaintext, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	blob := make([]byte, 0, 1+nonceSize+len(plaintext)+b.gcm.Overhead())
	blob = append(blob, secretVersion)
	blob = append(blob, nonce...)
	return b.gcm.Seal(blob, nonce, plaintext, nil), nil
}

// Open decrypts blob into value, which must be a pointer.
func (b *SecretBox) Open(blob []byte, value any) error {
	if len(blob) < 1+nonceSize+b.gcm.Overhead() {
		return ErrInvalidBlobSize
	}
	if blob[0] != secretVersion {
		return fmt.Errorf("%w: got version %d", ErrUnsupportedVersion, blob[0])
	}

	plaintext, err := b.gcm.Open(nil, blob[1:1+nonceSize], blob[1+nonceSize:], nil)
	if err != nil {
		return ErrDecryptionFailed
	}
	if err := json.Unmarshal(plaintext, value); err != nil {
		return fmt.Errorf("unmarshal decrypted value: %w", err)
	}
	return nil
}
