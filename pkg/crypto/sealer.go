// Package crypto seals connection secrets held in memory.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"maps"
)

var (
	// ErrInvalidKey is returned when the key is empty.
	ErrInvalidKey = errors.New("invalid sealing key: must not be empty")
	// ErrOpenFailed is returned when a sealed value cannot be opened.
	ErrOpenFailed = errors.New("open failed: invalid sealed value or wrong key")
)

// SecretFields are the connection config keys that are sealed at rest.
var SecretFields = []string{"password", "client_secret"}

// Sealer encrypts secrets with AES-256-GCM.
type Sealer struct {
	gcm cipher.AEAD
}

// NewSealer creates a sealer from a key string. A base64 string that decodes
// to 32 bytes is used as the key; anything else is hashed with SHA-256.
func NewSealer(keyInput string) (*Sealer, error) {
	if keyInput == "" {
		return nil, ErrInvalidKey
	}

	key, err := base64.StdEncoding.DecodeString(keyInput)
	if err != nil || len(key) != 32 {
		sum := sha256.Sum256([]byte(keyInput))
		key = sum[:]
	}
	return newSealer(key)
}

// GenerateKey returns a random 32-byte key, base64 encoded, suitable for NewSealer.
func GenerateKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// NewRandomSealer creates a sealer with a process-local random key. Values
// sealed by it cannot be opened after a restart.
func NewRandomSealer() (*Sealer, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return newSealer(key)
}

func newSealer(key []byte) (*Sealer, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Sealer{gcm: gcm}, nil
}

// Seal returns base64(nonce || ciphertext || tag). Empty input stays empty.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := s.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode failed", ErrOpenFailed)
	}
	nonceSize := s.gcm.NonceSize()
	if len(data) < nonceSize+s.gcm.Overhead() {
		return "", fmt.Errorf("%w: value too short", ErrOpenFailed)
	}

	plaintext, err := s.gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrOpenFailed)
	}
	return string(plaintext), nil
}

// SealConfig returns a copy of config with every string SecretFields entry sealed.
func (s *Sealer) SealConfig(config map[string]any) (map[string]any, error) {
	return s.mapSecrets(config, s.Seal)
}

// OpenConfig returns a copy of config with every SecretFields entry opened.
func (s *Sealer) OpenConfig(config map[string]any) (map[string]any, error) {
	return s.mapSecrets(config, s.Open)
}

func (s *Sealer) mapSecrets(config map[string]any, fn func(string) (string, error)) (map[string]any, error) {
	out := maps.Clone(config)
	for _, field := range SecretFields {
		v, ok := out[field].(string)
		if !ok {
			continue
		}
		converted, err := fn(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		out[field] = converted
	}
	return out, nil
}
