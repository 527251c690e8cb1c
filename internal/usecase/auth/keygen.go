package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"cortexdb/internal/domain"
)

func typePrefix(t domain.APIKeyType) string {
	switch t {
	case domain.APIKeyTypeAdmin:
		return "admin"
	case domain.APIKeyTypeReadonly:
		return "test"
	default:
		return "live"
	}
}

// GenerateKey creates new key material for the given type: the plaintext key
// (shown to the caller exactly once), its SHA-256 hex hash, and a 25-char
// display prefix safe to persist and log.
func GenerateKey(t domain.APIKeyType) (plaintext, hash, prefix string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", "", fmt.Errorf("auth: generate key: %w", err)
	}
	plaintext = fmt.Sprintf("cortexdb_%s_%s", typePrefix(t), hex.EncodeToString(raw))
	hash = HashKey(plaintext)
	prefix = plaintext
	if len(prefix) > 25 {
		prefix = prefix[:25] + "..."
	}
	return plaintext, hash, prefix, nil
}

// HashKey returns the SHA-256 hex digest of a plaintext API key.
func HashKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
