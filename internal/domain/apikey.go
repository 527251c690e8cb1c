package domain

import (
	"time"

	"github.com/google/uuid"
)

// APIKeyType names the three bootstrap shapes a key can be created as; the
// Permissions on the stored APIKey are the source of truth, this is only a
// creation-time convenience that expands to a Permissions preset.
type APIKeyType string

const (
	APIKeyTypeAdmin    APIKeyType = "admin"
	APIKeyTypeDatabase APIKeyType = "database"
	APIKeyTypeReadonly APIKeyType = "readonly"
)

// PermissionsForType expands a creation-time APIKeyType into a concrete
// Permissions preset.
func PermissionsForType(t APIKeyType) Permissions {
	switch t {
	case APIKeyTypeAdmin:
		return Permissions{Admin: true}
	case APIKeyTypeReadonly:
		return Permissions{Readonly: true}
	default: // APIKeyTypeDatabase
		return Permissions{ManageCollections: true}
	}
}

// APIKey is the persisted record for an API key: hash and metadata only,
// never the plaintext secret.
type APIKey struct {
	ID          uuid.UUID
	KeyHash     string // sha256 hex of the plaintext key
	KeyPrefix   string // first 25 chars of the plaintext key plus "...", for display/audit
	Name        string
	Description string
	Type        APIKeyType
	Permissions Permissions
	Databases   []string
	CreatedAt   time.Time
	CreatedBy   *uuid.UUID
	LastUsedAt  *time.Time
	ExpiresAt   *time.Time
	Enabled     bool
}

// Expired reports whether the key's expiry, if any, has passed as of now.
func (k APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

// Auth projects the stored key down to the identity attached to a request
// context after successful authentication.
func (k APIKey) Auth() APIKeyAuth {
	return APIKeyAuth{
		KeyID:       k.ID.String(),
		Name:        k.Name,
		Permissions: k.Permissions,
		Databases:   k.Databases,
	}
}
