package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"cortexdb/internal/domain"
)

// CreateAPIKey delegates key material generation, hashing, and persistence
// to auth.Service, returning the stored row alongside the one-time plaintext
// secret. Callers pass a APIKey with Name, Description, Type, Databases, and
// Permissions set; everything else (ID, hash, prefix, timestamps) is
// assigned by auth.Service.
func (s *Service) CreateAPIKey(ctx context.Context, key domain.APIKey) (domain.APIKey, string, error) {
	var permissions *domain.Permissions
	if key.Permissions != (domain.Permissions{}) {
		permissions = &key.Permissions
	}
	created, raw, err := s.Auth.CreateKey(ctx, key.Name, key.Description, key.Type, key.Databases, permissions, key.ExpiresAt)
	if err != nil {
		return created, raw, err
	}
	s.audit(ctx, domain.AuditAPIKeyCreate, created.ID.String(), "create", map[string]string{"name": created.Name, "type": string(created.Type)})
	return created, raw, nil
}

// ListAPIKeys returns every stored key (hash and metadata only, never the
// plaintext secret).
func (s *Service) ListAPIKeys(ctx context.Context) ([]domain.APIKey, error) {
	return s.Auth.ListKeys(ctx)
}

// RevokeAPIKey deletes a key by id.
func (s *Service) RevokeAPIKey(ctx context.Context, id string) error {
	keyID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: invalid api key id %q", domain.ErrValidation, id)
	}
	if err := s.Auth.RevokeKey(ctx, keyID); err != nil {
		return err
	}
	s.audit(ctx, domain.AuditAPIKeyRevoke, id, "revoke", nil)
	return nil
}
