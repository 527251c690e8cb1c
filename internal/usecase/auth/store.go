// Package auth implements API key issuance, verification, and the
// permission checks the gateway enforces on every request.
package auth

import (
	"context"

	"github.com/google/uuid"

	"cortexdb/internal/domain"
)

// Store persists API key rows. Implemented by internal/adapter/relational
// against the api_keys control table.
type Store interface {
	InsertAPIKey(ctx context.Context, key domain.APIKey) error
	GetAPIKeyByHash(ctx context.Context, keyHash string) (domain.APIKey, error)
	ListAPIKeys(ctx context.Context) ([]domain.APIKey, error)
	DeleteAPIKey(ctx context.Context, id uuid.UUID) error
	CountAdminKeys(ctx context.Context) (int, error)
	TouchLastUsed(ctx context.Context, id uuid.UUID) error
}
