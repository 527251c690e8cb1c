// Package catalog implements the control plane: databases, collections,
// embedding providers, and API keys, grounded on
// original_source/gateway/core/{databases,collections,providers}.py, with
// API key management delegated to the auth package that already owns key
// material and verification.
package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"cortexdb/internal/domain"
)

// RelationalStore is the slice of *relational.Store catalog depends on.
type RelationalStore interface {
	InsertDatabase(ctx context.Context, db domain.Database) error
	GetDatabase(ctx context.Context, name string) (domain.Database, error)
	ListDatabases(ctx context.Context) ([]domain.Database, error)
	DeleteDatabase(ctx context.Context, name string) error

	InsertCollection(ctx context.Context, id uuid.UUID, schema domain.CollectionSchema, providerID *uuid.UUID, now time.Time) error
	GetCollectionSchema(ctx context.Context, database, name string) (domain.CollectionSchema, error)
	ListCollectionSchemas(ctx context.Context, database string) ([]domain.CollectionSchema, error)
	DeleteCollection(ctx context.Context, schema domain.CollectionSchema) error

	InsertProvider(ctx context.Context, p domain.ProviderConfig) error
	GetProvider(ctx context.Context, name string) (domain.ProviderConfig, error)
	ListProviders(ctx context.Context) ([]domain.ProviderConfig, error)
	DeleteProvider(ctx context.Context, name string) error

	DeleteExpiredAPIKeys(ctx context.Context, now time.Time) (int, error)
}

// VectorStore is the slice of *vector.Store catalog depends on.
type VectorStore interface {
	EnsureCollection(ctx context.Context, schema domain.CollectionSchema, vectorSize int) error
	DropCollection(ctx context.Context, name string) error
}

// ObjectStore is the slice of *object.Store catalog depends on.
type ObjectStore interface {
	EnsureBucket(ctx context.Context, bucket string) error
}

// EmbeddingLookup resolves a configured provider and memoizes its
// dimensionality. Satisfied by *embedding.Registry.
type EmbeddingLookup interface {
	Get(cfg domain.ProviderConfig) (domain.EmbeddingProvider, error)
	Dim(ctx context.Context, cfg domain.ProviderConfig) (int, error)
	// Forget evicts any cached client for a provider, so edits to its API key
	// or base URL take effect on the next lookup instead of serving a stale
	// connection. Mirrors clear_embedding_service_cache.
	Forget(name string)
}

// AuthService is the slice of *auth.Service catalog delegates API key
// lifecycle management to.
type AuthService interface {
	CreateKey(ctx context.Context, name, description string, t domain.APIKeyType, databases []string, permissions *domain.Permissions, expiresAt *time.Time) (domain.APIKey, string, error)
	ListKeys(ctx context.Context) ([]domain.APIKey, error)
	RevokeKey(ctx context.Context, id uuid.UUID) error
}

// Service implements gateway.CatalogService.
type Service struct {
	Relational RelationalStore
	Vector     VectorStore
	Object     ObjectStore
	Embeddings EmbeddingLookup
	Auth       AuthService

	// Audit receives an event for every database, collection, provider, and
	// API key create/delete. Nil disables audit logging entirely.
	Audit  domain.AuditLogger
	Logger *slog.Logger
}

// audit emits an audit event, logging (not returning) any write failure: a
// database already committed its mutation, so a broken audit sink shouldn't
// roll that back or surface as the caller's error.
func (s *Service) audit(ctx context.Context, eventType domain.AuditEventType, resource, action string, detail map[string]string) {
	if s.Audit == nil {
		return
	}
	event := domain.AuditEvent{
		Type:     eventType,
		Resource: resource,
		Action:   action,
		Outcome:  "success",
		Detail:   detail,
	}
	if err := s.Audit.Log(ctx, event); err != nil && s.Logger != nil {
		s.Logger.Warn("audit log write failed", "type", eventType, "resource", resource, "error", err)
	}
}
