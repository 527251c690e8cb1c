package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cortexdb/internal/domain"
	"cortexdb/internal/security"
)

// CreateProvider persists a new embedding provider configuration and returns
// its client-facing view, mirroring ProvidersService.create_embedding_provider.
// Callers pass a ProviderConfig with Name, Kind, EmbeddingModel, BaseURL,
// APIKey, and Metadata set; ID and timestamps are assigned here. A custom
// BaseURL is rejected if it resolves to a private or reserved address, since
// it becomes an outbound HTTP target the server will call on every embed.
func (s *Service) CreateProvider(ctx context.Context, cfg domain.ProviderConfig) (domain.EmbeddingProviderView, error) {
	if cfg.Name == "" {
		return domain.EmbeddingProviderView{}, fmt.Errorf("%w: provider name is required", domain.ErrValidation)
	}
	if cfg.BaseURL != "" {
		if err := security.ValidateURL(cfg.BaseURL); err != nil {
			return domain.EmbeddingProviderView{}, err
		}
	}
	now := time.Now()
	cfg.ID = uuid.New()
	cfg.Enabled = true
	cfg.CreatedAt = now
	cfg.UpdatedAt = now
	if err := s.Relational.InsertProvider(ctx, cfg); err != nil {
		return domain.EmbeddingProviderView{}, fmt.Errorf("catalog: insert provider: %w", err)
	}
	s.Embeddings.Forget(cfg.Name)
	s.audit(ctx, domain.AuditProviderCreate, cfg.Name, "create", map[string]string{"kind": string(cfg.Kind)})
	return cfg.View(), nil
}

// ListProviders returns every configured provider as a client-facing view.
func (s *Service) ListProviders(ctx context.Context) ([]domain.EmbeddingProviderView, error) {
	configs, err := s.Relational.ListProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: list providers: %w", err)
	}
	views := make([]domain.EmbeddingProviderView, len(configs))
	for i, cfg := range configs {
		views[i] = cfg.View()
	}
	return views, nil
}

// GetProvider loads a single provider by name and returns its view.
func (s *Service) GetProvider(ctx context.Context, name string) (domain.EmbeddingProviderView, error) {
	cfg, err := s.Relational.GetProvider(ctx, name)
	if err != nil {
		return domain.EmbeddingProviderView{}, fmt.Errorf("catalog: load provider: %w", err)
	}
	return cfg.View(), nil
}

// DeleteProvider removes a provider's catalog row and evicts any cached
// client for it. Collections still bound to the provider keep their stored
// provider name; resolving it on their next ingest or search will surface
// ErrNotFound, same as deleting a database out from under a live collection.
func (s *Service) DeleteProvider(ctx context.Context, name string) error {
	if err := s.Relational.DeleteProvider(ctx, name); err != nil {
		return fmt.Errorf("catalog: delete provider: %w", err)
	}
	s.Embeddings.Forget(name)
	s.audit(ctx, domain.AuditProviderDelete, name, "delete", nil)
	return nil
}
