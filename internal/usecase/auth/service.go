package auth

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"cortexdb/internal/domain"
)

// Service verifies bearer tokens, issues and revokes API keys, and runs the
// one-time admin-key bootstrap.
type Service struct {
	store  Store
	cache  *keyCache
	logger *slog.Logger
}

// NewService builds a Service with a TTL cache sized by cfg.
func NewService(store Store, logger *slog.Logger, cacheTTL, sweepInterval time.Duration) *Service {
	return &Service{
		store:  store,
		cache:  newKeyCache(cacheTTL, sweepInterval),
		logger: logger,
	}
}

// Verify resolves a plaintext bearer token to an authenticated identity,
// consulting the TTL cache before falling back to a store lookup.
func (s *Service) Verify(ctx context.Context, rawKey string) (domain.APIKeyAuth, error) {
	hash := HashKey(rawKey)

	if auth, ok := s.cache.get(hash); ok {
		return auth, nil
	}

	key, err := s.store.GetAPIKeyByHash(ctx, hash)
	if err != nil {
		return domain.APIKeyAuth{}, domain.NewDomainError("auth.verify", domain.ErrAPIKeyInvalid, "key not recognized")
	}
	if !key.Enabled {
		return domain.APIKeyAuth{}, domain.NewDomainError("auth.verify", domain.ErrAPIKeyDisabled, key.KeyPrefix)
	}
	if key.Expired(time.Now()) {
		return domain.APIKeyAuth{}, domain.NewDomainError("auth.verify", domain.ErrAPIKeyExpired, key.KeyPrefix)
	}

	auth := key.Auth()
	s.cache.set(hash, auth)

	go func() {
		touchCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.TouchLastUsed(touchCtx, key.ID); err != nil {
			s.logger.Warn("api key last_used_at update failed", "key_id", key.ID, "error", err)
		}
	}()

	return auth, nil
}

// CreateKey generates new key material, persists the hash, and returns the
// stored row alongside the plaintext (shown to the caller exactly once).
func (s *Service) CreateKey(ctx context.Context, name, description string, t domain.APIKeyType, databases []string, permissions *domain.Permissions, expiresAt *time.Time) (domain.APIKey, string, error) {
	plaintext, hash, prefix, err := GenerateKey(t)
	if err != nil {
		return domain.APIKey{}, "", domain.NewDomainError("auth.create_key", domain.ErrUpstream, err.Error())
	}

	perms := domain.PermissionsForType(t)
	if permissions != nil {
		perms = *permissions
	}

	key := domain.APIKey{
		ID:          uuid.New(),
		KeyHash:     hash,
		KeyPrefix:   prefix,
		Name:        name,
		Description: description,
		Type:        t,
		Permissions: perms,
		Databases:   databases,
		CreatedAt:   time.Now(),
		ExpiresAt:   expiresAt,
		Enabled:     true,
	}

	if err := s.store.InsertAPIKey(ctx, key); err != nil {
		return domain.APIKey{}, "", err
	}
	return key, plaintext, nil
}

// ListKeys returns every persisted API key (hash and secret material never
// included; domain.APIKey only ever carries the hash).
func (s *Service) ListKeys(ctx context.Context) ([]domain.APIKey, error) {
	return s.store.ListAPIKeys(ctx)
}

// RevokeKey deletes the key row by ID and drops it from the verify cache.
// The cache entry is keyed by hash, not ID, so a full invalidation is the
// simplest correct response to a revoke; a single stale-admin-key scenario
// doesn't justify tracking ID->hash just to avoid it.
func (s *Service) RevokeKey(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteAPIKey(ctx, id); err != nil {
		return err
	}
	s.cache.invalidateAll()
	return nil
}

// Bootstrap ensures at least one admin key exists. If none does, it either
// adopts adminKeyEnv (if set) or generates a fresh key, persists its hash,
// and logs the plaintext exactly once — it is never recoverable afterward.
func (s *Service) Bootstrap(ctx context.Context, adminKeyEnv, connectionHost string) error {
	count, err := s.store.CountAdminKeys(ctx)
	if err != nil {
		return fmt.Errorf("auth.bootstrap: count admin keys: %w", err)
	}
	if count > 0 {
		s.logger.Info("admin key already provisioned", "count", count)
		return nil
	}

	var plaintext, hash, prefix string
	if adminKeyEnv != "" {
		plaintext = adminKeyEnv
		hash = HashKey(plaintext)
		prefix = plaintext
		if len(prefix) > 25 {
			prefix = prefix[:25] + "..."
		}
	} else {
		plaintext, hash, prefix, err = GenerateKey(domain.APIKeyTypeAdmin)
		if err != nil {
			return fmt.Errorf("auth.bootstrap: generate key: %w", err)
		}
	}

	key := domain.APIKey{
		ID:          uuid.New(),
		KeyHash:     hash,
		KeyPrefix:   prefix,
		Name:        "Admin Key (Bootstrap)",
		Description: "Initial admin key created on first startup",
		Type:        domain.APIKeyTypeAdmin,
		Permissions: domain.Permissions{Admin: true, ManageKeys: true, ManageDatabases: true, ManageCollections: true, ManageProviders: true},
		CreatedAt:   time.Now(),
		Enabled:     true,
	}
	if err := s.store.InsertAPIKey(ctx, key); err != nil {
		return fmt.Errorf("auth.bootstrap: insert admin key: %w", err)
	}

	s.logger.Warn("admin api key created, shown only once", "key_prefix", prefix)
	fmt.Fprintf(os.Stderr, "\n%s\nCORTEXDB ADMIN API KEY CREATED\n%s\n\nAPI Key: %s\n\nConnection String: cortexdb://%s@%s\n\nIMPORTANT:\n  - Save this key now, it will not be shown again.\n  - Use it to create further keys and manage databases.\n  - Set CORTEXDB_ADMIN_KEY to use a custom key on next bootstrap.\n%s\n\n",
		separator, separator, plaintext, plaintext, connectionHost, separator)

	return nil
}

const separator = "================================================================================"
