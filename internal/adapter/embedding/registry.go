package embedding

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"cortexdb/internal/domain"
	"cortexdb/internal/infra/resilience"
)

// Factory builds a domain.EmbeddingProvider from a persisted provider row.
type Factory func(cfg domain.ProviderConfig) (domain.EmbeddingProvider, error)

// Registry builds and caches domain.EmbeddingProvider instances keyed by
// provider name, and memoizes each provider's dimension behind a
// singleflight group so a burst of concurrent first-use callers triggers
// exactly one Dim() round trip instead of one per caller.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]domain.EmbeddingProvider
	dims      map[string]int

	group   singleflight.Group
	newGemini Factory
	newOpenAI Factory
	newOllama Factory
	cacheSize int
}

// NewRegistry constructs a Registry. cacheSize configures the per-provider
// query-embedding LRU (see CachedEmbedder); 0 disables caching.
func NewRegistry(cacheSize int) *Registry {
	return &Registry{
		providers: make(map[string]domain.EmbeddingProvider),
		dims:      make(map[string]int),
		cacheSize: cacheSize,
		newGemini: func(cfg domain.ProviderConfig) (domain.EmbeddingProvider, error) {
			return NewGeminiProvider(cfg.APIKey, WithGeminiModel(cfg.EmbeddingModel)), nil
		},
		newOpenAI: func(cfg domain.ProviderConfig) (domain.EmbeddingProvider, error) {
			return NewOpenAIProvider(cfg.APIKey, WithOpenAIModel(cfg.EmbeddingModel)), nil
		},
		newOllama: func(cfg domain.ProviderConfig) (domain.EmbeddingProvider, error) {
			opts := []OllamaOption{WithOllamaModel(cfg.EmbeddingModel)}
			if cfg.BaseURL != "" {
				opts = append(opts, WithOllamaBaseURL(cfg.BaseURL))
			}
			return NewOllamaProvider(opts...), nil
		},
	}
}

// Get returns the cached provider for cfg.Name, constructing and wrapping it
// with an LRU embedding cache on first use.
func (r *Registry) Get(cfg domain.ProviderConfig) (domain.EmbeddingProvider, error) {
	r.mu.RLock()
	p, ok := r.providers[cfg.Name]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[cfg.Name]; ok {
		return p, nil
	}

	var factory Factory
	switch cfg.Kind {
	case domain.ProviderGemini:
		factory = r.newGemini
	case domain.ProviderOpenAI:
		factory = r.newOpenAI
	case domain.ProviderOllama:
		factory = r.newOllama
	default:
		return nil, fmt.Errorf("embedding: unknown provider kind %q", cfg.Kind)
	}

	built, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("embedding: build provider %q: %w", cfg.Name, err)
	}
	guarded := NewCircuitBreakerProvider(built, resilience.Config{})
	wrapped := NewCachedEmbedder(guarded, r.cacheSize)
	r.providers[cfg.Name] = wrapped
	return wrapped, nil
}

// Dim returns cfg.Name's embedding dimension, memoized after the first
// successful lookup. Concurrent first-time callers for the same provider
// collapse onto a single underlying Dim() call via singleflight.
func (r *Registry) Dim(ctx context.Context, cfg domain.ProviderConfig) (int, error) {
	r.mu.RLock()
	dim, ok := r.dims[cfg.Name]
	r.mu.RUnlock()
	if ok {
		return dim, nil
	}

	v, err, _ := r.group.Do(cfg.Name, func() (any, error) {
		r.mu.RLock()
		if dim, ok := r.dims[cfg.Name]; ok {
			r.mu.RUnlock()
			return dim, nil
		}
		r.mu.RUnlock()

		provider, err := r.Get(cfg)
		if err != nil {
			return 0, err
		}
		dim, err := provider.Dim(ctx)
		if err != nil {
			return 0, fmt.Errorf("embedding: dim for %q: %w", cfg.Name, domain.NewDomainError("embedding.dim", domain.ErrEmbeddingFailed, err.Error()))
		}

		r.mu.Lock()
		r.dims[cfg.Name] = dim
		r.mu.Unlock()
		return dim, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// Forget drops a provider's cached instance and memoized dimension, used
// when an embedding provider row is deleted or its config changes.
func (r *Registry) Forget(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.providers, name)
	delete(r.dims, name)
}
