package embedding

import (
	"context"

	"cortexdb/internal/domain"
	"cortexdb/internal/infra/resilience"
)

// CircuitBreakerProvider wraps a domain.EmbeddingProvider with a circuit
// breaker, ported from the teacher's LLM provider circuit breaker: when
// the wrapped provider fails repeatedly, the circuit opens and subsequent
// Embed/Dim calls fail fast with ErrUpstream instead of piling up against an
// unresponsive embedding API.
type CircuitBreakerProvider struct {
	inner   domain.EmbeddingProvider
	breaker *resilience.Breaker
}

// NewCircuitBreakerProvider wraps inner with a circuit breaker named after
// inner's provider kind.
func NewCircuitBreakerProvider(inner domain.EmbeddingProvider, cfg resilience.Config) *CircuitBreakerProvider {
	return &CircuitBreakerProvider{
		inner:   inner,
		breaker: resilience.New("embedding:"+inner.Name(), cfg, nil),
	}
}

// Embed implements domain.EmbeddingProvider.
func (p *CircuitBreakerProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return resilience.Do(p.breaker, func() ([][]float32, error) {
		return p.inner.Embed(ctx, texts)
	})
}

// Dim implements domain.EmbeddingProvider.
func (p *CircuitBreakerProvider) Dim(ctx context.Context) (int, error) {
	return resilience.Do(p.breaker, func() (int, error) {
		return p.inner.Dim(ctx)
	})
}

// Name implements domain.EmbeddingProvider.
func (p *CircuitBreakerProvider) Name() string { return p.inner.Name() }

// Compile-time interface check.
var _ domain.EmbeddingProvider = (*CircuitBreakerProvider)(nil)
