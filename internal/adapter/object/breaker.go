package object

import (
	"context"
	"log/slog"
	"time"

	"cortexdb/internal/infra/resilience"
)

// BreakingStore wraps a *Store with a circuit breaker around the calls the
// ingestion pipeline and hybrid search make against MinIO. Methods
// BreakingStore doesn't override (Ping, Get) pass through unwrapped via the
// embedded *Store.
type BreakingStore struct {
	*Store
	breaker *resilience.Breaker
}

// NewBreakingStore wraps store with a circuit breaker. cfg's zero value
// uses resilience's default trip/reset thresholds.
func NewBreakingStore(store *Store, cfg resilience.Config, logger *slog.Logger) *BreakingStore {
	return &BreakingStore{Store: store, breaker: resilience.New("object", cfg, logger)}
}

func (b *BreakingStore) EnsureBucket(ctx context.Context, bucket string) error {
	return resilience.DoErr(b.breaker, func() error {
		return b.Store.EnsureBucket(ctx, bucket)
	})
}

func (b *BreakingStore) Put(ctx context.Context, bucket, objectName string, data []byte, contentType string) error {
	return resilience.DoErr(b.breaker, func() error {
		return b.Store.Put(ctx, bucket, objectName, data, contentType)
	})
}

func (b *BreakingStore) Delete(ctx context.Context, bucket, objectName string) error {
	return resilience.DoErr(b.breaker, func() error {
		return b.Store.Delete(ctx, bucket, objectName)
	})
}

func (b *BreakingStore) PresignGet(ctx context.Context, bucket, objectName string, expires time.Duration) (string, error) {
	return resilience.Do(b.breaker, func() (string, error) {
		return b.Store.PresignGet(ctx, bucket, objectName, expires)
	})
}
