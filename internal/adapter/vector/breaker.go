package vector

import (
	"context"
	"log/slog"

	"cortexdb/internal/domain"
	"cortexdb/internal/infra/resilience"
)

// BreakingStore wraps a *Store with a circuit breaker around the calls the
// ingestion pipeline and hybrid search make against Qdrant. Methods
// BreakingStore doesn't override (Ping, Close, DropCollection) pass through
// unwrapped via the embedded *Store.
type BreakingStore struct {
	*Store
	breaker *resilience.Breaker
}

// NewBreakingStore wraps store with a circuit breaker. cfg's zero value
// uses resilience's default trip/reset thresholds.
func NewBreakingStore(store *Store, cfg resilience.Config, logger *slog.Logger) *BreakingStore {
	return &BreakingStore{Store: store, breaker: resilience.New("vector", cfg, logger)}
}

func (b *BreakingStore) EnsureCollection(ctx context.Context, schema domain.CollectionSchema, vectorSize int) error {
	return resilience.DoErr(b.breaker, func() error {
		return b.Store.EnsureCollection(ctx, schema, vectorSize)
	})
}

func (b *BreakingStore) Upsert(ctx context.Context, collection string, points []domain.VectorPoint) error {
	return resilience.DoErr(b.breaker, func() error {
		return b.Store.Upsert(ctx, collection, points)
	})
}

func (b *BreakingStore) DeleteRecord(ctx context.Context, collection, recordID string) error {
	return resilience.DoErr(b.breaker, func() error {
		return b.Store.DeleteRecord(ctx, collection, recordID)
	})
}

func (b *BreakingStore) DeleteRecordField(ctx context.Context, collection, recordID, field string) error {
	return resilience.DoErr(b.breaker, func() error {
		return b.Store.DeleteRecordField(ctx, collection, recordID, field)
	})
}

func (b *BreakingStore) Search(ctx context.Context, collection string, queryVector []float32, filters []domain.VectorFilter, limit int) ([]domain.SearchHit, error) {
	return resilience.Do(b.breaker, func() ([]domain.SearchHit, error) {
		return b.Store.Search(ctx, collection, queryVector, filters, limit)
	})
}
