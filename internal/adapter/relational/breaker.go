package relational

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"cortexdb/internal/domain"
	"cortexdb/internal/infra/resilience"
)

// BreakingStore wraps a *Store with a circuit breaker around the calls the
// ingestion pipeline, hybrid search, and the catalog make against Postgres,
// so a flapping connection pool fails fast instead of queuing requests
// behind a dependency that isn't answering. Every method *Store exposes but
// BreakingStore doesn't override (Ping, RunMigrations, and so on) passes
// through unwrapped via the embedded *Store.
type BreakingStore struct {
	*Store
	breaker *resilience.Breaker
}

// NewBreakingStore wraps store with a circuit breaker. cfg's zero value
// uses resilience's default trip/reset thresholds.
func NewBreakingStore(store *Store, cfg resilience.Config, logger *slog.Logger) *BreakingStore {
	return &BreakingStore{Store: store, breaker: resilience.New("relational", cfg, logger)}
}

func (b *BreakingStore) GetCollectionSchema(ctx context.Context, database, name string) (domain.CollectionSchema, error) {
	return resilience.Do(b.breaker, func() (domain.CollectionSchema, error) {
		return b.Store.GetCollectionSchema(ctx, database, name)
	})
}

func (b *BreakingStore) GetProvider(ctx context.Context, name string) (domain.ProviderConfig, error) {
	return resilience.Do(b.breaker, func() (domain.ProviderConfig, error) {
		return b.Store.GetProvider(ctx, name)
	})
}

func (b *BreakingStore) InsertRecord(ctx context.Context, schema domain.CollectionSchema, id uuid.UUID, prepared domain.PreparedRecord, now time.Time) error {
	return resilience.DoErr(b.breaker, func() error {
		return b.Store.InsertRecord(ctx, schema, id, prepared, now)
	})
}

func (b *BreakingStore) UpdateRecord(ctx context.Context, schema domain.CollectionSchema, id uuid.UUID, prepared domain.PreparedRecord, now time.Time) error {
	return resilience.DoErr(b.breaker, func() error {
		return b.Store.UpdateRecord(ctx, schema, id, prepared, now)
	})
}

func (b *BreakingStore) DeleteRecord(ctx context.Context, schema domain.CollectionSchema, id uuid.UUID) error {
	return resilience.DoErr(b.breaker, func() error {
		return b.Store.DeleteRecord(ctx, schema, id)
	})
}

func (b *BreakingStore) GetRecord(ctx context.Context, schema domain.CollectionSchema, id uuid.UUID) (domain.Record, error) {
	return resilience.Do(b.breaker, func() (domain.Record, error) {
		return b.Store.GetRecord(ctx, schema, id)
	})
}
