// Package relational adapts the control catalog and record storage onto
// Postgres via pgx/v5, generating one table per collection (plus one child
// table per array field) from its domain.CollectionSchema.
package relational

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"cortexdb/internal/infra/config"
)

// Store wraps a pgx connection pool and implements the relational half of
// the catalog, ingest, and auth use cases.
type Store struct {
	pool *pgxpool.Pool
}

// New opens a connection pool against cfg and verifies connectivity.
func New(ctx context.Context, cfg config.PostgresConfig) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("relational: parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("relational: open pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("relational: ping: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Ping satisfies gateway.HealthChecker.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
