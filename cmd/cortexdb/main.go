// Command cortexdb runs the CortexDB gateway: an HTTP API fronting Postgres,
// Qdrant, and MinIO for multi-modal record storage, embedding, and hybrid
// search.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cortexdb/internal/adapter/embedding"
	"cortexdb/internal/adapter/gateway"
	"cortexdb/internal/adapter/object"
	"cortexdb/internal/adapter/relational"
	"cortexdb/internal/adapter/vector"
	"cortexdb/internal/domain"
	"cortexdb/internal/infra/config"
	"cortexdb/internal/infra/logger"
	"cortexdb/internal/infra/middleware"
	"cortexdb/internal/infra/resilience"
	"cortexdb/internal/infra/tracer"
	"cortexdb/internal/usecase/auth"
	"cortexdb/internal/usecase/catalog"
	"cortexdb/internal/usecase/chunk"
	"cortexdb/internal/usecase/extract"
	"cortexdb/internal/usecase/ingest"
	"cortexdb/internal/usecase/search"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "cortexdb:", err)
		os.Exit(1)
	}
}

func configPath() string {
	for i, arg := range os.Args {
		if (arg == "--config" || arg == "-config") && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
	}
	if v := os.Getenv("CORTEXDB_CONFIG"); v != "" {
		return v
	}
	return "cortexdb.yaml"
}

func run() error {
	// 1. Config
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// 2. Logger & tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx := context.Background()
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	// 3. Security (config-secret encryption, admin-action audit, key rotation)
	sec, secCleanup, err := initSecurity(cfg, log)
	if err != nil {
		return fmt.Errorf("security: %w", err)
	}
	defer secCleanup()

	// 4. Backing stores
	relStore, err := relational.New(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("relational store: %w", err)
	}
	defer relStore.Close()

	if err := relStore.RunMigrations(ctx, log); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	vecStore, err := vector.New(cfg.Qdrant)
	if err != nil {
		return fmt.Errorf("vector store: %w", err)
	}
	defer vecStore.Close()

	objStore, err := object.New(cfg.MinIO)
	if err != nil {
		return fmt.Errorf("object store: %w", err)
	}

	// Circuit-breaker-guarded views of the three stores, used everywhere the
	// ingestion pipeline and hybrid search make outbound calls, so a
	// flapping dependency fails fast instead of queuing blocked goroutines.
	breakingRel := relational.NewBreakingStore(relStore, resilience.Config{}, log)
	breakingVec := vector.NewBreakingStore(vecStore, resilience.Config{}, log)
	breakingObj := object.NewBreakingStore(objStore, resilience.Config{}, log)

	// 5. Embedding providers
	registry := embedding.NewRegistry(256)
	if err := seedProviders(ctx, relStore, registry, cfg.Providers, log); err != nil {
		return fmt.Errorf("seed providers: %w", err)
	}

	// 6. Auth
	authSvc := auth.NewService(relStore, log, cfg.Auth.CacheTTL, cfg.Auth.CacheSweepInterval)
	if err := authSvc.Bootstrap(ctx, os.Getenv("CORTEXDB_ADMIN_KEY"), cfg.Gateway.Addr); err != nil {
		return fmt.Errorf("auth bootstrap: %w", err)
	}

	// 7. Use cases
	catalogSvc := &catalog.Service{
		Relational: breakingRel,
		Vector:     breakingVec,
		Object:     breakingObj,
		Embeddings: registry,
		Auth:       authSvc,
		Audit:      sec.AuditLogger,
		Logger:     log,
	}

	tokenizer, err := chunk.NewTokenChunker("cl100k_base")
	if err != nil {
		return fmt.Errorf("chunk tokenizer: %w", err)
	}

	ingestSvc := &ingest.Service{
		Relational:          breakingRel,
		Vector:              breakingVec,
		Object:              breakingObj,
		Embeddings:          registry,
		Extract:             &extract.Service{},
		Logger:              log,
		DefaultChunkSize:    cfg.Catalog.DefaultChunkSize,
		DefaultChunkOverlap: cfg.Catalog.DefaultChunkOverlap,
		PresignTTL:          cfg.Catalog.PresignTTL,
		Tokenizer:           tokenizer,
	}

	searchSvc := &search.Service{
		Relational: breakingRel,
		Vector:     breakingVec,
		Object:     breakingObj,
		Embeddings: registry,
		Logger:     log,
		PresignTTL: cfg.Catalog.PresignTTL,
	}

	// 8. Gateway
	metrics := &gateway.Metrics{}
	startTime := time.Now()

	srv := gateway.NewServer(cfg.Gateway.Addr, log, gateway.WithTimeouts(
		cfg.Gateway.ReadTimeout, cfg.Gateway.WriteTimeout, cfg.Gateway.ShutdownTimeout,
	))

	ctxShutdown, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv.Use(middleware.SecurityHeaders)
	srv.Use(middleware.RateLimit(ctxShutdown, int(cfg.Gateway.RateLimitRPS*60), cfg.Gateway.RateLimitBurst))

	// API-key auth is applied per route inside RegisterCatalogRoutes and
	// RegisterRecordRoutes, not globally: health, status, and metrics
	// endpoints stay reachable by probes and scrapers that carry no key.
	handlerDeps := gateway.HandlerDeps{
		Catalog: catalogSvc,
		Ingest:  ingestSvc,
		Search:  searchSvc,
		Metrics: metrics,
		Auth:    authSvc,
	}
	gateway.RegisterCatalogRoutes(srv, handlerDeps)
	gateway.RegisterRecordRoutes(srv, handlerDeps)

	statusDeps := gateway.StatusDeps{
		Postgres: relStore,
		Qdrant:   vecStore,
		MinIO:    objStore,
		Catalog:  relStore,
	}
	gateway.RegisterOpsRoutes(srv, statusDeps, metrics, startTime)
	gateway.RegisterHealthRoutes(srv, statusDeps)

	log.Info("cortexdb starting",
		"addr", cfg.Gateway.Addr,
		"providers", len(cfg.Providers),
		"encryption", sec.Encryptor != nil,
		"audit", sec.AuditLogger != nil,
	)

	if sec.KeyRotator != nil {
		go sec.KeyRotator.Start(ctxShutdown)
	}

	if cfg.Catalog.HousekeepingEnabled {
		vacuum, err := catalogSvc.StartVacuum(cfg.Catalog.HousekeepingSchedule, log)
		if err != nil {
			return fmt.Errorf("housekeeping: %w", err)
		}
		defer vacuum.Stop()
	}

	return srv.Start(ctxShutdown)
}

// seedProviders inserts each startup-configured provider into the catalog if
// it doesn't already exist, leaving providers created later via the admin
// API untouched.
func seedProviders(ctx context.Context, store *relational.Store, registry *embedding.Registry, providers []config.ProviderConfig, log *slog.Logger) error {
	for _, p := range providers {
		_, err := store.GetProvider(ctx, p.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrProviderNotFound) {
			return fmt.Errorf("seed provider %q: lookup: %w", p.Name, err)
		}
		cfg := domain.ProviderConfig{
			Name:           p.Name,
			Kind:           domain.EmbeddingProviderKind(p.Kind),
			EmbeddingModel: p.EmbeddingModel,
			BaseURL:        p.BaseURL,
			APIKey:         p.APIKey,
			Enabled:        true,
			CreatedAt:      time.Now(),
			UpdatedAt:      time.Now(),
		}
		if err := store.InsertProvider(ctx, cfg); err != nil {
			return fmt.Errorf("seed provider %q: %w", p.Name, err)
		}
		registry.Forget(p.Name)
		log.Info("embedding provider seeded", "name", p.Name, "kind", p.Kind)
	}
	return nil
}
