package config

import (
	"fmt"
	"net"
	"strings"
)

// ValidationError accumulates configuration validation failures.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "invalid configuration:\n  " + strings.Join(v.Errors, "\n  ")
}

func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

func (v *ValidationError) Add(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks a Config for structural and semantic errors.
func Validate(cfg *Config) error {
	ve := &ValidationError{}

	validatePostgres(cfg, ve)
	validateQdrant(cfg, ve)
	validateMinio(cfg, ve)
	validateAuth(cfg, ve)
	validateCatalog(cfg, ve)
	validateGateway(cfg, ve)
	validateProviders(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	validateSecurity(cfg, ve)

	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validatePostgres(cfg *Config, ve *ValidationError) {
	if cfg.Postgres.DSN == "" {
		ve.Add("postgres.dsn is required")
	}
	if cfg.Postgres.MaxConns <= 0 {
		ve.Add("postgres.max_conns must be positive, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.Postgres.MinConns < 0 {
		ve.Add("postgres.min_conns cannot be negative, got %d", cfg.Postgres.MinConns)
	}
	if cfg.Postgres.MinConns > cfg.Postgres.MaxConns {
		ve.Add("postgres.min_conns (%d) cannot exceed postgres.max_conns (%d)", cfg.Postgres.MinConns, cfg.Postgres.MaxConns)
	}
	if cfg.Postgres.ConnectTimeout <= 0 {
		ve.Add("postgres.connect_timeout must be positive")
	}
}

func validateQdrant(cfg *Config, ve *ValidationError) {
	if cfg.Qdrant.Addr == "" {
		ve.Add("qdrant.addr is required")
		return
	}
	if _, _, err := net.SplitHostPort(cfg.Qdrant.Addr); err != nil {
		ve.Add("qdrant.addr %q is not a valid host:port: %v", cfg.Qdrant.Addr, err)
	}
}

func validateMinio(cfg *Config, ve *ValidationError) {
	if cfg.MinIO.Endpoint == "" {
		ve.Add("minio.endpoint is required")
	}
	if cfg.MinIO.AccessKeyID == "" {
		ve.Add("minio.access_key_id is required")
	}
	if cfg.MinIO.SecretAccessKey == "" {
		ve.Add("minio.secret_access_key is required")
	}
}

func validateAuth(cfg *Config, ve *ValidationError) {
	if cfg.Auth.CacheTTL <= 0 {
		ve.Add("auth.cache_ttl must be positive")
	}
	if cfg.Auth.CacheSweepInterval <= 0 {
		ve.Add("auth.cache_sweep_interval must be positive")
	}
	if cfg.Auth.BootstrapKeyName == "" {
		ve.Add("auth.bootstrap_key_name is required")
	}
}

func validateCatalog(cfg *Config, ve *ValidationError) {
	if cfg.Catalog.DefaultChunkSize <= 0 {
		ve.Add("catalog.default_chunk_size must be positive, got %d", cfg.Catalog.DefaultChunkSize)
	}
	if cfg.Catalog.DefaultChunkOverlap < 0 {
		ve.Add("catalog.default_chunk_overlap cannot be negative, got %d", cfg.Catalog.DefaultChunkOverlap)
	}
	if cfg.Catalog.DefaultChunkOverlap >= cfg.Catalog.DefaultChunkSize {
		ve.Add("catalog.default_chunk_overlap (%d) must be smaller than default_chunk_size (%d)", cfg.Catalog.DefaultChunkOverlap, cfg.Catalog.DefaultChunkSize)
	}
	if cfg.Catalog.PresignTTL <= 0 {
		ve.Add("catalog.presign_ttl must be positive")
	}
	if cfg.Catalog.HousekeepingEnabled && cfg.Catalog.HousekeepingSchedule == "" {
		ve.Add("catalog.housekeeping_schedule is required when housekeeping_enabled is true")
	}
}

func validateGateway(cfg *Config, ve *ValidationError) {
	if cfg.Gateway.Addr == "" {
		ve.Add("gateway.addr is required")
		return
	}
	if _, _, err := net.SplitHostPort(cfg.Gateway.Addr); err != nil {
		ve.Add("gateway.addr %q is not a valid host:port: %v", cfg.Gateway.Addr, err)
	}
	if cfg.Gateway.RateLimitRPS <= 0 {
		ve.Add("gateway.rate_limit_rps must be positive")
	}
	if cfg.Gateway.RateLimitBurst <= 0 {
		ve.Add("gateway.rate_limit_burst must be positive")
	}
}

var validProviderKinds = map[string]bool{
	"gemini": true,
	"openai": true,
	"ollama": true,
}

func validateProviders(cfg *Config, ve *ValidationError) {
	seen := map[string]bool{}
	for i, p := range cfg.Providers {
		if p.Name == "" {
			ve.Add("providers[%d].name is required", i)
		} else if seen[p.Name] {
			ve.Add("providers[%d].name %q is duplicated", i, p.Name)
		}
		seen[p.Name] = true

		if !validProviderKinds[p.Kind] {
			ve.Add("providers[%d].kind %q is not one of gemini, openai, ollama", i, p.Kind)
		}
		if p.EmbeddingModel == "" {
			ve.Add("providers[%d].embedding_model is required", i)
		}
	}
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

var validLogFormats = map[string]bool{
	"json": true, "console": true, "text": true,
}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogLevels[cfg.Logger.Level] {
		ve.Add("logger.level %q is not one of debug, info, warn, error", cfg.Logger.Level)
	}
	if !validLogFormats[cfg.Logger.Format] {
		ve.Add("logger.format %q is not one of json, console, text", cfg.Logger.Format)
	}
}

var validTracerExporters = map[string]bool{
	"noop": true, "": true, "stdout": true,
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if cfg.Tracer.Enabled && !validTracerExporters[cfg.Tracer.Exporter] {
		ve.Add("tracer.exporter %q is not one of noop, stdout", cfg.Tracer.Exporter)
	}
}

func validateSecurity(cfg *Config, ve *ValidationError) {
	if cfg.Security.Audit.Enabled && cfg.Security.Audit.Path == "" {
		ve.Add("security.audit.path is required when audit.enabled is true")
	}
	if cfg.Security.KeyRotation.Enabled && cfg.Security.KeyRotation.Interval == "" {
		ve.Add("security.key_rotation.interval is required when key_rotation.enabled is true")
	}
}
