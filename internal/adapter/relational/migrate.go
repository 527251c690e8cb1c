package relational

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"sort"

	"cortexdb/internal/domain"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// RunMigrations applies every unseen migration file in migrations/, in
// filename order, each in its own transaction, recording the filename in
// schema_migrations. Safe to call on every startup.
func (s *Store) RunMigrations(ctx context.Context, logger *slog.Logger) error {
	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id SERIAL PRIMARY KEY,
			filename TEXT UNIQUE NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return fmt.Errorf("relational: create schema_migrations: %w", domain.NewDomainError("relational.migrate", domain.ErrMigrationFailed, err.Error()))
	}

	applied := make(map[string]bool)
	rows, err := s.pool.Query(ctx, "SELECT filename FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("relational: list applied migrations: %w", err)
	}
	for rows.Next() {
		var filename string
		if err := rows.Scan(&filename); err != nil {
			rows.Close()
			return fmt.Errorf("relational: scan applied migration: %w", err)
		}
		applied[filename] = true
	}
	rows.Close()

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("relational: read embedded migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		if applied[name] {
			continue
		}
		sql, err := migrationFiles.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("relational: read migration %s: %w", name, err)
		}

		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("relational: begin migration %s: %w", name, err)
		}
		if _, err := tx.Exec(ctx, string(sql)); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("relational: apply migration %s: %w", name, domain.NewDomainError("relational.migrate", domain.ErrMigrationFailed, err.Error()))
		}
		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (filename) VALUES ($1)", name); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("relational: record migration %s: %w", name, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("relational: commit migration %s: %w", name, err)
		}
		logger.Info("migration applied", "file", name)
	}

	return nil
}
