package relational

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"cortexdb/internal/domain"
)

// --- databases ---

// InsertDatabase persists a new database row.
func (s *Store) InsertDatabase(ctx context.Context, db domain.Database) error {
	metadata, err := json.Marshal(db.Metadata)
	if err != nil {
		return fmt.Errorf("relational: marshal database metadata: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO _cortex_databases (id, name, description, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`, db.ID.String(), db.Name, db.Description, metadata, db.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewSubSystemError("database", "relational.insert_database", domain.ErrConflict, db.Name)
		}
		return fmt.Errorf("relational: insert database: %w", domain.NewSubSystemError("relational", "relational.insert_database", domain.ErrRelationalStore, err.Error()))
	}
	return nil
}

// GetDatabase looks up a database row by name.
func (s *Store) GetDatabase(ctx context.Context, name string) (domain.Database, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, description, metadata, created_at, updated_at
		FROM _cortex_databases WHERE name = $1
	`, name)
	return scanDatabase(row)
}

// ListDatabases returns every database row, ordered by name.
func (s *Store) ListDatabases(ctx context.Context) ([]domain.Database, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, description, metadata, created_at, updated_at
		FROM _cortex_databases ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("relational: list databases: %w", err)
	}
	defer rows.Close()

	var out []domain.Database
	for rows.Next() {
		db, err := scanDatabaseRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, db)
	}
	return out, rows.Err()
}

// DeleteDatabase removes a database row by name.
func (s *Store) DeleteDatabase(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM _cortex_databases WHERE name = $1", name)
	if err != nil {
		return fmt.Errorf("relational: delete database: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewSubSystemError("database", "relational.delete_database", domain.ErrNotFound, name)
	}
	return nil
}

// DatabaseCount satisfies gateway.CatalogCounter.
func (s *Store) DatabaseCount(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM _cortex_databases").Scan(&n); err != nil {
		return 0, fmt.Errorf("relational: count databases: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDatabase(row pgx.Row) (domain.Database, error) {
	return scanDatabaseRows(row)
}

func scanDatabaseRows(row rowScanner) (domain.Database, error) {
	var (
		db       domain.Database
		id       string
		metadata []byte
	)
	if err := row.Scan(&id, &db.Name, &db.Description, &metadata, &db.CreatedAt, &db.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Database{}, domain.NewSubSystemError("database", "relational.get_database", domain.ErrNotFound, "")
		}
		return domain.Database{}, fmt.Errorf("relational: scan database: %w", err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return domain.Database{}, fmt.Errorf("relational: parse database id: %w", err)
	}
	db.ID = parsed
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &db.Metadata); err != nil {
			return domain.Database{}, fmt.Errorf("relational: unmarshal database metadata: %w", err)
		}
	}
	return db, nil
}

// --- embedding providers ---

// InsertProvider persists a new embedding provider row.
func (s *Store) InsertProvider(ctx context.Context, p domain.ProviderConfig) error {
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("relational: marshal provider metadata: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO _cortex_embedding_providers
			(id, name, kind, embedding_model, base_url, api_key, metadata, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, p.ID.String(), p.Name, string(p.Kind), p.EmbeddingModel, p.BaseURL, p.APIKey, metadata, p.Enabled, p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewSubSystemError("provider", "relational.insert_provider", domain.ErrConflict, p.Name)
		}
		return fmt.Errorf("relational: insert provider: %w", domain.NewSubSystemError("relational", "relational.insert_provider", domain.ErrRelationalStore, err.Error()))
	}
	return nil
}

// GetProvider looks up an embedding provider row by name.
func (s *Store) GetProvider(ctx context.Context, name string) (domain.ProviderConfig, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, kind, embedding_model, base_url, api_key, metadata, enabled, created_at, updated_at
		FROM _cortex_embedding_providers WHERE name = $1
	`, name)
	return scanProvider(row)
}

// ListProviders returns every embedding provider row, ordered by name.
func (s *Store) ListProviders(ctx context.Context) ([]domain.ProviderConfig, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, kind, embedding_model, base_url, api_key, metadata, enabled, created_at, updated_at
		FROM _cortex_embedding_providers ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("relational: list providers: %w", err)
	}
	defer rows.Close()

	var out []domain.ProviderConfig
	for rows.Next() {
		p, err := scanProviderRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteProvider removes an embedding provider row by name.
func (s *Store) DeleteProvider(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM _cortex_embedding_providers WHERE name = $1", name)
	if err != nil {
		return fmt.Errorf("relational: delete provider: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewSubSystemError("provider", "relational.delete_provider", domain.ErrNotFound, name)
	}
	return nil
}

// ProviderCount satisfies gateway.CatalogCounter.
func (s *Store) ProviderCount(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM _cortex_embedding_providers").Scan(&n); err != nil {
		return 0, fmt.Errorf("relational: count providers: %w", err)
	}
	return n, nil
}

func scanProvider(row pgx.Row) (domain.ProviderConfig, error) {
	return scanProviderRows(row)
}

func scanProviderRows(row rowScanner) (domain.ProviderConfig, error) {
	var (
		p        domain.ProviderConfig
		id       string
		kind     string
		metadata []byte
	)
	if err := row.Scan(&id, &p.Name, &kind, &p.EmbeddingModel, &p.BaseURL, &p.APIKey, &metadata, &p.Enabled, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ProviderConfig{}, domain.NewSubSystemError("provider", "relational.get_provider", domain.ErrNotFound, "")
		}
		return domain.ProviderConfig{}, fmt.Errorf("relational: scan provider: %w", err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return domain.ProviderConfig{}, fmt.Errorf("relational: parse provider id: %w", err)
	}
	p.ID = parsed
	p.Kind = domain.EmbeddingProviderKind(kind)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return domain.ProviderConfig{}, fmt.Errorf("relational: unmarshal provider metadata: %w", err)
		}
	}
	return p, nil
}

// --- API keys ---

// InsertAPIKey satisfies auth.Store.
func (s *Store) InsertAPIKey(ctx context.Context, key domain.APIKey) error {
	permissions, err := json.Marshal(key.Permissions)
	if err != nil {
		return fmt.Errorf("relational: marshal key permissions: %w", err)
	}
	databases, err := json.Marshal(key.Databases)
	if err != nil {
		return fmt.Errorf("relational: marshal key databases: %w", err)
	}
	var createdBy *string
	if key.CreatedBy != nil {
		s := key.CreatedBy.String()
		createdBy = &s
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO api_keys
			(id, key_hash, key_prefix, name, description, type, permissions, databases,
			 created_at, created_by, last_used_at, expires_at, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, key.ID.String(), key.KeyHash, key.KeyPrefix, key.Name, key.Description, string(key.Type),
		permissions, databases, key.CreatedAt, createdBy, key.LastUsedAt, key.ExpiresAt, key.Enabled)
	if err != nil {
		return fmt.Errorf("relational: insert api key: %w", domain.NewSubSystemError("relational", "relational.insert_api_key", domain.ErrRelationalStore, err.Error()))
	}
	return nil
}

// GetAPIKeyByHash satisfies auth.Store.
func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (domain.APIKey, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, key_hash, key_prefix, name, description, type, permissions, databases,
		       created_at, created_by, last_used_at, expires_at, enabled
		FROM api_keys WHERE key_hash = $1
	`, keyHash)
	return scanAPIKey(row)
}

// ListAPIKeys satisfies auth.Store.
func (s *Store) ListAPIKeys(ctx context.Context) ([]domain.APIKey, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, key_hash, key_prefix, name, description, type, permissions, databases,
		       created_at, created_by, last_used_at, expires_at, enabled
		FROM api_keys ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("relational: list api keys: %w", err)
	}
	defer rows.Close()

	var out []domain.APIKey
	for rows.Next() {
		key, err := scanAPIKeyRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

// DeleteAPIKey satisfies auth.Store.
func (s *Store) DeleteAPIKey(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM api_keys WHERE id = $1", id.String())
	if err != nil {
		return fmt.Errorf("relational: delete api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewSubSystemError("apikey", "relational.delete_api_key", domain.ErrNotFound, id.String())
	}
	return nil
}

// DeleteExpiredAPIKeys deletes every key whose expires_at has passed and
// returns the number removed. Keys with no expiry (expires_at IS NULL) are
// left alone.
func (s *Store) DeleteExpiredAPIKeys(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM api_keys WHERE expires_at IS NOT NULL AND expires_at < $1", now)
	if err != nil {
		return 0, fmt.Errorf("relational: delete expired api keys: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// CountAdminKeys satisfies auth.Store: counts keys, enabled or not, whose
// permissions JSON has "Admin": true.
func (s *Store) CountAdminKeys(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM api_keys WHERE (permissions->>'Admin')::boolean = TRUE
	`).Scan(&n); err != nil {
		return 0, fmt.Errorf("relational: count admin keys: %w", err)
	}
	return n, nil
}

// TouchLastUsed satisfies auth.Store.
func (s *Store) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, "UPDATE api_keys SET last_used_at = $2 WHERE id = $1", id.String(), time.Now())
	return err
}

func scanAPIKey(row pgx.Row) (domain.APIKey, error) {
	return scanAPIKeyRows(row)
}

func scanAPIKeyRows(row rowScanner) (domain.APIKey, error) {
	var (
		key         domain.APIKey
		id          string
		keyType     string
		permissions []byte
		databases   []byte
		createdBy   *string
	)
	if err := row.Scan(&id, &key.KeyHash, &key.KeyPrefix, &key.Name, &key.Description, &keyType,
		&permissions, &databases, &key.CreatedAt, &createdBy, &key.LastUsedAt, &key.ExpiresAt, &key.Enabled); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.APIKey{}, domain.NewSubSystemError("apikey", "relational.get_api_key", domain.ErrNotFound, "")
		}
		return domain.APIKey{}, fmt.Errorf("relational: scan api key: %w", err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return domain.APIKey{}, fmt.Errorf("relational: parse api key id: %w", err)
	}
	key.ID = parsed
	key.Type = domain.APIKeyType(keyType)
	if err := json.Unmarshal(permissions, &key.Permissions); err != nil {
		return domain.APIKey{}, fmt.Errorf("relational: unmarshal key permissions: %w", err)
	}
	if len(databases) > 0 {
		if err := json.Unmarshal(databases, &key.Databases); err != nil {
			return domain.APIKey{}, fmt.Errorf("relational: unmarshal key databases: %w", err)
		}
	}
	if createdBy != nil {
		parsedBy, err := uuid.Parse(*createdBy)
		if err == nil {
			key.CreatedBy = &parsedBy
		}
	}
	return key, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && contains(err.Error(), "duplicate key value violates unique constraint")
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
