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

// collectionRow is the persisted shape of a _cortex_collections row: the
// compiled CollectionSchema plus the catalog-owned id and provider link that
// don't belong on the domain type itself.
type collectionRow struct {
	ID         uuid.UUID
	ProviderID *uuid.UUID
	Schema     domain.CollectionSchema
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// InsertCollection persists a new _cortex_collections row, then generates its
// record tables. DDL in Postgres can't share a transaction with the pooled
// connection used for the catalog insert, so table creation runs after the
// insert commits; if it fails, the catalog row is rolled back by deleting it
// so the two never drift out of sync.
func (s *Store) InsertCollection(ctx context.Context, id uuid.UUID, schema domain.CollectionSchema, providerID *uuid.UUID, now time.Time) error {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("relational: marshal collection schema: %w", err)
	}
	var providerIDStr *string
	if providerID != nil {
		str := providerID.String()
		providerIDStr = &str
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO _cortex_collections
			(id, database_name, name, schema, embedding_model, embedding_provider_id, chunk_size, chunk_overlap, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, id.String(), schema.Database, schema.Name, schemaJSON, schema.Config.EmbeddingModel, providerIDStr,
		schema.Config.ChunkSize, schema.Config.ChunkOverlap, now)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewSubSystemError("collection", "relational.insert_collection", domain.ErrConflict, schema.Name)
		}
		return fmt.Errorf("relational: insert collection row: %w", domain.NewSubSystemError("relational", "relational.insert_collection", domain.ErrRelationalStore, err.Error()))
	}

	if err := s.CreateCollectionTables(ctx, schema); err != nil {
		_, _ = s.pool.Exec(ctx, "DELETE FROM _cortex_collections WHERE database_name = $1 AND name = $2", schema.Database, schema.Name)
		return err
	}

	return nil
}

// GetCollectionSchema loads a collection's compiled schema by database and name.
func (s *Store) GetCollectionSchema(ctx context.Context, database, name string) (domain.CollectionSchema, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT schema FROM _cortex_collections WHERE database_name = $1 AND name = $2
	`, database, name)
	var schemaJSON []byte
	if err := row.Scan(&schemaJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CollectionSchema{}, domain.NewSubSystemError("collection", "relational.get_collection", domain.ErrNotFound, name)
		}
		return domain.CollectionSchema{}, fmt.Errorf("relational: get collection: %w", err)
	}
	var schema domain.CollectionSchema
	if err := json.Unmarshal(schemaJSON, &schema); err != nil {
		return domain.CollectionSchema{}, fmt.Errorf("relational: unmarshal collection schema: %w", err)
	}
	return schema, nil
}

// ListCollectionSchemas returns every collection in database, ordered by name.
func (s *Store) ListCollectionSchemas(ctx context.Context, database string) ([]domain.CollectionSchema, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT schema FROM _cortex_collections WHERE database_name = $1 ORDER BY name
	`, database)
	if err != nil {
		return nil, fmt.Errorf("relational: list collections: %w", err)
	}
	defer rows.Close()

	var out []domain.CollectionSchema
	for rows.Next() {
		var schemaJSON []byte
		if err := rows.Scan(&schemaJSON); err != nil {
			return nil, fmt.Errorf("relational: scan collection: %w", err)
		}
		var schema domain.CollectionSchema
		if err := json.Unmarshal(schemaJSON, &schema); err != nil {
			return nil, fmt.Errorf("relational: unmarshal collection schema: %w", err)
		}
		out = append(out, schema)
	}
	return out, rows.Err()
}

// DeleteCollection drops a collection's catalog row, then its generated
// record tables. schema must be the row's current schema, fetched by the
// caller before deletion, since dropping the catalog row first would
// otherwise lose the field list needed to find the child tables.
func (s *Store) DeleteCollection(ctx context.Context, schema domain.CollectionSchema) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM _cortex_collections WHERE database_name = $1 AND name = $2", schema.Database, schema.Name)
	if err != nil {
		return fmt.Errorf("relational: delete collection row: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewSubSystemError("collection", "relational.delete_collection", domain.ErrNotFound, schema.Name)
	}

	return s.DropCollectionTables(ctx, schema)
}
