package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cortexdb/internal/domain"
)

// CreateDatabase validates name against the stricter database-identifier
// pattern (it becomes a literal namespace prefix for tables, Qdrant
// collections, and bucket names) and persists a new catalog row.
func (s *Service) CreateDatabase(ctx context.Context, name, description string) (domain.Database, error) {
	if err := domain.ValidateDatabaseName(name); err != nil {
		return domain.Database{}, fmt.Errorf("%w: database name %q", err, name)
	}
	now := time.Now()
	db := domain.Database{ID: uuid.New(), Name: name, Description: description, CreatedAt: now, UpdatedAt: now}
	if err := s.Relational.InsertDatabase(ctx, db); err != nil {
		return domain.Database{}, fmt.Errorf("catalog: insert database: %w", err)
	}
	s.audit(ctx, domain.AuditDatabaseCreate, name, "create", nil)
	return db, nil
}

// ListDatabases returns every database, ordered by name.
func (s *Service) ListDatabases(ctx context.Context) ([]domain.Database, error) {
	return s.Relational.ListDatabases(ctx)
}

// DeleteDatabase tears down every collection in database, then removes the
// database's own catalog row. _cortex_collections.database_name carries an
// ON DELETE CASCADE against _cortex_databases(name), so Postgres would drop
// the catalog rows for us regardless, but that cascade only ever touches
// catalog metadata: it knows nothing about the Qdrant collections or
// generated Postgres record tables each collection also owns. Left to the
// cascade alone those would become orphaned, so each collection is deleted
// explicitly through DeleteCollection first. MinIO buckets stay in place,
// as DeleteCollection leaves them.
func (s *Service) DeleteDatabase(ctx context.Context, name string) error {
	if _, err := s.Relational.GetDatabase(ctx, name); err != nil {
		return fmt.Errorf("catalog: load database: %w", err)
	}
	collections, err := s.Relational.ListCollectionSchemas(ctx, name)
	if err != nil {
		return fmt.Errorf("catalog: list collections: %w", err)
	}
	for _, schema := range collections {
		if err := s.DeleteCollection(ctx, name, schema.Name); err != nil {
			return fmt.Errorf("catalog: delete collection %q: %w", schema.Name, err)
		}
	}
	if err := s.Relational.DeleteDatabase(ctx, name); err != nil {
		return fmt.Errorf("catalog: delete database: %w", err)
	}
	s.audit(ctx, domain.AuditDatabaseDelete, name, "delete", nil)
	return nil
}
