package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cortexdb/internal/adapter/object"
	"cortexdb/internal/adapter/vector"
	"cortexdb/internal/domain"
)

func requiresVectors(schema domain.CollectionSchema) bool {
	for _, f := range schema.Fields {
		if f.Scalar != nil && (f.Scalar.Vectorize || storesIn(f.Scalar.StoreIn, domain.StoreQdrant)) {
			return true
		}
	}
	return false
}

func requiresObjectStorage(schema domain.CollectionSchema) bool {
	for _, f := range schema.Fields {
		if f.Scalar != nil && f.Scalar.Type == domain.FieldFile {
			return true
		}
	}
	return false
}

func storesIn(locs []domain.StoreLocation, want domain.StoreLocation) bool {
	for _, l := range locs {
		if l == want {
			return true
		}
	}
	return false
}

// CreateCollection validates schema, resolves its bound embedding provider
// (if any), creates the Postgres record/array-child tables, and ensures the
// collection's Qdrant collection and MinIO bucket exist, mirroring
// CollectionService.create_collection.
func (s *Service) CreateCollection(ctx context.Context, schema domain.CollectionSchema) (domain.CollectionSchema, error) {
	if err := schema.Validate(); err != nil {
		return domain.CollectionSchema{}, err
	}

	var providerID *uuid.UUID
	if requiresVectors(schema) {
		if schema.Config.EmbeddingProviderID == "" {
			return domain.CollectionSchema{}, fmt.Errorf("%w: collection %q vectorizes a field but names no embedding provider", domain.ErrValidation, schema.Name)
		}
		cfg, err := s.Relational.GetProvider(ctx, schema.Config.EmbeddingProviderID)
		if err != nil {
			return domain.CollectionSchema{}, fmt.Errorf("catalog: load provider: %w", err)
		}
		providerID = &cfg.ID

		vectorSize, err := s.Embeddings.Dim(ctx, cfg)
		if err != nil {
			return domain.CollectionSchema{}, fmt.Errorf("catalog: provider dimension: %w", err)
		}
		if err := s.Vector.EnsureCollection(ctx, schema, vectorSize); err != nil {
			return domain.CollectionSchema{}, fmt.Errorf("catalog: ensure vector collection: %w", err)
		}
	}

	if requiresObjectStorage(schema) {
		if err := s.Object.EnsureBucket(ctx, object.BucketName(schema.Database, schema.Name)); err != nil {
			return domain.CollectionSchema{}, fmt.Errorf("catalog: ensure bucket: %w", err)
		}
	}

	if err := s.Relational.InsertCollection(ctx, uuid.New(), schema, providerID, time.Now()); err != nil {
		return domain.CollectionSchema{}, fmt.Errorf("catalog: insert collection: %w", err)
	}
	s.audit(ctx, domain.AuditCollectionCreate, schema.Database+"/"+schema.Name, "create", nil)
	return schema, nil
}

// GetCollection loads a single collection's compiled schema.
func (s *Service) GetCollection(ctx context.Context, database, name string) (domain.CollectionSchema, error) {
	return s.Relational.GetCollectionSchema(ctx, database, name)
}

// ListCollections returns every collection in database, ordered by name.
func (s *Service) ListCollections(ctx context.Context, database string) ([]domain.CollectionSchema, error) {
	return s.Relational.ListCollectionSchemas(ctx, database)
}

// DeleteCollection drops a collection's catalog row and generated Postgres
// tables, then its Qdrant collection if it had one. Its MinIO bucket is left
// alone: object storage doesn't support a cheap recursive delete, and
// CollectionService.delete_collection takes the same stance, logging instead
// of force-deleting bucket contents.
func (s *Service) DeleteCollection(ctx context.Context, database, name string) error {
	schema, err := s.Relational.GetCollectionSchema(ctx, database, name)
	if err != nil {
		return fmt.Errorf("catalog: load collection: %w", err)
	}
	if err := s.Relational.DeleteCollection(ctx, schema); err != nil {
		return fmt.Errorf("catalog: delete collection: %w", err)
	}
	if requiresVectors(schema) {
		if err := s.Vector.DropCollection(ctx, vector.CollectionName(schema)); err != nil {
			return fmt.Errorf("catalog: drop vector collection: %w", err)
		}
	}
	s.audit(ctx, domain.AuditCollectionDelete, database+"/"+name, "delete", nil)
	return nil
}
