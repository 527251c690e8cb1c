package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"cortexdb/internal/adapter/object"
	"cortexdb/internal/adapter/vector"
	"cortexdb/internal/domain"
)

// GetRecord loads a record's relational row (with its array children)
// unchanged; presigned URLs for file fields are attached by the search path,
// not plain record reads.
func (s *Service) GetRecord(ctx context.Context, database, collection, id string) (domain.Record, error) {
	schema, err := s.Relational.GetCollectionSchema(ctx, database, collection)
	if err != nil {
		return domain.Record{}, fmt.Errorf("ingest: load schema: %w", err)
	}
	recordID, err := uuid.Parse(id)
	if err != nil {
		return domain.Record{}, fmt.Errorf("%w: invalid record id %q", domain.ErrValidation, id)
	}
	return s.Relational.GetRecord(ctx, schema, recordID)
}

// DeleteRecord removes a record's file blobs (best-effort), its vector
// points, then its relational row (which cascades to array children).
func (s *Service) DeleteRecord(ctx context.Context, database, collection, id string) error {
	schema, err := s.Relational.GetCollectionSchema(ctx, database, collection)
	if err != nil {
		return fmt.Errorf("ingest: load schema: %w", err)
	}
	recordID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: invalid record id %q", domain.ErrValidation, id)
	}

	record, err := s.Relational.GetRecord(ctx, schema, recordID)
	if err != nil {
		return fmt.Errorf("ingest: load record: %w", err)
	}

	if storesInObject(schema) {
		bucket := object.BucketName(database, collection)
		for _, f := range schema.Fields {
			if f.Scalar == nil || f.Scalar.Type != domain.FieldFile {
				continue
			}
			v, ok := record.Fields[f.Scalar.Name]
			if !ok || v.IsNull() || v.Str == "" {
				continue
			}
			if err := s.Object.Delete(ctx, bucket, v.Str); err != nil {
				s.logWarn("ingest: blob delete failed", "field", f.Scalar.Name, "path", v.Str, "error", err)
			}
		}
	}

	if requiresVectors(schema) {
		if err := s.Vector.DeleteRecord(ctx, vector.CollectionName(schema), recordID.String()); err != nil {
			s.logWarn("ingest: vector delete failed", "record_id", recordID, "error", err)
		}
	}

	if err := s.Relational.DeleteRecord(ctx, schema, recordID); err != nil {
		return fmt.Errorf("ingest: delete record: %w", err)
	}
	return nil
}
