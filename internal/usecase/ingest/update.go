package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cortexdb/internal/adapter/object"
	"cortexdb/internal/adapter/vector"
	"cortexdb/internal/domain"
)

// updatePrep is the in-flight compiled write for UpdateRecord: a full
// PreparedRecord (the relational adapter replaces every scalar column and
// fully re-inserts every array field's child rows each call) plus the
// bookkeeping needed to clean up what the update makes stale.
type updatePrep struct {
	prepared domain.PreparedRecord

	payloadBase map[string]domain.Value
	bucket      string

	newFilePaths        map[string]string // field -> path uploaded this call, rolled back on failure
	staleBlobPaths      []string          // previous blob paths to delete once the update commits
	changedVectorFields []string          // fields whose previous vector points must be dropped
}

// UpdateRecord applies only the fields present in fields; fields absent from
// the request keep their current value. A changed file field uploads its
// replacement blob before the relational commit and drops the old blob and
// the field's old vector points after; a changed vectorized scalar field
// drops its old vector points and re-embeds. Array fields fully replace
// their child rows when present in the request, per
// original_source/gateway/core/records.py's update_record.
func (s *Service) UpdateRecord(ctx context.Context, database, collection, id string, fields map[string]domain.Value) (domain.Record, error) {
	schema, err := s.Relational.GetCollectionSchema(ctx, database, collection)
	if err != nil {
		return domain.Record{}, fmt.Errorf("ingest: load schema: %w", err)
	}
	recordID, err := uuid.Parse(id)
	if err != nil {
		return domain.Record{}, fmt.Errorf("%w: invalid record id %q", domain.ErrValidation, id)
	}

	existing, err := s.Relational.GetRecord(ctx, schema, recordID)
	if err != nil {
		return domain.Record{}, fmt.Errorf("ingest: load record: %w", err)
	}

	var provider domain.EmbeddingProvider
	var vectorSize int
	if requiresVectors(schema) {
		provider, vectorSize, err = s.resolveProvider(ctx, schema)
		if err != nil {
			return domain.Record{}, err
		}
	}

	upd, err := s.prepareUpdate(ctx, schema, recordID, existing, fields, provider)
	if err != nil {
		s.rollbackBlobs(ctx, upd.bucket, upd.newFilePaths)
		return domain.Record{}, err
	}

	now := time.Now()
	if err := s.Relational.UpdateRecord(ctx, schema, recordID, upd.prepared, now); err != nil {
		s.rollbackBlobs(ctx, upd.bucket, upd.newFilePaths)
		return domain.Record{}, fmt.Errorf("ingest: update record: %w", err)
	}

	for _, path := range upd.staleBlobPaths {
		if err := s.Object.Delete(ctx, upd.bucket, path); err != nil {
			s.logWarn("ingest: stale blob delete failed", "path", path, "error", err)
		}
	}

	if requiresVectors(schema) {
		collectionName := vector.CollectionName(schema)
		for _, field := range upd.changedVectorFields {
			if err := s.Vector.DeleteRecordField(ctx, collectionName, recordID.String(), field); err != nil {
				s.logWarn("ingest: stale vector points delete failed", "field", field, "error", err)
			}
		}
		if len(upd.prepared.VectorPoints) > 0 {
			if err := s.Vector.EnsureCollection(ctx, schema, vectorSize); err != nil {
				return domain.Record{}, fmt.Errorf("ingest: ensure vector collection: %w", err)
			}
			if err := s.Vector.Upsert(ctx, collectionName, upd.prepared.VectorPoints); err != nil {
				// Relational commit already happened; reported, not rolled back,
				// matching CreateRecord's compensation rule.
				return domain.Record{}, fmt.Errorf("ingest: upsert vectors: %w", err)
			}
		}
	}

	return s.Relational.GetRecord(ctx, schema, recordID)
}

func (s *Service) prepareUpdate(ctx context.Context, schema domain.CollectionSchema, recordID uuid.UUID, existing domain.Record, fields map[string]domain.Value, provider domain.EmbeddingProvider) (updatePrep, error) {
	upd := updatePrep{
		prepared: domain.PreparedRecord{
			RelationalRow: map[string]domain.Value{},
			ArrayRows:     map[string][]map[string]domain.Value{},
		},
		payloadBase:  map[string]domain.Value{},
		newFilePaths: map[string]string{},
	}
	if storesInObject(schema) {
		upd.bucket = object.BucketName(schema.Database, schema.Name)
	}

	chunkSize, chunkOverlap := chunkSizes(schema, nil, s.DefaultChunkSize, s.DefaultChunkOverlap)

	// payload_base reflects the record's state after this update: the
	// incoming value where the request touches a field, the existing value
	// otherwise.
	for _, f := range schema.Fields {
		if f.Scalar == nil || f.Scalar.Type == domain.FieldFile || !storesIn(f.Scalar.StoreIn, domain.StoreQdrantPayload) {
			continue
		}
		v, ok := fields[f.Scalar.Name]
		if !ok {
			v, ok = existing.Fields[f.Scalar.Name]
		}
		if !ok || v.IsNull() {
			continue
		}
		converted, err := domain.Coerce(v, f.Scalar.Type, f.Scalar.EnumValues)
		if err != nil {
			return upd, fmt.Errorf("%w: field %q", err, f.Scalar.Name)
		}
		upd.payloadBase[f.Scalar.Name] = converted
	}

	for _, f := range schema.Fields {
		switch {
		case f.Array != nil:
			if err := updateArrayField(*f.Array, existing, fields, &upd); err != nil {
				return upd, err
			}
		case f.Scalar != nil && f.Scalar.Type == domain.FieldFile:
			if err := s.updateFileField(ctx, schema, recordID, *f.Scalar, existing, fields, chunkSize, chunkOverlap, provider, &upd); err != nil {
				return upd, err
			}
		case f.Scalar != nil:
			if err := s.updateScalarField(ctx, recordID, *f.Scalar, existing, fields, chunkSize, chunkOverlap, provider, &upd); err != nil {
				return upd, err
			}
		}
	}

	return upd, nil
}

// updateArrayField replaces af's child rows with the request's list when the
// request touches af, otherwise carries the existing rows forward unchanged
// (the relational adapter always deletes and reinserts every array field on
// update, so an untouched field still needs its current rows supplied).
func updateArrayField(af domain.ArrayField, existing domain.Record, fields map[string]domain.Value, upd *updatePrep) error {
	v, ok := fields[af.Name]
	if !ok {
		upd.prepared.ArrayRows[af.Name] = existingArrayRows(existing, af.Name)
		return nil
	}
	if v.IsNull() {
		if af.Required {
			return fmt.Errorf("%w: array field %q is required", domain.ErrValidation, af.Name)
		}
		upd.prepared.ArrayRows[af.Name] = nil
		return nil
	}
	if v.Kind != domain.KindList {
		return fmt.Errorf("%w: array field %q expects a list", domain.ErrValidation, af.Name)
	}

	rows := make([]map[string]domain.Value, 0, len(v.List))
	for _, item := range v.List {
		if item.Kind != domain.KindMap {
			return fmt.Errorf("%w: array field %q expects a list of objects", domain.ErrValidation, af.Name)
		}
		row := map[string]domain.Value{}
		for _, nf := range af.Schema {
			if nf.Scalar == nil {
				continue
			}
			nv, ok := item.Map[nf.Scalar.Name]
			if !ok || nv.IsNull() {
				if nf.Scalar.Required {
					return fmt.Errorf("%w: nested field %q is required in %q", domain.ErrValidation, nf.Scalar.Name, af.Name)
				}
				continue
			}
			converted, err := domain.Coerce(nv, nf.Scalar.Type, nf.Scalar.EnumValues)
			if err != nil {
				return fmt.Errorf("%w: nested field %q in %q", err, nf.Scalar.Name, af.Name)
			}
			row[nf.Scalar.Name] = converted
		}
		rows = append(rows, row)
	}
	upd.prepared.ArrayRows[af.Name] = rows
	return nil
}

func existingArrayRows(existing domain.Record, name string) []map[string]domain.Value {
	v, ok := existing.Fields[name]
	if !ok || v.Kind != domain.KindList {
		return nil
	}
	rows := make([]map[string]domain.Value, 0, len(v.List))
	for _, item := range v.List {
		if item.Kind != domain.KindMap {
			continue
		}
		rows = append(rows, item.Map)
	}
	return rows
}

// updateScalarField mirrors prepareScalarField, but only re-embeds and drops
// the field's previous vector points when the request actually touches the
// field; an untouched vectorized field keeps its existing points as-is.
func (s *Service) updateScalarField(ctx context.Context, recordID uuid.UUID, sf domain.ScalarField, existing domain.Record, fields map[string]domain.Value, chunkSize, chunkOverlap int, provider domain.EmbeddingProvider, upd *updatePrep) error {
	v, changed := fields[sf.Name]
	if !changed {
		if val, ok := existing.Fields[sf.Name]; ok && storesIn(sf.StoreIn, domain.StorePostgres) {
			upd.prepared.RelationalRow[sf.Name] = val
		}
		return nil
	}
	if v.IsNull() {
		if sf.Required {
			return fmt.Errorf("%w: field %q is required", domain.ErrValidation, sf.Name)
		}
		needsVectors := sf.Vectorize || storesIn(sf.StoreIn, domain.StoreQdrant)
		if needsVectors {
			upd.changedVectorFields = append(upd.changedVectorFields, sf.Name)
		}
		return nil
	}

	converted, err := domain.Coerce(v, sf.Type, sf.EnumValues)
	if err != nil {
		return fmt.Errorf("%w: field %q", err, sf.Name)
	}
	if storesIn(sf.StoreIn, domain.StorePostgres) {
		upd.prepared.RelationalRow[sf.Name] = converted
	}

	needsVectors := sf.Vectorize || storesIn(sf.StoreIn, domain.StoreQdrant)
	if !needsVectors {
		return nil
	}
	upd.changedVectorFields = append(upd.changedVectorFields, sf.Name)
	if provider == nil {
		return fmt.Errorf("%w: field %q needs an embedding provider", domain.ErrNoVectorCollection, sf.Name)
	}

	fragments := s.chunkFragments(provider, converted.Str, chunkSize, chunkOverlap)
	if len(fragments) == 0 {
		return nil
	}
	vectors, err := provider.Embed(ctx, fragments)
	if err != nil {
		return fmt.Errorf("%w: embed field %q: %s", domain.ErrEmbeddingFailed, sf.Name, err)
	}
	upd.prepared.VectorPoints = append(upd.prepared.VectorPoints, vectorPointsFor(recordID, sf.Name, fragments, vectors, upd.payloadBase)...)
	upd.prepared.VectorsCreated += len(vectors)
	return nil
}

// updateFileField mirrors prepareFileField for the update path: a new file
// upload replaces the blob and drops the field's old vector points; an
// untouched file field carries its existing object path forward unchanged.
func (s *Service) updateFileField(ctx context.Context, schema domain.CollectionSchema, recordID uuid.UUID, sf domain.ScalarField, existing domain.Record, fields map[string]domain.Value, chunkSize, chunkOverlap int, provider domain.EmbeddingProvider, upd *updatePrep) error {
	v, changed := fields[sf.Name]
	f, isFile := fileFromValue(v)
	if !changed || !isFile {
		if val, ok := existing.Fields[sf.Name]; ok && storesIn(sf.StoreIn, domain.StorePostgres) {
			upd.prepared.RelationalRow[sf.Name] = val
		}
		return nil
	}

	objectPath := object.ObjectKey(schema.Name, recordID.String(), f.Filename)
	if err := s.Object.EnsureBucket(ctx, upd.bucket); err != nil {
		return fmt.Errorf("ingest: ensure bucket: %w", err)
	}
	if err := s.Object.Put(ctx, upd.bucket, objectPath, f.Data, f.ContentType); err != nil {
		return fmt.Errorf("ingest: upload blob: %w", err)
	}
	upd.newFilePaths[sf.Name] = objectPath

	if old, ok := existing.Fields[sf.Name]; ok && !old.IsNull() && old.Str != "" {
		upd.staleBlobPaths = append(upd.staleBlobPaths, old.Str)
	}

	if storesIn(sf.StoreIn, domain.StorePostgres) {
		upd.prepared.RelationalRow[sf.Name] = domain.StringValue(objectPath)
	}
	if storesIn(sf.StoreIn, domain.StoreQdrantPayload) {
		upd.payloadBase[sf.Name] = domain.StringValue(objectPath)
	}

	if !sf.Vectorize {
		return nil
	}
	upd.changedVectorFields = append(upd.changedVectorFields, sf.Name)

	fragments, err := s.extractFileText(ctx, f, sf, chunkSize, chunkOverlap, provider)
	if err != nil {
		return err
	}
	if len(fragments) == 0 {
		return nil
	}
	if provider == nil {
		return fmt.Errorf("%w: file field %q needs an embedding provider", domain.ErrNoVectorCollection, sf.Name)
	}
	vectors, err := provider.Embed(ctx, fragments)
	if err != nil {
		return fmt.Errorf("%w: embed field %q: %s", domain.ErrEmbeddingFailed, sf.Name, err)
	}
	upd.prepared.VectorPoints = append(upd.prepared.VectorPoints, vectorPointsFor(recordID, sf.Name, fragments, vectors, upd.payloadBase)...)
	upd.prepared.VectorsCreated += len(vectors)
	return nil
}
