package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"cortexdb/internal/adapter/object"
	"cortexdb/internal/adapter/vector"
	"cortexdb/internal/domain"
)

// preparation is the in-flight compiled write for one record, mirroring
// PreparedRecord plus the bookkeeping create/update need to stage blob
// uploads before they're committed to object storage.
type preparation struct {
	prepared    domain.PreparedRecord
	payloadBase map[string]domain.Value
	bucket      string
}

// CreateRecord compiles fields against the collection schema, uploads any
// file blobs, writes the relational row and array children in one
// transaction, then upserts the resulting vector points. A failure between
// blob upload and relational commit rolls the blobs back; a failure after
// the relational commit is reported but not rolled back, since vector drift
// self-heals on the next update (deterministic point ids).
func (s *Service) CreateRecord(ctx context.Context, database, collection string, fields map[string]domain.Value) (domain.Record, error) {
	schema, err := s.Relational.GetCollectionSchema(ctx, database, collection)
	if err != nil {
		return domain.Record{}, fmt.Errorf("ingest: load schema: %w", err)
	}

	var provider domain.EmbeddingProvider
	var vectorSize int
	if requiresVectors(schema) {
		provider, vectorSize, err = s.resolveProvider(ctx, schema)
		if err != nil {
			return domain.Record{}, err
		}
	}

	recordID := uuid.New()
	prep, err := s.prepareRecord(ctx, schema, recordID, fields, provider)
	if err != nil {
		s.rollbackBlobs(ctx, prep.bucket, prep.prepared.FilePaths)
		return domain.Record{}, err
	}

	now := time.Now()
	if err := s.Relational.InsertRecord(ctx, schema, recordID, prep.prepared, now); err != nil {
		s.rollbackBlobs(ctx, prep.bucket, prep.prepared.FilePaths)
		return domain.Record{}, fmt.Errorf("ingest: insert record: %w", err)
	}

	if len(prep.prepared.VectorPoints) > 0 {
		if err := s.Vector.EnsureCollection(ctx, schema, vectorSize); err != nil {
			return domain.Record{}, fmt.Errorf("ingest: ensure vector collection: %w", err)
		}
		if err := s.Vector.Upsert(ctx, vector.CollectionName(schema), prep.prepared.VectorPoints); err != nil {
			// Relational commit already happened; per the pipeline's
			// compensation rule this is reported, not rolled back.
			return domain.Record{}, fmt.Errorf("ingest: upsert vectors: %w", err)
		}
	}

	return s.Relational.GetRecord(ctx, schema, recordID)
}

// prepareRecord walks schema.Fields in declaration order, routing each
// incoming value to the relational row, array child rows, and/or vector
// points it belongs in, per the field's own store_in and vectorize
// settings. File fields are uploaded to object storage first so their
// object path is available for every downstream store.
func (s *Service) prepareRecord(ctx context.Context, schema domain.CollectionSchema, recordID uuid.UUID, fields map[string]domain.Value, provider domain.EmbeddingProvider) (preparation, error) {
	prep := preparation{
		prepared: domain.PreparedRecord{
			RelationalRow: map[string]domain.Value{},
			ArrayRows:     map[string][]map[string]domain.Value{},
			FilePaths:     map[string]string{},
		},
		payloadBase: map[string]domain.Value{},
	}
	if storesInObject(schema) {
		prep.bucket = object.BucketName(schema.Database, schema.Name)
	}

	chunkSize, chunkOverlap := chunkSizes(schema, nil, s.DefaultChunkSize, s.DefaultChunkOverlap)

	// First pass: build the payload_base every vector point for this record
	// shares, from every scalar field routed to qdrant_payload (files and
	// arrays fill theirs in below as they're processed).
	for _, f := range schema.Fields {
		if f.Scalar == nil || !storesIn(f.Scalar.StoreIn, domain.StoreQdrantPayload) {
			continue
		}
		if f.Scalar.Type == domain.FieldFile {
			continue
		}
		v, ok := fields[f.Scalar.Name]
		if !ok || v.IsNull() {
			continue
		}
		converted, err := domain.Coerce(v, f.Scalar.Type, f.Scalar.EnumValues)
		if err != nil {
			return prep, fmt.Errorf("%w: field %q", err, f.Scalar.Name)
		}
		prep.payloadBase[f.Scalar.Name] = converted
	}

	for _, f := range schema.Fields {
		switch {
		case f.Array != nil:
			if err := s.prepareArrayField(*f.Array, fields, &prep); err != nil {
				return prep, err
			}
		case f.Scalar != nil && f.Scalar.Type == domain.FieldFile:
			if err := s.prepareFileField(ctx, schema, recordID, *f.Scalar, fields, chunkSize, chunkOverlap, provider, &prep); err != nil {
				return prep, err
			}
		case f.Scalar != nil:
			if err := s.prepareScalarField(ctx, recordID, *f.Scalar, fields, chunkSize, chunkOverlap, provider, &prep); err != nil {
				return prep, err
			}
		}
	}

	return prep, nil
}

func storesInObject(schema domain.CollectionSchema) bool {
	for _, f := range schema.Fields {
		if f.Scalar != nil && f.Scalar.Type == domain.FieldFile {
			return true
		}
	}
	return false
}

func (s *Service) prepareArrayField(af domain.ArrayField, fields map[string]domain.Value, prep *preparation) error {
	v, ok := fields[af.Name]
	if !ok || v.IsNull() {
		if af.Required {
			return fmt.Errorf("%w: array field %q is required", domain.ErrValidation, af.Name)
		}
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
	prep.prepared.ArrayRows[af.Name] = rows
	return nil
}

func (s *Service) prepareScalarField(ctx context.Context, recordID uuid.UUID, sf domain.ScalarField, fields map[string]domain.Value, chunkSize, chunkOverlap int, provider domain.EmbeddingProvider, prep *preparation) error {
	v, ok := fields[sf.Name]
	if (!ok || v.IsNull()) && sf.Default != nil {
		v = *sf.Default
		ok = true
	}
	if !ok || v.IsNull() {
		if sf.Required {
			return fmt.Errorf("%w: field %q is required", domain.ErrValidation, sf.Name)
		}
		return nil
	}

	converted, err := domain.Coerce(v, sf.Type, sf.EnumValues)
	if err != nil {
		return fmt.Errorf("%w: field %q", err, sf.Name)
	}

	if storesIn(sf.StoreIn, domain.StorePostgres) {
		prep.prepared.RelationalRow[sf.Name] = converted
	}

	needsVectors := sf.Vectorize || storesIn(sf.StoreIn, domain.StoreQdrant)
	if !needsVectors {
		return nil
	}
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
	prep.prepared.VectorPoints = append(prep.prepared.VectorPoints, vectorPointsFor(recordID, sf.Name, fragments, vectors, prep.payloadBase)...)
	prep.prepared.VectorsCreated += len(vectors)
	return nil
}

func (s *Service) prepareFileField(ctx context.Context, schema domain.CollectionSchema, recordID uuid.UUID, sf domain.ScalarField, fields map[string]domain.Value, chunkSize, chunkOverlap int, provider domain.EmbeddingProvider, prep *preparation) error {
	v, ok := fields[sf.Name]
	f, isFile := fileFromValue(v)
	if !ok || v.IsNull() || !isFile {
		if sf.Required {
			return fmt.Errorf("%w: file field %q is required", domain.ErrFileRequired, sf.Name)
		}
		return nil
	}

	objectPath := object.ObjectKey(schema.Name, recordID.String(), f.Filename)
	if err := s.Object.EnsureBucket(ctx, prep.bucket); err != nil {
		return fmt.Errorf("ingest: ensure bucket: %w", err)
	}
	if err := s.Object.Put(ctx, prep.bucket, objectPath, f.Data, f.ContentType); err != nil {
		return fmt.Errorf("ingest: upload blob: %w", err)
	}
	prep.prepared.FilePaths[sf.Name] = objectPath

	if storesIn(sf.StoreIn, domain.StorePostgres) {
		prep.prepared.RelationalRow[sf.Name] = domain.StringValue(objectPath)
	}
	if storesIn(sf.StoreIn, domain.StoreQdrantPayload) {
		prep.payloadBase[sf.Name] = domain.StringValue(objectPath)
	}

	if !sf.Vectorize {
		return nil
	}

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
	prep.prepared.VectorPoints = append(prep.prepared.VectorPoints, vectorPointsFor(recordID, sf.Name, fragments, vectors, prep.payloadBase)...)
	prep.prepared.VectorsCreated += len(vectors)
	return nil
}

// extractFileText dispatches to the PDF, image, or plain fallback path by
// content type, then chunks whatever text comes back at the field's
// effective chunk size/overlap.
func (s *Service) extractFileText(ctx context.Context, f file, sf domain.ScalarField, defSize, defOverlap int, provider domain.EmbeddingProvider) ([]string, error) {
	size, overlap := defSize, defOverlap
	if sf.ExtractConfig != nil {
		if sf.ExtractConfig.ChunkSize > 0 {
			size = sf.ExtractConfig.ChunkSize
		}
		if sf.ExtractConfig.ChunkOverlap > 0 {
			overlap = sf.ExtractConfig.ChunkOverlap
		}
	}

	switch {
	case f.ContentType == "application/pdf":
		ocrIfNeeded := sf.ExtractConfig != nil && sf.ExtractConfig.OCRIfNeeded
		if s.Extract == nil || s.Extract.PDF == nil {
			s.logWarn("ingest: no pdf extractor configured, skipping extraction", "field", sf.Name)
			return nil, nil
		}
		text, err := s.Extract.ExtractPDF(ctx, f.Data, ocrIfNeeded)
		if err != nil {
			return nil, fmt.Errorf("ingest: extract pdf: %w", err)
		}
		if text == "" {
			return nil, nil
		}
		return s.chunkFragments(provider, text, size, overlap), nil
	case strings.HasPrefix(f.ContentType, "image/"):
		if s.Extract == nil || s.Extract.Image == nil {
			s.logWarn("ingest: no image describer configured, skipping extraction", "field", sf.Name)
			return nil, nil
		}
		description, err := s.Extract.ExtractImage(ctx, f.Data)
		if err != nil {
			return nil, fmt.Errorf("ingest: extract image: %w", err)
		}
		if description == "" {
			return nil, nil
		}
		return s.chunkFragments(provider, description, size, overlap), nil
	default:
		return s.chunkFragments(provider, fmt.Sprintf("File uploaded: %s", f.Filename), size, overlap), nil
	}
}

// rollbackBlobs best-effort deletes every uploaded blob for this record,
// used when a later stage of the coordinated write fails before the
// relational commit.
func (s *Service) rollbackBlobs(ctx context.Context, bucket string, paths map[string]string) {
	for field, path := range paths {
		if err := s.Object.Delete(ctx, bucket, path); err != nil {
			s.logWarn("ingest: blob rollback failed", "field", field, "path", path, "error", err)
		}
	}
}
