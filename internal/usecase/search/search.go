// Package search implements hybrid (vector similarity plus relational
// filter) search, ported from original_source/gateway/core/search.py's
// SearchService.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"cortexdb/internal/adapter/object"
	"cortexdb/internal/adapter/vector"
	"cortexdb/internal/domain"
)

// RelationalStore is the slice of *relational.Store search depends on.
type RelationalStore interface {
	GetCollectionSchema(ctx context.Context, database, collection string) (domain.CollectionSchema, error)
	GetProvider(ctx context.Context, name string) (domain.ProviderConfig, error)
	GetRecord(ctx context.Context, schema domain.CollectionSchema, id uuid.UUID) (domain.Record, error)
}

// VectorStore is the slice of *vector.Store search depends on.
type VectorStore interface {
	Search(ctx context.Context, collection string, queryVector []float32, filters []domain.VectorFilter, limit int) ([]domain.SearchHit, error)
}

// ObjectStore is the slice of *object.Store search depends on.
type ObjectStore interface {
	PresignGet(ctx context.Context, bucket, objectName string, expires time.Duration) (string, error)
}

// EmbeddingLookup resolves a configured provider. Satisfied by *embedding.Registry.
type EmbeddingLookup interface {
	Get(cfg domain.ProviderConfig) (domain.EmbeddingProvider, error)
}

// Service implements gateway.SearchService.
type Service struct {
	Relational RelationalStore
	Vector     VectorStore
	Object     ObjectStore
	Embeddings EmbeddingLookup
	Logger     *slog.Logger

	OverfetchMultiplier int // hits fetched per requested result, default 5
	PresignTTL          time.Duration
}

func (s *Service) overfetch() int {
	if s.OverfetchMultiplier > 0 {
		return s.OverfetchMultiplier
	}
	return 5
}

func (s *Service) presignTTL() time.Duration {
	if s.PresignTTL > 0 {
		return s.PresignTTL
	}
	return time.Hour
}

func (s *Service) logWarn(msg string, args ...any) {
	if s.Logger != nil {
		s.Logger.Warn(msg, args...)
	}
}

func requiresVectors(schema domain.CollectionSchema) bool {
	for _, f := range schema.Fields {
		if f.Scalar != nil && (f.Scalar.Vectorize || storesIn(f.Scalar.StoreIn, domain.StoreQdrant)) {
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

type aggregated struct {
	id         uuid.UUID
	score      float32
	highlights []domain.SearchHighlight
}

// Search embeds query once, over-fetches from the vector store, aggregates
// per record by max chunk score, hydrates the winning records' relational
// rows preserving score order, applies any filters the vector layer can't
// express (OpNe), and attaches a presigned GET URL per file field.
func (s *Service) Search(ctx context.Context, database, collection, query string, filters []domain.QueryFilter, limit int) (domain.SearchResponse, error) {
	started := time.Now()

	schema, err := s.Relational.GetCollectionSchema(ctx, database, collection)
	if err != nil {
		return domain.SearchResponse{}, fmt.Errorf("search: load schema: %w", err)
	}
	if !requiresVectors(schema) {
		return domain.SearchResponse{}, fmt.Errorf("%w: collection %q has no vector collection", domain.ErrNoVectorCollection, collection)
	}

	if schema.Config.EmbeddingProviderID == "" {
		return domain.SearchResponse{}, fmt.Errorf("%w: collection %q has no vector collection", domain.ErrNoVectorCollection, collection)
	}
	providerCfg, err := s.Relational.GetProvider(ctx, schema.Config.EmbeddingProviderID)
	if err != nil {
		return domain.SearchResponse{}, fmt.Errorf("search: load provider: %w", err)
	}
	provider, err := s.Embeddings.Get(providerCfg)
	if err != nil {
		return domain.SearchResponse{}, fmt.Errorf("search: build provider: %w", err)
	}

	vectors, err := provider.Embed(ctx, []string{query})
	if err != nil {
		return domain.SearchResponse{}, fmt.Errorf("%w: embed query: %s", domain.ErrEmbeddingFailed, err)
	}
	if len(vectors) == 0 {
		return domain.SearchResponse{}, fmt.Errorf("%w: embedding provider returned no vector for query", domain.ErrEmbeddingFailed)
	}

	vectorFilters, postFilters := splitFilters(filters)

	hits, err := s.Vector.Search(ctx, vector.CollectionName(schema), vectors[0], vectorFilters, limit*s.overfetch())
	if err != nil {
		return domain.SearchResponse{}, fmt.Errorf("search: vector search: %w", err)
	}

	byRecord := map[uuid.UUID]*aggregated{}
	var order []uuid.UUID
	for _, hit := range hits {
		entry, ok := byRecord[hit.Point.RecordID]
		if !ok {
			entry = &aggregated{id: hit.Point.RecordID, score: hit.Score}
			byRecord[hit.Point.RecordID] = entry
			order = append(order, hit.Point.RecordID)
		}
		if hit.Score > entry.score {
			entry.score = hit.Score
		}
		entry.highlights = append(entry.highlights, domain.SearchHighlight{
			Field:      hit.Point.Field,
			ChunkIndex: hit.Point.ChunkIndex,
			Text:       hit.Point.ChunkText,
			Score:      hit.Score,
		})
	}

	entries := make([]*aggregated, 0, len(order))
	for _, id := range order {
		entries = append(entries, byRecord[id])
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].score > entries[j].score })

	bucket := object.BucketName(schema.Database, schema.Name)
	results := make([]domain.SearchResult, 0, limit)
	for _, entry := range entries {
		if len(results) >= limit {
			break
		}
		record, err := s.Relational.GetRecord(ctx, schema, entry.id)
		if err != nil {
			continue // record deleted after the vector search ran; drop it.
		}
		if !passesPostFilters(record, postFilters) {
			continue
		}
		results = append(results, domain.SearchResult{
			ID:         entry.id,
			Score:      entry.score,
			Record:     record,
			Files:      s.presignFiles(ctx, bucket, schema, record),
			Highlights: entry.highlights,
		})
	}

	return domain.SearchResponse{
		Results: results,
		Total:   len(results),
		TookMs:  float64(time.Since(started)) / float64(time.Millisecond),
	}, nil
}

// splitFilters separates filters the vector layer can express (eq and the
// range operators) from OpNe clauses, which must be applied after
// hydration.
func splitFilters(filters []domain.QueryFilter) ([]domain.VectorFilter, []domain.QueryFilter) {
	var vectorFilters []domain.VectorFilter
	var postFilters []domain.QueryFilter
	for _, f := range filters {
		if f.Op == domain.OpNe {
			postFilters = append(postFilters, f)
			continue
		}
		vectorFilters = append(vectorFilters, domain.VectorFilter{Field: f.Field, Op: f.Op, Value: f.Value})
	}
	return vectorFilters, postFilters
}

func passesPostFilters(record domain.Record, filters []domain.QueryFilter) bool {
	for _, f := range filters {
		if f.Op != domain.OpNe {
			continue
		}
		if valuesEqual(record.Fields[f.Field], f.Value) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b domain.Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case domain.KindNull:
		return true
	case domain.KindBool:
		return a.Bool == b.Bool
	case domain.KindInt:
		return a.Int == b.Int
	case domain.KindFloat:
		return a.Float == b.Float
	case domain.KindString:
		return a.Str == b.Str
	default:
		return false
	}
}

// presignFiles attaches a presigned GET URL per file field routed to MinIO;
// a presign failure leaves an empty-string entry for that field (not a
// null) rather than failing the whole search.
func (s *Service) presignFiles(ctx context.Context, bucket string, schema domain.CollectionSchema, record domain.Record) map[string]string {
	urls := map[string]string{}
	for _, f := range schema.Fields {
		if f.Scalar == nil || f.Scalar.Type != domain.FieldFile || !storesIn(f.Scalar.StoreIn, domain.StoreMinio) {
			continue
		}
		v, ok := record.Fields[f.Scalar.Name]
		if !ok || v.IsNull() || v.Str == "" {
			continue
		}
		url, err := s.Object.PresignGet(ctx, bucket, v.Str, s.presignTTL())
		if err != nil {
			s.logWarn("search: presign failed", "field", f.Scalar.Name, "path", v.Str, "error", err)
			urls[f.Scalar.Name] = ""
			continue
		}
		urls[f.Scalar.Name] = url
	}
	return urls
}
