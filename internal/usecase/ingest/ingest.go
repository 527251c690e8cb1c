// Package ingest implements record creation, update, and deletion: per-field
// routing across the relational, vector, and object stores, with the
// coordinated write order and compensation rules described for the
// ingestion pipeline, ported from
// original_source/gateway/core/records.py's RecordService.
package ingest

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"cortexdb/internal/domain"
	"cortexdb/internal/usecase/chunk"
	"cortexdb/internal/usecase/extract"
)

// EmbeddingLookup resolves a configured provider and memoizes its
// dimensionality. Satisfied by *embedding.Registry.
type EmbeddingLookup interface {
	Get(cfg domain.ProviderConfig) (domain.EmbeddingProvider, error)
	Dim(ctx context.Context, cfg domain.ProviderConfig) (int, error)
}

// RelationalStore is the slice of *relational.Store ingest depends on.
type RelationalStore interface {
	GetCollectionSchema(ctx context.Context, database, collection string) (domain.CollectionSchema, error)
	GetProvider(ctx context.Context, name string) (domain.ProviderConfig, error)
	InsertRecord(ctx context.Context, schema domain.CollectionSchema, id uuid.UUID, prepared domain.PreparedRecord, now time.Time) error
	UpdateRecord(ctx context.Context, schema domain.CollectionSchema, id uuid.UUID, prepared domain.PreparedRecord, now time.Time) error
	DeleteRecord(ctx context.Context, schema domain.CollectionSchema, id uuid.UUID) error
	GetRecord(ctx context.Context, schema domain.CollectionSchema, id uuid.UUID) (domain.Record, error)
}

// VectorStore is the slice of *vector.Store ingest depends on.
type VectorStore interface {
	EnsureCollection(ctx context.Context, schema domain.CollectionSchema, vectorSize int) error
	Upsert(ctx context.Context, collection string, points []domain.VectorPoint) error
	DeleteRecord(ctx context.Context, collection, recordID string) error
	DeleteRecordField(ctx context.Context, collection, recordID, field string) error
}

// ObjectStore is the slice of *object.Store ingest depends on.
type ObjectStore interface {
	EnsureBucket(ctx context.Context, bucket string) error
	Put(ctx context.Context, bucket, objectName string, data []byte, contentType string) error
	Delete(ctx context.Context, bucket, objectName string) error
}

// Service implements gateway.IngestService.
type Service struct {
	Relational RelationalStore
	Vector     VectorStore
	Object     ObjectStore
	Embeddings EmbeddingLookup
	Extract    *extract.Service
	Logger     *slog.Logger

	// Tokenizer chunks by encoded token count instead of whitespace tokens,
	// for providers whose context and rate limits are token-denominated. Nil
	// disables it entirely, falling back to chunk.Words for every provider.
	Tokenizer *chunk.TokenChunker

	DefaultChunkSize    int
	DefaultChunkOverlap int
	PresignTTL          time.Duration
}

// tokenizingProvider names the embedding provider kinds whose published
// limits (context window, rate limit) are denominated in tokens of a known
// encoding rather than words, so chunking by that encoding's token count
// tracks the provider's actual limit instead of approximating it.
const tokenizingProvider = "openai"

// chunkFragments splits text for embedding, routing providers with a known
// tokenizer through s.Tokenizer and falling back to the whitespace-based
// chunk.Words splitter for everything else (or if no tokenizer is
// configured).
func (s *Service) chunkFragments(provider domain.EmbeddingProvider, text string, size, overlap int) []string {
	if s.Tokenizer != nil && provider != nil && provider.Name() == tokenizingProvider {
		return s.Tokenizer.Chunk(text, size, overlap)
	}
	return chunk.Words(text, size, overlap)
}

// file is the expected shape of a Value for a file-typed field: a map with
// filename, content_type, and base64-encoded data, the JSON-transportable
// stand-in for a multipart upload.
type file struct {
	Filename    string
	ContentType string
	Data        []byte
}

func fileFromValue(v domain.Value) (file, bool) {
	if v.Kind != domain.KindMap {
		return file{}, false
	}
	name := v.Map["filename"].Str
	ct := v.Map["content_type"].Str
	encoded := v.Map["data"].Str
	if name == "" || encoded == "" {
		return file{}, false
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return file{}, false
	}
	return file{Filename: name, ContentType: ct, Data: data}, true
}

func requiresVectors(schema domain.CollectionSchema) bool {
	for _, f := range schema.Fields {
		if f.Scalar != nil {
			if f.Scalar.Vectorize || storesIn(f.Scalar.StoreIn, domain.StoreQdrant) {
				return true
			}
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

// resolveProvider loads the collection's bound embedding provider and its
// dimensionality, or returns ErrNoVectorCollection if the schema has no
// provider configured despite needing one.
func (s *Service) resolveProvider(ctx context.Context, schema domain.CollectionSchema) (domain.EmbeddingProvider, int, error) {
	if schema.Config.EmbeddingProviderID == "" {
		return nil, 0, domain.NewDomainError("ingest.resolve_provider", domain.ErrNoVectorCollection, schema.Name)
	}
	cfg, err := s.Relational.GetProvider(ctx, schema.Config.EmbeddingProviderID)
	if err != nil {
		return nil, 0, fmt.Errorf("ingest: load provider: %w", err)
	}
	provider, err := s.Embeddings.Get(cfg)
	if err != nil {
		return nil, 0, fmt.Errorf("ingest: build provider: %w", err)
	}
	dim, err := s.Embeddings.Dim(ctx, cfg)
	if err != nil {
		return nil, 0, fmt.Errorf("ingest: provider dimension: %w", err)
	}
	return provider, dim, nil
}

func chunkSizes(schema domain.CollectionSchema, override *domain.ExtractConfig, defSize, defOverlap int) (int, int) {
	size, overlap := defSize, defOverlap
	if schema.Config.ChunkSize > 0 {
		size = schema.Config.ChunkSize
	}
	if schema.Config.ChunkOverlap > 0 {
		overlap = schema.Config.ChunkOverlap
	}
	if override != nil {
		if override.ChunkSize > 0 {
			size = override.ChunkSize
		}
		if override.ChunkOverlap > 0 {
			overlap = override.ChunkOverlap
		}
	}
	return size, overlap
}

func vectorPointsFor(recordID uuid.UUID, field string, fragments []string, vectors [][]float32, payloadBase map[string]domain.Value) []domain.VectorPoint {
	points := make([]domain.VectorPoint, 0, len(fragments))
	for idx, vec := range vectors {
		payload := make(map[string]domain.Value, len(payloadBase))
		for k, v := range payloadBase {
			payload[k] = v
		}
		points = append(points, domain.VectorPoint{
			ID:         domain.VectorPointID(recordID, field, idx),
			RecordID:   recordID,
			Field:      field,
			ChunkIndex: idx,
			ChunkText:  fragments[idx],
			Vector:     vec,
			Payload:    payload,
		})
	}
	return points
}

func (s *Service) logWarn(msg string, args ...any) {
	if s.Logger != nil {
		s.Logger.Warn(msg, args...)
	}
}
