// Package vector adapts vector point storage and hybrid filter search onto
// Qdrant via github.com/qdrant/go-client, one Qdrant collection per cortexdb
// collection.
package vector

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"cortexdb/internal/domain"
	"cortexdb/internal/infra/config"
)

// Store wraps a Qdrant gRPC client.
type Store struct {
	client *qdrant.Client
}

// New dials the Qdrant endpoint described by cfg.
func New(cfg config.QdrantConfig) (*Store, error) {
	host, portStr, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("vector: parse addr %q: %w", cfg.Addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("vector: parse port %q: %w", portStr, err)
	}

	clientCfg := &qdrant.Config{Host: host, Port: port, UseTLS: cfg.UseTLS}
	if cfg.APIKey != "" {
		clientCfg.APIKey = cfg.APIKey
	}

	client, err := qdrant.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("vector: dial qdrant: %w", err)
	}
	return &Store{client: client}, nil
}

// Ping satisfies gateway.HealthChecker.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("vector: healthcheck: %w", domain.NewDomainError("vector.ping", domain.ErrVectorStore, err.Error()))
	}
	return nil
}

// Close releases the underlying gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// CollectionName derives the Qdrant collection name for a cortexdb
// collection, scoped by database so the same collection name in two
// databases never collides in the shared Qdrant instance.
func CollectionName(schema domain.CollectionSchema) string {
	return schema.Database + "__" + schema.Name
}

func payloadSchemaType(ft domain.FieldType) qdrant.FieldType {
	switch ft {
	case domain.FieldInt:
		return qdrant.FieldType_FieldTypeInteger
	case domain.FieldFloat:
		return qdrant.FieldType_FieldTypeFloat
	case domain.FieldBoolean:
		return qdrant.FieldType_FieldTypeBool
	default:
		return qdrant.FieldType_FieldTypeKeyword
	}
}

// EnsureCollection creates schema's Qdrant collection if absent, with a
// cosine-distance vector index of vectorSize and a keyed payload index for
// every field the schema routes to Qdrant or Qdrant payload storage, plus
// the four bookkeeping fields every point carries (record_id, collection,
// field, chunk_index).
func (s *Store) EnsureCollection(ctx context.Context, schema domain.CollectionSchema, vectorSize int) error {
	name := CollectionName(schema)
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("vector: check collection exists: %w", domain.NewDomainError("vector.ensure_collection", domain.ErrVectorStore, err.Error()))
	}
	if !exists {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(vectorSize),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("vector: create collection: %w", domain.NewDomainError("vector.ensure_collection", domain.ErrVectorStore, err.Error()))
		}
	}

	payloadFields := map[string]qdrant.FieldType{
		"record_id":   qdrant.FieldType_FieldTypeKeyword,
		"collection":  qdrant.FieldType_FieldTypeKeyword,
		"field":       qdrant.FieldType_FieldTypeKeyword,
		"chunk_index": qdrant.FieldType_FieldTypeInteger,
	}
	for _, f := range schema.Fields {
		if f.Scalar != nil && storesInQdrant(f.Scalar.StoreIn) {
			payloadFields[f.Scalar.Name] = payloadSchemaType(f.Scalar.Type)
		}
		if f.Array != nil && storesInQdrant(f.Array.StoreIn) {
			for _, nested := range f.Array.Schema {
				if nested.Scalar != nil {
					payloadFields[nested.Scalar.Name] = payloadSchemaType(nested.Scalar.Type)
				}
			}
		}
	}
	for fieldName, ft := range payloadFields {
		ft := ft
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: name,
			FieldName:      fieldName,
			FieldType:      qdrant.PtrOf(ft),
		})
		if err != nil {
			// Index already existing is not fatal; Qdrant rejects duplicate
			// index creation but the collection stays usable either way.
			continue
		}
	}
	return nil
}

func storesInQdrant(locs []domain.StoreLocation) bool {
	for _, l := range locs {
		if l == domain.StoreQdrant || l == domain.StoreQdrantPayload {
			return true
		}
	}
	return false
}

// DropCollection deletes a collection's Qdrant collection entirely.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("vector: delete collection: %w", domain.NewDomainError("vector.drop_collection", domain.ErrVectorStore, err.Error()))
	}
	return nil
}
