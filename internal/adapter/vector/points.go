package vector

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"cortexdb/internal/domain"
)

func valueToQdrant(v domain.Value) *qdrant.Value {
	switch v.Kind {
	case domain.KindBool:
		return qdrant.NewValueBool(v.Bool)
	case domain.KindInt:
		return qdrant.NewValueInt(v.Int)
	case domain.KindFloat:
		return qdrant.NewValueDouble(v.Float)
	case domain.KindString:
		return qdrant.NewValueString(v.Str)
	default:
		return qdrant.NewValueNull()
	}
}

func pointPayload(p domain.VectorPoint) map[string]*qdrant.Value {
	payload := map[string]*qdrant.Value{
		"record_id":   qdrant.NewValueString(p.RecordID.String()),
		"field":       qdrant.NewValueString(p.Field),
		"chunk_index": qdrant.NewValueInt(int64(p.ChunkIndex)),
		"chunk_text":  qdrant.NewValueString(p.ChunkText),
	}
	for k, v := range p.Payload {
		payload[k] = valueToQdrant(v)
	}
	return payload
}

// Upsert writes points into collection. A point's ID is derived
// deterministically from (record, field, chunk) by domain.VectorPointID, so
// re-ingesting the same record overwrites its old points instead of
// accumulating duplicates. Every point's payload also records collection
// under the "collection" key.
func (s *Store) Upsert(ctx context.Context, collection string, points []domain.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}
	structs := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		payload := pointPayload(p)
		payload["collection"] = qdrant.NewValueString(collection)
		structs[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.ID.String()),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: payload,
		}
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         structs,
	})
	if err != nil {
		return fmt.Errorf("vector: upsert: %w", domain.NewDomainError("vector.upsert", domain.ErrVectorStore, err.Error()))
	}
	return nil
}

// DeleteRecord removes every point belonging to recordID from collection.
func (s *Store) DeleteRecord(ctx context.Context, collection string, recordID string) error {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("record_id", recordID),
		},
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: qdrant.NewPointsSelectorFilter(filter),
	})
	if err != nil {
		return fmt.Errorf("vector: delete record points: %w", domain.NewDomainError("vector.delete_record", domain.ErrVectorStore, err.Error()))
	}
	return nil
}

// DeleteRecordField removes only the points belonging to one field of a
// record, used when a record update drops a previously vectorized field.
func (s *Store) DeleteRecordField(ctx context.Context, collection, recordID, field string) error {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("record_id", recordID),
			qdrant.NewMatch("field", field),
		},
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelectorFilter(filter),
	})
	if err != nil {
		return fmt.Errorf("vector: delete record field points: %w", domain.NewDomainError("vector.delete_record_field", domain.ErrVectorStore, err.Error()))
	}
	return nil
}

func buildQdrantFilter(filters []domain.VectorFilter) *qdrant.Filter {
	if len(filters) == 0 {
		return nil
	}
	var conditions []*qdrant.Condition
	for _, f := range filters {
		switch f.Op {
		case domain.OpEq:
			conditions = append(conditions, matchCondition(f.Field, f.Value))
		case domain.OpGt, domain.OpGte, domain.OpLt, domain.OpLte:
			conditions = append(conditions, rangeCondition(f.Field, f.Op, f.Value))
		}
	}
	if len(conditions) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: conditions}
}

func matchCondition(field string, v domain.Value) *qdrant.Condition {
	switch v.Kind {
	case domain.KindInt:
		return qdrant.NewMatchInt(field, v.Int)
	case domain.KindBool:
		return qdrant.NewMatchBool(field, v.Bool)
	default:
		return qdrant.NewMatch(field, v.Str)
	}
}

func rangeCondition(field string, op domain.FilterOp, v domain.Value) *qdrant.Condition {
	r := &qdrant.Range{}
	f := v.Float
	if v.Kind == domain.KindInt {
		f = float64(v.Int)
	}
	switch op {
	case domain.OpGt:
		r.Gt = &f
	case domain.OpGte:
		r.Gte = &f
	case domain.OpLt:
		r.Lt = &f
	case domain.OpLte:
		r.Lte = &f
	}
	return qdrant.NewRange(field, r)
}

func qdrantValueToDomain(v *qdrant.Value) domain.Value {
	if v == nil {
		return domain.NullValue()
	}
	switch kind := v.Kind.(type) {
	case *qdrant.Value_BoolValue:
		return domain.BoolValue(kind.BoolValue)
	case *qdrant.Value_IntegerValue:
		return domain.IntValue(kind.IntegerValue)
	case *qdrant.Value_DoubleValue:
		return domain.FloatValue(kind.DoubleValue)
	case *qdrant.Value_StringValue:
		return domain.StringValue(kind.StringValue)
	default:
		return domain.NullValue()
	}
}

// Search runs a cosine-similarity nearest-neighbor search over collection,
// optionally narrowed by filters, returning the top limit hits.
func (s *Store) Search(ctx context.Context, collection string, queryVector []float32, filters []domain.VectorFilter, limit int) ([]domain.SearchHit, error) {
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(queryVector...),
		Filter:         buildQdrantFilter(filters),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vector: search: %w", domain.NewDomainError("vector.search", domain.ErrVectorStore, err.Error()))
	}

	hits := make([]domain.SearchHit, 0, len(results))
	for _, r := range results {
		payload := r.GetPayload()
		recordID, _ := uuid.Parse(qdrantValueToDomain(payload["record_id"]).Str)
		chunkIdx := int(qdrantValueToDomain(payload["chunk_index"]).Int)
		fieldName := qdrantValueToDomain(payload["field"]).Str
		chunkText := qdrantValueToDomain(payload["chunk_text"]).Str

		extra := make(map[string]domain.Value, len(payload))
		for k, v := range payload {
			if k == "record_id" || k == "field" || k == "chunk_index" || k == "chunk_text" || k == "collection" {
				continue
			}
			extra[k] = qdrantValueToDomain(v)
		}

		hits = append(hits, domain.SearchHit{
			Point: domain.VectorPoint{
				RecordID:   recordID,
				Field:      fieldName,
				ChunkIndex: chunkIdx,
				ChunkText:  chunkText,
				Payload:    extra,
			},
			Score: r.GetScore(),
		})
	}
	return hits, nil
}
