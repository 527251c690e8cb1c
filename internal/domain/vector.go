package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// vectorPointNamespace is the fixed namespace UUIDv5 point identity is
// derived against, so the same (record, field, chunk) always yields the same
// point ID across retries and re-ingestion without a lookup.
var vectorPointNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8") // DNS namespace

// VectorPointID deterministically derives a point identity from a record ID,
// the source field name, and the chunk index within that field's extracted
// text. Re-running ingestion for the same record produces the same point
// IDs, so a re-embed is an upsert, not an accumulation of stale points.
func VectorPointID(recordID uuid.UUID, field string, chunkIndex int) uuid.UUID {
	name := fmt.Sprintf("%s:%s:%d", recordID, field, chunkIndex)
	return uuid.NewSHA1(vectorPointNamespace, []byte(name))
}

// VectorPoint is a single embedded chunk ready for upsert into the vector
// store: its deterministic ID, the embedding itself, and the payload fields
// mirrored alongside it for filtering and hydration.
type VectorPoint struct {
	ID         uuid.UUID
	RecordID   uuid.UUID
	Field      string
	ChunkIndex int
	ChunkText  string
	Vector     []float32
	Payload    map[string]Value
}

// VectorFilter is one clause of a vector-store search filter. Qdrant payload
// filters support range comparisons but not inequality ($ne); callers must
// reject OpNe before reaching this layer (query_records' relational path is
// the one that can express it, see QueryFilter).
type VectorFilter struct {
	Field string
	Op    FilterOp
	Value Value
}

// SearchHit is one row of a raw vector-store search result, before
// aggregation by record ID.
type SearchHit struct {
	Point VectorPoint
	Score float32
}
