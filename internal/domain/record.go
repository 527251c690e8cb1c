package domain

import (
	"time"

	"github.com/google/uuid"
)

// Record is a single row of a collection: its relational columns plus
// whatever array-child rows and vector points its schema derived from them.
type Record struct {
	ID        uuid.UUID
	Fields    map[string]Value
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PreparedRecord is the output of compiling a create/update request against
// a CollectionSchema: the rows to write to each store, before any of them
// have actually been written. Mirrors the shape the relational/vector/object
// adapters each consume independently so ingestion can write all three and
// compensate if a later one fails.
type PreparedRecord struct {
	RelationalRow map[string]Value
	ArrayRows     map[string][]map[string]Value
	VectorPoints  []VectorPoint
	FilePaths     map[string]string // field name -> object store key
	VectorsCreated int
}

// QueryFilter is one clause of a relational query_records filter, supporting
// a richer operator set than the vector layer (including $ne, which Qdrant's
// payload filters can't express directly).
type QueryFilter struct {
	Field string
	Op    FilterOp
	Value Value
}

// FilterOp enumerates the comparison operators query_records accepts.
type FilterOp string

const (
	OpEq  FilterOp = "eq"
	OpNe  FilterOp = "ne"
	OpGt  FilterOp = "gt"
	OpGte FilterOp = "gte"
	OpLt  FilterOp = "lt"
	OpLte FilterOp = "lte"
)
