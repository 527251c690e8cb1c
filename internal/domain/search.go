package domain

import "github.com/google/uuid"

// SearchHighlight is one matching chunk inside a hybrid search result's
// hydrated record, in score order.
type SearchHighlight struct {
	Field      string
	ChunkIndex int
	Text       string
	Score      float32
}

// SearchResult is one hydrated, scored record returned by hybrid search:
// the relational row, every matching chunk across its vectorized fields, and
// a presigned GET URL per file field (an empty string, not a null, when
// presigning that file fails; never an error for the whole search).
type SearchResult struct {
	ID         uuid.UUID
	Score      float32
	Record     Record
	Files      map[string]string
	Highlights []SearchHighlight
}

// SearchResponse is the full hybrid search response: the score-ordered,
// truncated, hydrated results plus the count and wall-clock time spent.
type SearchResponse struct {
	Results []SearchResult
	Total   int
	TookMs  float64
}
