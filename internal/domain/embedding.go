package domain

import "context"

// EmbeddingProvider is the interface for text embedding backends. A single
// process may hold several, keyed by Name(), one per configured provider row.
type EmbeddingProvider interface {
	// Embed generates embeddings for the given texts, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dim returns the dimensionality of the embedding vectors. It is fallible
	// because some providers only learn their dimension from a live call (a
	// models-list round trip or a one-text probe embed); callers should treat
	// this as memoizable per provider, not free to call on every request.
	Dim(ctx context.Context) (int, error)
	// Name returns the provider's identifier (e.g., "openai", "gemini", "ollama").
	Name() string
}
