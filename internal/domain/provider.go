package domain

import (
	"time"

	"github.com/google/uuid"
)

// EmbeddingProviderKind names the embedding backends the registry can
// construct an EmbeddingProvider adapter for.
type EmbeddingProviderKind string

const (
	ProviderGemini EmbeddingProviderKind = "gemini"
	ProviderOpenAI EmbeddingProviderKind = "openai"
	ProviderOllama EmbeddingProviderKind = "ollama"
)

// ProviderConfig is the persisted configuration for a configured embedding
// provider row; APIKey is stored in plaintext and never returned to clients
// (see EmbeddingProviderView).
type ProviderConfig struct {
	ID             uuid.UUID
	Name           string
	Kind           EmbeddingProviderKind
	EmbeddingModel string
	BaseURL        string
	APIKey         string
	Metadata       map[string]Value
	Enabled        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// View projects a ProviderConfig for client responses: has_api_key replaces
// the secret itself.
type EmbeddingProviderView struct {
	ID             uuid.UUID
	Name           string
	Kind           EmbeddingProviderKind
	EmbeddingModel string
	Metadata       map[string]Value
	Enabled        bool
	HasAPIKey      bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// View builds the client-facing projection of a ProviderConfig.
func (p ProviderConfig) View() EmbeddingProviderView {
	return EmbeddingProviderView{
		ID:             p.ID,
		Name:           p.Name,
		Kind:           p.Kind,
		EmbeddingModel: p.EmbeddingModel,
		Metadata:       p.Metadata,
		Enabled:        p.Enabled,
		HasAPIKey:      p.APIKey != "",
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}
