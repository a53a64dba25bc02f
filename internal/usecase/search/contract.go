package search

import (
	"context"

	"github.com/caremind-health/medfaq/internal/domain"
	"github.com/caremind-health/medfaq/internal/vectorstore"
)

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// VectorIndex queries the external vector backend.
type VectorIndex interface {
	QueryTopK(ctx context.Context, vector []float32, k int) ([]vectorstore.Neighbor, error)
}

// Lexical is the dependency-free fallback search over the corpus snapshot.
type Lexical interface {
	Search(query string) []domain.SearchMatch
}
