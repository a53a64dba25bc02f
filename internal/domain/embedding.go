package domain

import "context"

// EmbeddingResult holds a query or chunk vector with provider token usage.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
	EmbedBatch(ctx context.Context, texts []string) ([]EmbeddingResult, error)
}

// Generator produces free-form text from a prompt. Used by the answer
// synthesizer; every failure must be recoverable by the caller.
type Generator interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// HealthChecker is implemented by external clients that can verify
// connectivity to their backing service.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
