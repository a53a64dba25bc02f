package domain

// Chunk is the minimal retrievable unit of corpus text. Chunks are
// created once by the indexer and never mutated; Ordinal preserves the
// original document order and is the tie-break key for fallback scoring.
type Chunk struct {
	ID        string
	Text      string
	SourceRef string
	Ordinal   int
}
