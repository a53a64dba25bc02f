// Package fallback implements dependency-free lexical relevance scoring
// used whenever the vector backend is unavailable.
package fallback

import (
	"sort"
	"strings"

	"github.com/caremind-health/medfaq/internal/domain"
)

// Index is an immutable snapshot of corpus chunks. Searches against the
// same snapshot are deterministic and idempotent.
type Index struct {
	chunks []domain.Chunk
}

// NewIndex creates a lexical index over a fixed chunk snapshot.
func NewIndex(chunks []domain.Chunk) *Index {
	snapshot := make([]domain.Chunk, len(chunks))
	copy(snapshot, chunks)
	return &Index{chunks: snapshot}
}

// Len returns the number of indexed chunks.
func (idx *Index) Len() int { return len(idx.chunks) }

// Search scores every chunk against the query and returns up to
// domain.MaxMatches hits sorted by descending score, ties broken by
// ascending corpus ordinal.
//
// A query term matches a chunk term when either is a substring of the
// other. score = matchedTerms / totalQueryTerms. A query with zero
// terms (empty or whitespace-only) matches nothing.
func (idx *Index) Search(query string) []domain.SearchMatch {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	type scored struct {
		chunk domain.Chunk
		score float64
	}
	var hits []scored
	for _, c := range idx.chunks {
		chunkTerms := tokenize(c.Text)
		matched := 0
		for _, qt := range terms {
			if matchesAny(qt, chunkTerms) {
				matched++
			}
		}
		score := float64(matched) / float64(len(terms))
		if score <= 0 {
			continue
		}
		hits = append(hits, scored{chunk: c, score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].chunk.Ordinal < hits[j].chunk.Ordinal
	})

	if len(hits) > domain.MaxMatches {
		hits = hits[:domain.MaxMatches]
	}

	matches := make([]domain.SearchMatch, len(hits))
	for i, h := range hits {
		matches[i] = domain.SearchMatch{Text: h.chunk.Text, Score: h.score}
	}
	return matches
}

func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

func matchesAny(queryTerm string, chunkTerms []string) bool {
	for _, ct := range chunkTerms {
		if strings.Contains(ct, queryTerm) || strings.Contains(queryTerm, ct) {
			return true
		}
	}
	return false
}
