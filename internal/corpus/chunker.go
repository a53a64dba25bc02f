// Package corpus splits the knowledge document into retrievable chunks.
package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caremind-health/medfaq/internal/domain"
)

// Chunk splits raw corpus text into ordered chunks, one per non-empty
// content line. Blank lines and heading/markup-only lines are dropped.
// Ordinals are zero-based and assigned in document order; ids are
// derived from the ordinal so re-indexing the same document overwrites
// the same keys.
func Chunk(text, sourceRef string) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isMarkupOnly(line) {
			continue
		}
		ord := len(chunks)
		chunks = append(chunks, domain.Chunk{
			ID:        fmt.Sprintf("chunk-%d", ord),
			Text:      line,
			SourceRef: sourceRef,
			Ordinal:   ord,
		})
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmptyCorpus, sourceRef)
	}
	return chunks, nil
}

// LoadFile reads a corpus document from disk and chunks it.
func LoadFile(path string) ([]domain.Chunk, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}
	return Chunk(string(data), filepath.Base(path))
}

// isMarkupOnly reports whether a trimmed line carries markup but no
// prose: markdown headings, horizontal rules, and fence markers.
func isMarkupOnly(line string) bool {
	if strings.HasPrefix(line, "#") {
		return true
	}
	stripped := strings.Trim(line, "-=*_~` ")
	return stripped == ""
}
