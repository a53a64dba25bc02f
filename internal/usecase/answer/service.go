// Package answer turns retrieval matches into the final answer text.
package answer

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/caremind-health/medfaq/internal/domain"
	"github.com/caremind-health/medfaq/internal/metrics"
)

const (
	// NoInfoDisclaimer is returned when retrieval found nothing.
	NoInfoDisclaimer = "No specific information was found for your question. " +
		"Please consult a healthcare professional for personalized advice."

	// ConsultSuffix is appended to deterministic multi-match answers.
	ConsultSuffix = "For guidance specific to your situation, please consult a healthcare professional."

	systemPrompt = "You are a careful medication-safety assistant. Answer the " +
		"question using only the provided context passages. Be brief and factual, " +
		"and recommend consulting a healthcare professional for personal advice."
)

// Service synthesizes answers. The generator is optional; without one
// (or on any generator failure) the deterministic branch is used and
// the request still succeeds.
type Service struct {
	generator domain.Generator
	logger    *zap.Logger
}

// New creates a synthesizer. generator may be nil.
func New(generator domain.Generator, logger *zap.Logger) *Service {
	return &Service{generator: generator, logger: logger}
}

// Synthesize produces the final answer for a query and its matches.
// It never fails: every generative error degrades silently to the
// deterministic top-match answer.
func (s *Service) Synthesize(ctx context.Context, query string, matches []domain.SearchMatch) string {
	switch {
	case len(matches) == 0:
		metrics.SynthesisTotal.WithLabelValues("disclaimer").Inc()
		return NoInfoDisclaimer
	case len(matches) == 1:
		metrics.SynthesisTotal.WithLabelValues("verbatim").Inc()
		return matches[0].Text
	}

	if s.generator != nil {
		text, err := s.generator.Complete(ctx, systemPrompt, buildPrompt(query, matches))
		if err == nil {
			metrics.SynthesisTotal.WithLabelValues("generative").Inc()
			return text
		}
		s.logger.Warn("generative synthesis failed, using deterministic answer", zap.Error(err))
	}

	metrics.SynthesisTotal.WithLabelValues("deterministic").Inc()
	return matches[0].Text + " " + ConsultSuffix
}

func buildPrompt(query string, matches []domain.SearchMatch) string {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\n\nContext:\n")
	for _, m := range matches {
		b.WriteString("- ")
		b.WriteString(m.Text)
		b.WriteString("\n")
	}
	return b.String()
}
