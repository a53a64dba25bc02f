// Package search orchestrates retrieval across the vector path and the
// lexical fallback, with a sticky one-way downgrade on vector failure.
package search

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/caremind-health/medfaq/internal/domain"
	"github.com/caremind-health/medfaq/internal/metrics"
)

// Mode is the orchestrator's process-wide state.
type Mode string

const (
	// VectorReady means the embedding and vector clients are usable.
	VectorReady Mode = "vector_ready"
	// FallbackOnly means all searches use the lexical fallback.
	FallbackOnly Mode = "fallback_only"
)

// Service routes searches between the vector path and the fallback.
// The downgrade to FallbackOnly is one-way for the lifetime of the
// instance: there is no automatic recovery even if the backend heals,
// so a known-bad dependency is paid for at most once.
type Service struct {
	embedder Embedder
	index    VectorIndex
	lexical  Lexical
	degraded atomic.Bool
	logger   *zap.Logger
}

// New creates an orchestrator. When embedder or index is nil (missing
// credentials, failed client construction) the initial mode is
// FallbackOnly; otherwise VectorReady.
func New(embedder Embedder, index VectorIndex, lexical Lexical, logger *zap.Logger) *Service {
	s := &Service{
		embedder: embedder,
		index:    index,
		lexical:  lexical,
		logger:   logger,
	}
	if embedder == nil || index == nil {
		s.degraded.Store(true)
	}
	return s
}

// Mode returns the current orchestrator mode.
func (s *Service) Mode() Mode {
	if s.degraded.Load() {
		return FallbackOnly
	}
	return VectorReady
}

// Search returns up to domain.MaxMatches matches for the query. In
// VectorReady mode the vector path is tried first; any failure there
// downgrades the whole instance and recomputes this same request via
// the fallback, so the caller always receives a result.
func (s *Service) Search(ctx context.Context, query string) []domain.SearchMatch {
	if !s.degraded.Load() {
		matches, ok := s.tryVector(ctx, query)
		if ok {
			metrics.SearchesTotal.WithLabelValues("vector").Inc()
			return matches
		}
		s.downgrade()
	}

	metrics.SearchesTotal.WithLabelValues("fallback").Inc()
	return s.lexical.Search(query)
}

// tryVector runs the vector path and reports success as an explicit
// variant instead of an error: ok=false means "needs fallback". The
// underlying errors are upstream failures by contract and are logged,
// never propagated.
func (s *Service) tryVector(ctx context.Context, query string) ([]domain.SearchMatch, bool) {
	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Warn("query embedding failed", zap.Error(err))
		return nil, false
	}

	neighbors, err := s.index.QueryTopK(ctx, emb.Embedding, domain.MaxMatches)
	if err != nil {
		s.logger.Warn("vector query failed", zap.Error(err))
		return nil, false
	}

	matches := make([]domain.SearchMatch, 0, len(neighbors))
	for _, n := range neighbors {
		if n.Text == "" {
			continue
		}
		matches = append(matches, domain.SearchMatch{Text: n.Text, Score: n.Score})
	}
	return matches, true
}

// downgrade flips the instance to FallbackOnly. Idempotent; the metric
// and log line fire once.
func (s *Service) downgrade() {
	if s.degraded.CompareAndSwap(false, true) {
		metrics.DowngradesTotal.Inc()
		s.logger.Warn("vector path failed, downgrading to fallback-only mode for this instance")
	}
}
