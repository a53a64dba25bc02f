// Package chi wires the retrieval pipeline, rate limiter, history log,
// and rule table into the HTTP API.
package chi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/caremind-health/medfaq/internal/domain"
	"github.com/caremind-health/medfaq/internal/history"
	"github.com/caremind-health/medfaq/internal/logger"
	"github.com/caremind-health/medfaq/internal/rules"
	answeruc "github.com/caremind-health/medfaq/internal/usecase/answer"
	healthuc "github.com/caremind-health/medfaq/internal/usecase/health"
	searchuc "github.com/caremind-health/medfaq/internal/usecase/search"
)

// errorResponse is the JSON error body for non-FAQ failures.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// interactionResponse is the JSON body for GET /api/interactions.
type interactionResponse struct {
	MedA    string `json:"medA"`
	MedB    string `json:"medB"`
	IsRisky bool   `json:"isRisky"`
	Reason  string `json:"reason"`
}

// Server hosts the public HTTP API.
type Server struct {
	search  *searchuc.Service
	answers *answeruc.Service
	health  *healthuc.Service
	history *history.Log
	logger  *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	answers *answeruc.Service,
	health *healthuc.Service,
	historyLog *history.Log,
	logger *zap.Logger,
) *Server {
	return &Server{
		search:  search,
		answers: answers,
		health:  health,
		history: historyLog,
		logger:  logger,
	}
}

// Routes mounts all handlers on the router. Non-GET methods on the API
// routes answer 405 with a JSON body.
func (s *Server) Routes(r chi.Router) {
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "not found")
	})

	r.Get("/api/faq", s.handleFAQ)
	r.Get("/api/interactions", s.handleInteraction)
	r.Get("/api/history", s.handleHistoryList)
	r.Delete("/api/history", s.handleHistoryClear)
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}

// handleFAQ handles GET /api/faq?q=.
func (s *Server) handleFAQ(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeDomainError(w, fmt.Errorf("%w: query parameter q is required", domain.ErrInvalidQuery))
		return
	}

	matches := s.search.Search(r.Context(), query)
	answer := s.answers.Synthesize(r.Context(), query, matches)

	logger.FromContext(r.Context()).Debug("faq answered",
		zap.Int("matches", len(matches)),
		zap.String("mode", string(s.search.Mode())),
	)

	if matches == nil {
		matches = []domain.SearchMatch{}
	}
	writeJSON(w, http.StatusOK, domain.FAQResult{Answer: answer, Matches: matches})
}

// handleInteraction handles GET /api/interactions?a=&b= and records the
// check in the shared history log.
func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	medA := strings.TrimSpace(r.URL.Query().Get("a"))
	medB := strings.TrimSpace(r.URL.Query().Get("b"))
	if medA == "" || medB == "" {
		writeDomainError(w, fmt.Errorf("%w: query parameters a and b are required", domain.ErrInvalidQuery))
		return
	}

	risky, reason := rules.Check(medA, medB)
	logger.FromContext(r.Context()).Debug("interaction checked",
		zap.Bool("risky", risky),
	)
	s.history.Add(domain.HistoryItem{
		ID:        newID(),
		MedA:      medA,
		MedB:      medB,
		IsRisky:   risky,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	})

	writeJSON(w, http.StatusOK, interactionResponse{
		MedA: medA, MedB: medB, IsRisky: risky, Reason: reason,
	})
}

// handleHistoryList handles GET /api/history.
func (s *Server) handleHistoryList(w http.ResponseWriter, _ *http.Request) {
	items := s.history.List()
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// handleHistoryClear handles DELETE /api/history.
func (s *Server) handleHistoryClear(w http.ResponseWriter, _ *http.Request) {
	s.history.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// handleHealth handles GET /health. Degraded still answers 200: the
// fallback path keeps the service functional.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.health.Check(r.Context()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// writeDomainError maps domain sentinel errors to HTTP status codes.
// Unrecognized errors get a generic 500 with no internals leaked.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate_limited", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

// clientKey extracts the client identity for rate limiting: the
// remote address without the ephemeral port.
func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func newID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "chk-unknown"
	}
	return "chk-" + hex.EncodeToString(b[:])
}
