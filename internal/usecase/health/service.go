package health

import (
	"context"

	searchuc "github.com/caremind-health/medfaq/internal/usecase/search"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure; the service still answers via fallback.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckDisabled indicates a component without configured credentials.
	CheckDisabled CheckResult = "disabled"
)

// Report aggregates health check results.
type Report struct {
	Status Status                 `json:"status"`
	Mode   string                 `json:"mode"`
	Checks map[string]CheckResult `json:"checks"`
}

// Service coordinates health checks.
type Service struct {
	vector    VectorPinger
	embedding EmbeddingChecker
	mode      ModeReporter
}

// New creates a Service. vector and embedding can be nil when the
// corresponding credentials are absent.
func New(vector VectorPinger, embedding EmbeddingChecker, mode ModeReporter) *Service {
	return &Service{vector: vector, embedding: embedding, mode: mode}
}

// Check runs health checks against all components. A fallback-only
// orchestrator or any failing external check reports Degraded; the
// service never reports hard-down because the fallback path needs no
// external dependency.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if s.vector == nil {
		checks["vector"] = CheckDisabled
	} else if err := s.vector.Ping(ctx); err != nil {
		checks["vector"] = CheckError
	} else {
		checks["vector"] = CheckOK
	}

	if s.embedding == nil {
		checks["embedding"] = CheckDisabled
	} else if err := s.embedding.HealthCheck(ctx); err != nil {
		checks["embedding"] = CheckError
	} else {
		checks["embedding"] = CheckOK
	}

	status := Healthy
	if s.mode.Mode() == searchuc.FallbackOnly {
		status = Degraded
	}
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Mode: string(s.mode.Mode()), Checks: checks}
}
