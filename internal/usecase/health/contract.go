package health

import (
	"context"

	searchuc "github.com/caremind-health/medfaq/internal/usecase/search"
)

// VectorPinger checks vector backend availability.
type VectorPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// ModeReporter exposes the orchestrator's current mode.
type ModeReporter interface {
	Mode() searchuc.Mode
}
