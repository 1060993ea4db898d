package ports

import (
	"context"
	"time"

	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
)

// RunCache stores terminal runs only.
type RunCache interface {
	// GetRun returns the cached run and whether it was found.
	GetRun(ctx context.Context, id model.RunID) (*model.HealthCheckRun, bool, error)

	SetRun(ctx context.Context, run *model.HealthCheckRun, ttl time.Duration) error

	InvalidateRun(ctx context.Context, id model.RunID) error

	IsHealthy(ctx context.Context) bool
}
