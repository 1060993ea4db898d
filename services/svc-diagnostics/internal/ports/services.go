package ports

import (
	"context"

	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
)

type (
	// RunService is the boundary used by the inbound adapters.
	RunService interface {
		// StartRun persists a pending run, launches its orchestration and returns without waiting.
		StartRun(ctx context.Context, settings model.RunSettings, caller model.Identity) (model.RunID, error)

		GetRun(ctx context.Context, id model.RunID) (*model.HealthCheckRun, error)

		ListRuns(ctx context.Context, limit uint) ([]*model.HealthCheckRun, error)

		DeleteRun(ctx context.Context, id model.RunID) error
	}

	// HealthChecker backs the admin liveness and readiness endpoints.
	HealthChecker interface {
		Liveness(ctx context.Context) (*model.LivenessReport, error)

		// Readiness pings every dependency and reports the worst outcome.
		Readiness(ctx context.Context) (*model.ReadinessReport, error)
	}
)
