package queries

import (
	"context"

	"github.com/architeacher/diagnostics/pkg/decorator"
	"github.com/architeacher/diagnostics/pkg/logger"
	"github.com/architeacher/diagnostics/pkg/metrics"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/ports"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	ListRunsQuery struct {
		// Limit of zero selects the default page size.
		Limit uint
	}

	ListRunsQueryHandler = decorator.QueryHandler[ListRunsQuery, []*model.HealthCheckRun]

	listRunsQueryHandler struct {
		runService ports.RunService
	}
)

func NewListRunsQueryHandler(
	svc ports.RunService,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) ListRunsQueryHandler {
	return decorator.ApplyQueryDecorators[ListRunsQuery, []*model.HealthCheckRun](
		listRunsQueryHandler{runService: svc},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h listRunsQueryHandler) Execute(ctx context.Context, query ListRunsQuery) ([]*model.HealthCheckRun, error) {
	return h.runService.ListRuns(ctx, query.Limit)
}
