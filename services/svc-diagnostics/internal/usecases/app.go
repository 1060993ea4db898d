package usecases

import (
	"github.com/architeacher/diagnostics/pkg/decorator"
	"github.com/architeacher/diagnostics/pkg/logger"
	"github.com/architeacher/diagnostics/pkg/metrics"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/ports"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/usecases/commands"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/usecases/queries"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	Commands struct {
		StartRun  commands.StartRunCommandHandler
		DeleteRun commands.DeleteRunCommandHandler
	}

	Queries struct {
		GetRun         queries.GetRunQueryHandler
		ListRuns       queries.ListRunsQueryHandler
		FetchLiveness  queries.FetchLivenessQueryHandler
		FetchReadiness queries.FetchReadinessQueryHandler
	}

	WebApplication struct {
		Commands Commands
		Queries  Queries
	}

	// RunCaching enables the terminal run cache. A nil Cache disables it.
	RunCaching struct {
		Cache  ports.RunCache
		Reader decorator.Cache[queries.GetRunQuery, *model.HealthCheckRun]
		Config decorator.CacheConfig
	}
)

func NewWebApplication(
	runSvc ports.RunService,
	healthChecker ports.HealthChecker,
	caching RunCaching,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) *WebApplication {
	getRun := queries.NewGetRunQueryHandler(runSvc, log, metricsClient, tracerProvider)
	if caching.Cache != nil && caching.Reader != nil {
		getRun = queries.NewGetRunQueryHandlerWithCache(runSvc, caching.Reader, caching.Config, log, metricsClient, tracerProvider)
	}

	return &WebApplication{
		Commands: Commands{
			StartRun:  commands.NewStartRunCommandHandler(runSvc, log, metricsClient, tracerProvider),
			DeleteRun: commands.NewDeleteRunCommandHandler(runSvc, caching.Cache, log, metricsClient, tracerProvider),
		},
		Queries: Queries{
			GetRun:         getRun,
			ListRuns:       queries.NewListRunsQueryHandler(runSvc, log, metricsClient, tracerProvider),
			FetchLiveness:  queries.NewFetchLivenessQueryHandler(healthChecker, log, metricsClient, tracerProvider),
			FetchReadiness: queries.NewFetchReadinessQueryHandler(healthChecker, log, metricsClient, tracerProvider),
		},
	}
}
