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
	GetRunQuery struct {
		ID model.RunID
	}

	GetRunQueryHandler = decorator.QueryHandler[GetRunQuery, *model.HealthCheckRun]

	getRunQueryHandler struct {
		runService ports.RunService
	}
)

func NewGetRunQueryHandler(
	svc ports.RunService,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) GetRunQueryHandler {
	return decorator.ApplyQueryDecorators[GetRunQuery, *model.HealthCheckRun](
		getRunQueryHandler{runService: svc},
		log,
		metricsClient,
		tracerProvider,
	)
}

// NewGetRunQueryHandlerWithCache reads terminal runs through the cache before the store.
func NewGetRunQueryHandlerWithCache(
	svc ports.RunService,
	cache decorator.Cache[GetRunQuery, *model.HealthCheckRun],
	cacheConfig decorator.CacheConfig,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) GetRunQueryHandler {
	return decorator.ApplyQueryDecorators[GetRunQuery, *model.HealthCheckRun](
		decorator.NewQueryCachingDecorator[GetRunQuery, *model.HealthCheckRun](
			getRunQueryHandler{runService: svc},
			cache,
			cacheConfig,
		),
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h getRunQueryHandler) Execute(ctx context.Context, query GetRunQuery) (*model.HealthCheckRun, error) {
	return h.runService.GetRun(ctx, query.ID)
}
