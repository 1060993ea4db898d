package runtime

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/architeacher/diagnostics/pkg/logger"
	"github.com/architeacher/diagnostics/pkg/metrics"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/config"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/infrastructure"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/ports"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/services"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/usecases"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/throttled/throttled/v2"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	infrastructureDep struct {
		publicHTTPServer *http.Server
		adminHTTPServer  *http.Server
		pgPool           *pgxpool.Pool
		cacheClient      *infrastructure.KeydbClient
		logger           logger.Logger
		metricsClient    metrics.Client
		tracerProvider   otelTrace.TracerProvider
	}

	repositories struct {
		secretsRepo     ports.SecretsRepository
		runRepo         ports.RunRepository
		monitoredStore  ports.MonitoredStore
		runsCache       ports.RunCache
		idempotencyRepo ports.IdempotencyCache
		rateLimitStore  throttled.GCRAStoreCtx
	}

	servicesDep struct {
		orchestrator  *services.Orchestrator
		runService    *services.RunService
		healthChecker ports.HealthChecker
	}

	applications struct {
		webApp *usecases.WebApplication
	}

	cleanup struct {
		resource string
		fn       func(ctx context.Context) error
	}

	dependencies struct {
		config       *config.ServiceConfig
		configLoader *config.Loader
		logOutput    io.Writer

		// baseCtx is cancelled on shutdown and interrupts in-flight runs.
		baseCtx context.Context

		infra infrastructureDep

		repos repositories

		services servicesDep

		apps applications

		// cleanups run in reverse registration order.
		cleanups []cleanup
	}

	DependencyOption func(*dependencies) error
)

func initializeDependencies(ctx context.Context, opts ...DependencyOption) (*dependencies, error) {
	deps := &dependencies{baseCtx: ctx}

	for _, opt := range opts {
		if err := opt(deps); err != nil {
			deps.cleanup(context.WithoutCancel(ctx))

			return nil, fmt.Errorf("failed to apply dependency option: %w", err)
		}
	}

	return deps, nil
}

func (d *dependencies) onCleanup(resource string, fn func(ctx context.Context) error) {
	d.cleanups = append(d.cleanups, cleanup{resource: resource, fn: fn})
}

func (d *dependencies) cleanup(ctx context.Context) {
	for i := len(d.cleanups) - 1; i >= 0; i-- {
		c := d.cleanups[i]

		if err := c.fn(ctx); err != nil {
			d.infra.logger.Error().
				Err(err).
				Str("resource", c.resource).
				Msg("failed to shutdown the resource gracefully")
		}
	}

	d.cleanups = nil
}
