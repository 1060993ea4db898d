package services

import (
	"context"
	"errors"
	"time"

	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/config"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/ports"
)

const (
	dependencyRunStore       = "run_store"
	dependencyCache          = "cache"
	dependencyMonitoredStore = "monitored_store"
)

var errCacheUnreachable = errors.New("cache unreachable")

type (
	// Pinger is satisfied by the run repository and the monitored store.
	Pinger interface {
		Ping(ctx context.Context) error
	}

	// CacheProbe is satisfied by the KeyDB backed stores.
	CacheProbe interface {
		IsHealthy(ctx context.Context) bool
	}

	// HealthChecker reports process liveness and dependency readiness.
	HealthChecker struct {
		runStore       Pinger
		monitoredStore Pinger
		cache          CacheProbe
	}
)

var _ ports.HealthChecker = (*HealthChecker)(nil)

// NewHealthChecker accepts a nil monitoredStore or cache for deployments without them.
func NewHealthChecker(runStore, monitoredStore Pinger, cache CacheProbe) *HealthChecker {
	return &HealthChecker{
		runStore:       runStore,
		monitoredStore: monitoredStore,
		cache:          cache,
	}
}

func (h *HealthChecker) Liveness(_ context.Context) (*model.LivenessReport, error) {
	return &model.LivenessReport{
		Status:    model.HealthStatusOK,
		Timestamp: time.Now().UTC(),
		Version:   config.ServiceVersion,
	}, nil
}

// Readiness is down when the run store is unreachable. Losing the cache or the
// monitored store only degrades the service: runs still start and report.
func (h *HealthChecker) Readiness(ctx context.Context) (*model.ReadinessReport, error) {
	now := time.Now().UTC()
	checks := make(map[string]model.DependencyCheck, 3)

	checks[dependencyRunStore] = ping(ctx, h.runStore.Ping, now)

	if h.monitoredStore != nil {
		checks[dependencyMonitoredStore] = ping(ctx, h.monitoredStore.Ping, now)
	}

	if h.cache != nil {
		checks[dependencyCache] = ping(ctx, func(ctx context.Context) error {
			if !h.cache.IsHealthy(ctx) {
				return errCacheUnreachable
			}

			return nil
		}, now)
	}

	return &model.ReadinessReport{
		Status:    model.SummarizeReadiness(checks, dependencyRunStore),
		Timestamp: now,
		Version:   config.ServiceVersion,
		Checks:    checks,
	}, nil
}

func ping(ctx context.Context, fn func(context.Context) error, now time.Time) model.DependencyCheck {
	start := time.Now()
	err := fn(ctx)

	return model.ObserveDependency(err, time.Since(start), now)
}
