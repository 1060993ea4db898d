package services_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/architeacher/diagnostics/pkg/logger"
	"github.com/architeacher/diagnostics/pkg/metrics/noop"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/adapters/repos"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/ports"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/probes"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/services"
	otelNoop "go.opentelemetry.io/otel/trace/noop"
)

var errWriteFailed = errors.New("write failed")

type (
	stubProbe struct {
		name    model.ProbeName
		status  model.ProbeStatus
		details string
		metrics model.Metrics
		err     error
		panics  bool
		block   <-chan struct{}
	}

	recordedUpdate struct {
		update model.RunUpdate
	}

	// recordingRepo records every update and can fail a chosen update.
	recordingRepo struct {
		*repos.RunsMemoryRepository

		mu       sync.Mutex
		updates  []recordedUpdate
		failAt   int
		failWith error
	}

	outageStore struct{}
)

func (p stubProbe) Name() model.ProbeName {
	return p.name
}

func (p stubProbe) Execute(ctx context.Context) (model.ProbeResult, error) {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return model.ProbeResult{}, ctx.Err()
		}
	}

	if p.panics {
		panic("nil map write in " + string(p.name))
	}

	if p.err != nil {
		return model.ProbeResult{}, p.err
	}

	return model.NewProbeResult(p.name, p.status, p.details, p.metrics), nil
}

func healthy(name model.ProbeName) stubProbe {
	return stubProbe{name: name, status: model.ProbeStatusHealthy, details: "ok", metrics: model.Metrics{string(name) + ".ok": 1}}
}

func newRecordingRepo() *recordingRepo {
	return &recordingRepo{RunsMemoryRepository: repos.NewRunsMemoryRepository(), failAt: -1}
}

func (r *recordingRepo) Update(ctx context.Context, id model.RunID, update model.RunUpdate) error {
	r.mu.Lock()
	idx := len(r.updates)
	r.updates = append(r.updates, recordedUpdate{update: update})
	r.mu.Unlock()

	if idx == r.failAt {
		return r.failWith
	}

	return r.RunsMemoryRepository.Update(ctx, id, update)
}

func (r *recordingRepo) progressTrail() []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	trail := make([]int, 0, len(r.updates))

	for _, u := range r.updates {
		if u.update.Progress != nil {
			trail = append(trail, *u.update.Progress)
		}
	}

	return trail
}

func (r *recordingRepo) probeTicks() map[model.ProbeName]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	ticks := make(map[model.ProbeName]int)

	for _, u := range r.updates {
		if u.update.CurrentProbe != nil && *u.update.CurrentProbe != "" && u.update.Progress != nil {
			ticks[*u.update.CurrentProbe] = *u.update.Progress
		}
	}

	return ticks
}

func (outageStore) Ping(context.Context) error {
	return errors.New("dial tcp 10.0.0.5:5432: connect: connection refused")
}

func (outageStore) Count(context.Context, ports.Collection, ports.CountFilter) (int64, error) {
	return 0, errors.New("connection refused")
}

func (outageStore) EstimateSize(context.Context, ports.Collection) (int64, error) {
	return 0, errors.New("connection refused")
}

func (outageStore) LatestTimestamp(context.Context, ports.Collection, ports.CountFilter) (time.Time, error) {
	return time.Time{}, errors.New("connection refused")
}

func newOrchestrator(repo ports.RunUpdater, cfg services.OrchestratorConfig, probeSet ...ports.Probe) *services.Orchestrator {
	return services.NewOrchestrator(
		repo,
		probes.NewRegistry(probeSet...),
		cfg,
		logger.NewTestLogger(),
		noop.NewMetricsClient(),
		otelNoop.NewTracerProvider(),
	)
}

// startRun persists a run and drives it synchronously.
func startRun(ctx context.Context, repo ports.RunRepository, orch *services.Orchestrator, settings model.RunSettings) (*model.HealthCheckRun, error) {
	run := model.NewHealthCheckRun(settings, "admin@example.com")
	if err := repo.Create(ctx, run); err != nil {
		return nil, err
	}

	orch.Run(ctx, run)

	return repo.FetchByID(ctx, run.ID)
}
