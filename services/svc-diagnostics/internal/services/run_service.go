package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/architeacher/diagnostics/pkg/logger"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/ports"
	otelTrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

type (
	// RunExecutor drives a persisted run to a terminal state.
	RunExecutor interface {
		Run(ctx context.Context, run *model.HealthCheckRun)
	}

	// RunService starts runs in the background and serves their records.
	RunService struct {
		repo     ports.RunRepository
		executor RunExecutor
		logger   logger.Logger

		// baseCtx outlives requests; cancelling it interrupts in-flight runs.
		baseCtx  context.Context
		inFlight sync.WaitGroup
		fetches  singleflight.Group
	}
)

var _ ports.RunService = (*RunService)(nil)

func NewRunService(baseCtx context.Context, repo ports.RunRepository, executor RunExecutor, log logger.Logger) *RunService {
	return &RunService{
		repo:     repo,
		executor: executor,
		logger:   log,
		baseCtx:  baseCtx,
	}
}

func (s *RunService) StartRun(ctx context.Context, settings model.RunSettings, caller model.Identity) (model.RunID, error) {
	if caller.Subject == "" {
		return model.RunID{}, model.ErrUnauthorized
	}

	if !caller.IsAdmin() {
		return model.RunID{}, model.ErrForbidden
	}

	run := model.NewHealthCheckRun(settings, caller.Subject)

	if err := s.repo.Create(ctx, run); err != nil {
		return model.RunID{}, err
	}

	// The run inherits the request trace but not its cancellation.
	runCtx := otelTrace.ContextWithSpanContext(s.baseCtx, otelTrace.SpanContextFromContext(ctx))
	snapshot := run.Clone()

	s.inFlight.Add(1)

	go func() {
		defer s.inFlight.Done()

		s.executor.Run(runCtx, snapshot)
	}()

	log := s.logger.WithContext(ctx)
	log.Info().
		Str("run_id", run.ID.String()).
		Str("created_by", caller.Subject).
		Msg("health check run scheduled")

	return run.ID, nil
}

// GetRun collapses concurrent polls for the same run into one store read.
func (s *RunService) GetRun(ctx context.Context, id model.RunID) (*model.HealthCheckRun, error) {
	// The shared read outlives any single caller; each caller still stops waiting on its own ctx.
	fetch := s.fetches.DoChan(id.String(), func() (any, error) {
		return s.repo.FetchByID(context.WithoutCancel(ctx), id)
	})

	select {
	case res := <-fetch:
		if res.Err != nil {
			return nil, res.Err
		}

		return res.Val.(*model.HealthCheckRun).Clone(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *RunService) ListRuns(ctx context.Context, limit uint) ([]*model.HealthCheckRun, error) {
	if limit == 0 {
		limit = model.DefaultListLimit
	}

	if limit > model.MaxListLimit {
		limit = model.MaxListLimit
	}

	return s.repo.ListRecent(ctx, limit)
}

func (s *RunService) DeleteRun(ctx context.Context, id model.RunID) error {
	return s.repo.Delete(ctx, id)
}

// Wait blocks until every in-flight run reaches a terminal state or ctx is done.
func (s *RunService) Wait(ctx context.Context) error {
	done := make(chan struct{})

	go func() {
		s.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for in-flight runs: %w", ctx.Err())
	}
}

// WaitFor polls the store until the run is terminal. Used by the one-shot CLI.
func (s *RunService) WaitFor(ctx context.Context, id model.RunID, interval time.Duration) (*model.HealthCheckRun, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		run, err := s.repo.FetchByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if run.Status.IsTerminal() {
			return run, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
