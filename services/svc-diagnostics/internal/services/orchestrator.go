package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/architeacher/diagnostics/pkg/logger"
	"github.com/architeacher/diagnostics/pkg/metrics"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/ports"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelTrace "go.opentelemetry.io/otel/trace"
)

const (
	finalWriteTimeout = 10 * time.Second

	tracerName = "svc-diagnostics/orchestrator"
)

type (
	OrchestratorConfig struct {
		PacingDelay  time.Duration
		ProbeTimeout time.Duration
	}

	// Orchestrator drives one run through its probe battery and owns every write to that run's record.
	Orchestrator struct {
		repo          ports.RunUpdater
		registry      ports.ProbeRegistry
		cfg           OrchestratorConfig
		logger        logger.Logger
		metricsClient metrics.Client
		tracer        otelTrace.Tracer
		now           func() time.Time
	}

	probeOutcome struct {
		result model.ProbeResult
		err    error
	}
)

func NewOrchestrator(
	repo ports.RunUpdater,
	registry ports.ProbeRegistry,
	cfg OrchestratorConfig,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) *Orchestrator {
	return &Orchestrator{
		repo:          repo,
		registry:      registry,
		cfg:           cfg,
		logger:        log,
		metricsClient: metricsClient,
		tracer:        tracerProvider.Tracer(tracerName),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Run executes the run to a terminal state. It blocks until then and never panics.
func (o *Orchestrator) Run(ctx context.Context, run *model.HealthCheckRun) {
	ctx, span := o.tracer.Start(ctx, "Orchestrator.Run",
		otelTrace.WithAttributes(attribute.String("run.id", run.ID.String())))
	defer span.End()

	log := o.logger.WithContext(ctx).With().Str("run_id", run.ID.String()).Logger()

	defer func() {
		if r := recover(); r != nil {
			err := &model.OrchestratorError{RunID: run.ID, Cause: fmt.Errorf("%w: %v", model.ErrProbePanicked, r)}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.fail(ctx, run, err)
		}
	}()

	probes := o.registry.Build(run.Settings)

	log.Info().Int("probes", len(probes)).Msg("health check run started")

	results, err := o.drive(ctx, run, probes)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.fail(ctx, run, err)

		return
	}

	o.complete(ctx, run, results)
}

func (o *Orchestrator) drive(ctx context.Context, run *model.HealthCheckRun, probes []ports.Probe) ([]model.ProbeResult, error) {
	err := o.update(ctx, run, model.RunUpdate{
		Status:   model.Ptr(model.RunStatusInProgress),
		Progress: model.Ptr(0),
	})
	if err != nil {
		return nil, &model.OrchestratorError{RunID: run.ID, Cause: err}
	}

	total := len(probes)
	results := make([]model.ProbeResult, 0, total)

	for i, probe := range probes {
		name := probe.Name()

		// Progress is announced together with the probe that is about to run.
		err := o.update(ctx, run, model.RunUpdate{
			Progress:     model.Ptr(progressAt(i, total)),
			CurrentProbe: &name,
		})
		if err != nil {
			return nil, &model.OrchestratorError{RunID: run.ID, Probe: name, Cause: err}
		}

		result, err := o.execute(ctx, run, probe)
		if err != nil {
			return nil, &model.OrchestratorError{RunID: run.ID, Probe: name, Cause: err}
		}

		results = append(results, result)
		agg := model.Aggregate(results)

		// Findings and metrics track the results so far; the verdict waits for completion.
		err = o.update(ctx, run, model.RunUpdate{
			AppendResult: &result,
			Issues:       agg.Issues,
			Warnings:     agg.Warnings,
			Metrics:      agg.Metrics,
		})
		if err != nil {
			return nil, &model.OrchestratorError{RunID: run.ID, Probe: name, Cause: err}
		}

		if i < total-1 {
			if err := o.pace(ctx); err != nil {
				return nil, &model.OrchestratorError{RunID: run.ID, Probe: name, Cause: err}
			}
		}
	}

	return results, nil
}

func (o *Orchestrator) execute(ctx context.Context, run *model.HealthCheckRun, probe ports.Probe) (model.ProbeResult, error) {
	name := probe.Name()

	ctx, span := o.tracer.Start(ctx, "Probe."+string(name),
		otelTrace.WithAttributes(attribute.String("probe.name", string(name))))
	defer span.End()

	probeCtx, cancel := ctx, context.CancelFunc(func() {})
	if o.cfg.ProbeTimeout > 0 {
		probeCtx, cancel = context.WithTimeout(ctx, o.cfg.ProbeTimeout)
	}
	defer cancel()

	start := time.Now()
	done := make(chan probeOutcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- probeOutcome{err: fmt.Errorf("%w: %v", model.ErrProbePanicked, r)}
			}
		}()

		result, err := probe.Execute(probeCtx)
		done <- probeOutcome{result: result, err: err}
	}()

	var out probeOutcome

	select {
	case out = <-done:
		if out.err != nil && probeCtx.Err() != nil {
			out.err = contextFailure(ctx, o.cfg.ProbeTimeout)
		}
	case <-probeCtx.Done():
		out.err = contextFailure(ctx, o.cfg.ProbeTimeout)
	}

	elapsed := time.Since(start)

	if out.err == nil {
		out.err = validateResult(name, out.result)
	}

	if out.err != nil {
		span.RecordError(out.err)
		span.SetStatus(codes.Error, out.err.Error())
		o.metricsClient.Inc(ctx, "diagnostics.probes.escaped", 1, attribute.String("probe", string(name)))

		return model.ProbeResult{}, out.err
	}

	span.SetAttributes(attribute.String("probe.status", string(out.result.Status)))
	o.metricsClient.Inc(ctx, "diagnostics.probes.executed", 1,
		attribute.String("probe", string(name)),
		attribute.String("status", string(out.result.Status)))
	o.metricsClient.Inc(ctx, "diagnostics.probes.duration_ms", elapsed.Milliseconds(), attribute.String("probe", string(name)))

	log := o.logger.WithContext(ctx)
	log.Debug().
		Str("run_id", run.ID.String()).
		Str("probe", string(name)).
		Str("status", string(out.result.Status)).
		Dur("elapsed", elapsed).
		Msg(out.result.Details)

	return out.result, nil
}

func (o *Orchestrator) complete(ctx context.Context, run *model.HealthCheckRun, results []model.ProbeResult) {
	agg := model.Aggregate(results)
	completedAt := o.now()

	err := o.update(ctx, run, model.RunUpdate{
		Status:        model.Ptr(model.RunStatusCompleted),
		Progress:      model.Ptr(100),
		CurrentProbe:  model.Ptr(model.ProbeName("")),
		Issues:        agg.Issues,
		Warnings:      agg.Warnings,
		Metrics:       agg.Metrics,
		OverallHealth: model.Ptr(agg.OverallHealth),
		CompletedAt:   &completedAt,
		DurationMs:    model.Ptr(completedAt.Sub(run.CreatedAt).Milliseconds()),
	})
	if err != nil {
		o.fail(ctx, run, &model.OrchestratorError{RunID: run.ID, Cause: err})

		return
	}

	o.metricsClient.Inc(ctx, "diagnostics.runs.completed", 1, attribute.String("overall_health", string(agg.OverallHealth)))

	log := o.logger.WithContext(ctx)
	log.Info().
		Str("run_id", run.ID.String()).
		Str("overall_health", string(agg.OverallHealth)).
		Int("issues", len(agg.Issues)).
		Int("warnings", len(agg.Warnings)).
		Msg("health check run completed")
}

// fail writes the terminal failed state. Progress and overall health are left as they were.
func (o *Orchestrator) fail(ctx context.Context, run *model.HealthCheckRun, cause error) {
	completedAt := o.now()

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
	defer cancel()

	err := o.update(writeCtx, run, model.RunUpdate{
		Status:       model.Ptr(model.RunStatusFailed),
		CurrentProbe: model.Ptr(model.ProbeName("")),
		Error:        model.Ptr(cause.Error()),
		CompletedAt:  &completedAt,
		DurationMs:   model.Ptr(completedAt.Sub(run.CreatedAt).Milliseconds()),
	})

	o.metricsClient.Inc(ctx, "diagnostics.runs.failed", 1)

	log := o.logger.WithContext(ctx)

	if err != nil {
		log.Error().Err(err).Str("run_id", run.ID.String()).AnErr("cause", cause).
			Msg("failed to record health check run failure")

		return
	}

	log.Error().Err(cause).Str("run_id", run.ID.String()).Msg("health check run failed")
}

func (o *Orchestrator) update(ctx context.Context, run *model.HealthCheckRun, update model.RunUpdate) error {
	if !run.Settings.IncludeMetrics {
		update = update.StripMetrics()
	}

	return o.repo.Update(ctx, run.ID, update)
}

func (o *Orchestrator) pace(ctx context.Context) error {
	if o.cfg.PacingDelay <= 0 {
		return nil
	}

	timer := time.NewTimer(o.cfg.PacingDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("run interrupted: %w", ctx.Err())
	}
}

// progressAt reports the progress tick for the probe at index i of total.
func progressAt(i, total int) int {
	if total == 0 {
		return 100
	}

	return int(math.Round(100 * float64(i+1) / float64(total)))
}

func contextFailure(parent context.Context, timeout time.Duration) error {
	if err := parent.Err(); err != nil {
		return fmt.Errorf("run interrupted: %w", err)
	}

	return fmt.Errorf("%w after %s", model.ErrProbeTimeout, timeout)
}

func validateResult(name model.ProbeName, result model.ProbeResult) error {
	if result.Name != name {
		return fmt.Errorf("probe %s returned a result named %q", name, result.Name)
	}

	if !result.Status.IsValid() {
		return fmt.Errorf("probe %s returned invalid status %q", name, result.Status)
	}

	return nil
}
