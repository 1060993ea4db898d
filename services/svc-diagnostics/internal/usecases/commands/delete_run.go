package commands

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
	DeleteRunCommand struct {
		ID     model.RunID
		Caller model.Identity
	}

	DeleteRunResult struct {
		Success bool
	}

	DeleteRunCommandHandler = decorator.CommandHandler[DeleteRunCommand, DeleteRunResult]

	deleteRunCommandHandler struct {
		runService ports.RunService
		cache      ports.RunCache
		logger     logger.Logger
	}
)

// NewDeleteRunCommandHandler accepts a nil cache when run caching is off.
func NewDeleteRunCommandHandler(
	svc ports.RunService,
	cache ports.RunCache,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) DeleteRunCommandHandler {
	return decorator.ApplyCommandDecorators[DeleteRunCommand, DeleteRunResult](
		deleteRunCommandHandler{runService: svc, cache: cache, logger: log},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h deleteRunCommandHandler) Handle(ctx context.Context, cmd DeleteRunCommand) (DeleteRunResult, error) {
	if !cmd.Caller.IsAdmin() {
		return DeleteRunResult{}, model.ErrForbidden
	}

	if err := h.runService.DeleteRun(ctx, cmd.ID); err != nil {
		return DeleteRunResult{}, err
	}

	// The record is gone either way; a stale cache entry expires with its TTL.
	if h.cache != nil {
		if err := h.cache.InvalidateRun(ctx, cmd.ID); err != nil {
			log := h.logger.WithContext(ctx)
			log.Warn().Err(err).
				Str("run_id", cmd.ID.String()).
				Msg("failed to invalidate cached run")
		}
	}

	return DeleteRunResult{Success: true}, nil
}
