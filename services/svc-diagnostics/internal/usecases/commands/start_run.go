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
	StartRunCommand struct {
		Settings model.RunSettings
		Caller   model.Identity
	}

	StartRunCommandHandler = decorator.CommandHandler[StartRunCommand, model.RunID]

	startRunCommandHandler struct {
		runService ports.RunService
	}
)

func NewStartRunCommandHandler(
	svc ports.RunService,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) StartRunCommandHandler {
	return decorator.ApplyCommandDecorators[StartRunCommand, model.RunID](
		startRunCommandHandler{runService: svc},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h startRunCommandHandler) Handle(ctx context.Context, cmd StartRunCommand) (model.RunID, error) {
	return h.runService.StartRun(ctx, cmd.Settings, cmd.Caller)
}
