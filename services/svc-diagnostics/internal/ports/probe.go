package ports

import (
	"context"

	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
)

// Probe is one diagnostic check. Expected failures of the monitored subsystem are
// reported through the result status; a returned error is fatal to the run.
type Probe interface {
	Name() model.ProbeName
	Execute(ctx context.Context) (model.ProbeResult, error)
}

// ProbeRegistry resolves the ordered probe battery for a run.
type ProbeRegistry interface {
	Build(settings model.RunSettings) []Probe
}
