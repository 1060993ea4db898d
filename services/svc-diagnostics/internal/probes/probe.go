package probes

import (
	"fmt"
	"math"
	"time"

	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/ports"
)

type (
	Clock func() time.Time

	base struct {
		store ports.MonitoredStore
		cfg   Config
		now   Clock
	}

	Option func(*base)
)

// WithClock overrides the time source used for windows and ages.
func WithClock(c Clock) Option {
	return func(b *base) {
		b.now = c
	}
}

func newBase(store ports.MonitoredStore, cfg Config, opts ...Option) base {
	b := base{
		store: store,
		cfg:   cfg,
		now:   func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(&b)
	}

	return b
}

func (b base) result(name model.ProbeName, status model.ProbeStatus, details string, metrics model.Metrics) model.ProbeResult {
	res := model.NewProbeResult(name, status, details, metrics)
	res.Timestamp = b.now()

	return res
}

func (b base) failure(name model.ProbeName, metrics model.Metrics, format string, args ...any) model.ProbeResult {
	return b.result(name, model.ProbeStatusError, fmt.Sprintf(format, args...), metrics)
}

func percentage(part, total int64) float64 {
	if total == 0 {
		return 0
	}

	return round2(float64(part) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
