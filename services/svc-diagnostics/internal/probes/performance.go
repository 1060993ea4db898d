package probes

import (
	"context"
	"fmt"
	"time"

	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/ports"
)

// PerformanceProbe samples round-trip latency of a ping followed by a small count query.
type PerformanceProbe struct {
	base
	since func(time.Time) time.Duration
}

func NewPerformanceProbe(store ports.MonitoredStore, cfg Config, opts ...Option) PerformanceProbe {
	return PerformanceProbe{base: newBase(store, cfg, opts...), since: time.Since}
}

func (p PerformanceProbe) Name() model.ProbeName {
	return model.ProbePerformance
}

func (p PerformanceProbe) Execute(ctx context.Context) (model.ProbeResult, error) {
	metrics := model.Metrics{}

	samples := max(p.cfg.PerformanceSamples, 1)

	var total, worst time.Duration

	for range samples {
		start := time.Now()

		if err := p.store.Ping(ctx); err != nil {
			return p.failure(p.Name(), metrics, "latency sample failed: %v", err), nil
		}

		if _, err := p.store.Count(ctx, ports.CollectionUsers, ports.CountFilter{}); err != nil {
			return p.failure(p.Name(), metrics, "latency sample failed: %v", err), nil
		}

		elapsed := p.since(start)
		total += elapsed
		worst = max(worst, elapsed)
	}

	avg := total / time.Duration(samples)

	metrics["performance.samples"] = samples
	metrics["performance.avg_latency_ms"] = avg.Milliseconds()
	metrics["performance.max_latency_ms"] = worst.Milliseconds()

	switch {
	case avg > p.cfg.LatencyError:
		return p.result(p.Name(), model.ProbeStatusError,
			fmt.Sprintf("average latency %dms exceeds %dms", avg.Milliseconds(), p.cfg.LatencyError.Milliseconds()), metrics), nil
	case avg > p.cfg.LatencyWarning:
		return p.result(p.Name(), model.ProbeStatusWarning,
			fmt.Sprintf("average latency %dms exceeds %dms", avg.Milliseconds(), p.cfg.LatencyWarning.Milliseconds()), metrics), nil
	default:
		return p.result(p.Name(), model.ProbeStatusHealthy,
			fmt.Sprintf("average latency %dms over %d samples", avg.Milliseconds(), samples), metrics), nil
	}
}
