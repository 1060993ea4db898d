package probes

import (
	"context"
	"fmt"
	"time"

	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/ports"
)

type DatabaseProbe struct {
	base
}

func NewDatabaseProbe(store ports.MonitoredStore, cfg Config, opts ...Option) DatabaseProbe {
	return DatabaseProbe{base: newBase(store, cfg, opts...)}
}

func (p DatabaseProbe) Name() model.ProbeName {
	return model.ProbeDatabase
}

func (p DatabaseProbe) Execute(ctx context.Context) (model.ProbeResult, error) {
	metrics := model.Metrics{}

	start := time.Now()
	if err := p.store.Ping(ctx); err != nil {
		return p.failure(p.Name(), metrics, "database unreachable: %v", err), nil
	}

	metrics["database.ping_ms"] = time.Since(start).Milliseconds()

	var total, users int64

	for _, collection := range ports.MonitoredCollections {
		count, err := p.store.Count(ctx, collection, ports.CountFilter{})
		if err != nil {
			return p.failure(p.Name(), metrics, "failed to count %s: %v", collection, err), nil
		}

		if collection == ports.CollectionUsers {
			users = count
		}

		total += count
	}

	metrics["database.total_documents"] = total

	if users == 0 {
		return p.result(p.Name(), model.ProbeStatusWarning, "database reachable but holds no user documents", metrics), nil
	}

	return p.result(p.Name(), model.ProbeStatusHealthy, fmt.Sprintf("database reachable, %d documents", total), metrics), nil
}
