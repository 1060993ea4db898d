package repos

import (
	"context"
	"time"

	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/ports"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/usecases/queries"
)

// GetRunCacheAdapter adapts RunCache for GetRunQuery.
type GetRunCacheAdapter struct {
	cache ports.RunCache
}

func NewGetRunCacheAdapter(cache ports.RunCache) *GetRunCacheAdapter {
	return &GetRunCacheAdapter{cache: cache}
}

func (a *GetRunCacheAdapter) Get(ctx context.Context, query queries.GetRunQuery) (*model.HealthCheckRun, bool, error) {
	return a.cache.GetRun(ctx, query.ID)
}

// Set stores the run once it is terminal. Earlier states are skipped.
func (a *GetRunCacheAdapter) Set(ctx context.Context, _ queries.GetRunQuery, result *model.HealthCheckRun, ttl time.Duration) error {
	return a.cache.SetRun(ctx, result, ttl)
}
