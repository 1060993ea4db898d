package repos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/architeacher/diagnostics/pkg/logger"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/infrastructure"
)

const (
	runCacheVersion = "v1"
	runKeyPrefix    = "diagnostics:run:" + runCacheVersion + ":"
)

// RunsCacheRepository keeps terminal runs in KeyDB. Runs still in flight are
// never stored so readers always observe live progress from the repository.
type RunsCacheRepository struct {
	client *infrastructure.KeydbClient
	logger logger.Logger
}

func NewRunsCacheRepository(client *infrastructure.KeydbClient, log logger.Logger) *RunsCacheRepository {
	return &RunsCacheRepository{
		client: client,
		logger: log.Named("runs_cache"),
	}
}

func (r *RunsCacheRepository) GetRun(ctx context.Context, id model.RunID) (*model.HealthCheckRun, bool, error) {
	data, err := r.client.Get(ctx, runKey(id))

	switch {
	case errors.Is(err, infrastructure.ErrCacheMiss):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}

	var doc runDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		r.dropCorrupted(ctx, id, err)

		return nil, false, nil
	}

	run, err := doc.toDomain()
	if err != nil {
		r.dropCorrupted(ctx, id, err)

		return nil, false, nil
	}

	return run, true, nil
}

func (r *RunsCacheRepository) SetRun(ctx context.Context, run *model.HealthCheckRun, ttl time.Duration) error {
	if run == nil || !run.Status.IsTerminal() {
		return nil
	}

	data, err := json.Marshal(toRunDocument(run))
	if err != nil {
		return fmt.Errorf("marshalling run: %w", err)
	}

	return r.client.Set(ctx, runKey(run.ID), data, ttl)
}

func (r *RunsCacheRepository) InvalidateRun(ctx context.Context, id model.RunID) error {
	return r.client.Delete(ctx, runKey(id))
}

func (r *RunsCacheRepository) IsHealthy(ctx context.Context) bool {
	return r.client.IsHealthy(ctx)
}

func (r *RunsCacheRepository) dropCorrupted(ctx context.Context, id model.RunID, cause error) {
	r.logger.Warn().Err(cause).Str("run_id", id.String()).Msg("discarding unreadable cached run")

	if err := r.client.Delete(ctx, runKey(id)); err != nil {
		r.logger.Warn().Err(err).Str("run_id", id.String()).Msg("failed to discard cached run")
	}
}

func runKey(id model.RunID) string {
	return runKeyPrefix + id.String()
}
