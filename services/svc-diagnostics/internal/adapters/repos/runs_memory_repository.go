package repos

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/ports"
)

// RunsMemoryRepository keeps runs in process memory. Reads and writes exchange deep copies.
type RunsMemoryRepository struct {
	mu   sync.RWMutex
	runs map[model.RunID]*model.HealthCheckRun
}

var _ ports.RunRepository = (*RunsMemoryRepository)(nil)

func NewRunsMemoryRepository() *RunsMemoryRepository {
	return &RunsMemoryRepository{
		runs: make(map[model.RunID]*model.HealthCheckRun),
	}
}

func (r *RunsMemoryRepository) Create(_ context.Context, run *model.HealthCheckRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[run.ID]; exists {
		return fmt.Errorf("%w: run %s already exists", model.ErrDatabaseQuery, run.ID)
	}

	r.runs[run.ID] = run.Clone()

	return nil
}

func (r *RunsMemoryRepository) Update(_ context.Context, id model.RunID, update model.RunUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[id]
	if !ok {
		return model.ErrRunNotFound
	}

	return run.Apply(update)
}

func (r *RunsMemoryRepository) FetchByID(_ context.Context, id model.RunID) (*model.HealthCheckRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, model.ErrRunNotFound
	}

	return run.Clone(), nil
}

func (r *RunsMemoryRepository) ListRecent(_ context.Context, limit uint) ([]*model.HealthCheckRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]*model.HealthCheckRun, 0, len(r.runs))
	for _, run := range r.runs {
		runs = append(runs, run.Clone())
	}

	slices.SortFunc(runs, func(a, b *model.HealthCheckRun) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}

		return cmp.Compare(b.ID.String(), a.ID.String())
	})

	if uint(len(runs)) > limit {
		runs = runs[:limit]
	}

	return runs, nil
}

func (r *RunsMemoryRepository) Delete(_ context.Context, id model.RunID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[id]; !ok {
		return model.ErrRunNotFound
	}

	delete(r.runs, id)

	return nil
}

func (r *RunsMemoryRepository) Ping(_ context.Context) error {
	return nil
}
