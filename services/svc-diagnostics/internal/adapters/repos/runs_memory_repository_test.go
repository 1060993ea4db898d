package repos_test

import (
	"sync"
	"testing"
	"time"

	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/adapters/repos"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
	"github.com/stretchr/testify/require"
)

func TestRunsMemoryRepository_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	repo := repos.NewRunsMemoryRepository()

	run := model.NewHealthCheckRun(model.DefaultRunSettings(), "admin")
	require.NoError(t, repo.Create(ctx, run))
	require.Error(t, repo.Create(ctx, run))

	require.NoError(t, repo.Update(ctx, run.ID, model.RunUpdate{
		Status:   model.Ptr(model.RunStatusInProgress),
		Progress: model.Ptr(14),
	}))

	fetched, err := repo.FetchByID(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, model.RunStatusInProgress, fetched.Status)
	require.Equal(t, 14, fetched.Progress)

	// Mutating a fetched copy must not reach the stored record.
	fetched.Progress = 99

	again, err := repo.FetchByID(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, 14, again.Progress)

	require.NoError(t, repo.Delete(ctx, run.ID))
	require.ErrorIs(t, repo.Delete(ctx, run.ID), model.ErrRunNotFound)

	_, err = repo.FetchByID(ctx, run.ID)
	require.ErrorIs(t, err, model.ErrRunNotFound)
	require.ErrorIs(t, repo.Update(ctx, run.ID, model.RunUpdate{}), model.ErrRunNotFound)
}

func TestRunsMemoryRepository_TerminalRunsAreFrozen(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	repo := repos.NewRunsMemoryRepository()

	run := model.NewHealthCheckRun(model.RunSettings{}, "admin")
	require.NoError(t, repo.Create(ctx, run))
	require.NoError(t, repo.Update(ctx, run.ID, model.RunUpdate{Status: model.Ptr(model.RunStatusCompleted)}))

	err := repo.Update(ctx, run.ID, model.RunUpdate{Progress: model.Ptr(50)})
	require.ErrorIs(t, err, model.ErrRunTerminal)
}

func TestRunsMemoryRepository_ListRecent(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	repo := repos.NewRunsMemoryRepository()
	base := time.Now().UTC()

	ids := make([]model.RunID, 0, 5)

	for i := range 5 {
		run := model.NewHealthCheckRun(model.DefaultRunSettings(), "admin")
		run.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(ctx, run))

		ids = append(ids, run.ID)
	}

	runs, err := repo.ListRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	require.Equal(t, ids[4], runs[0].ID)
	require.Equal(t, ids[3], runs[1].ID)
	require.Equal(t, ids[2], runs[2].ID)
}

func TestRunsMemoryRepository_ConcurrentWriters(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	repo := repos.NewRunsMemoryRepository()

	var wg sync.WaitGroup

	for range 20 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			run := model.NewHealthCheckRun(model.DefaultRunSettings(), "admin")
			if err := repo.Create(ctx, run); err != nil {
				t.Error(err)

				return
			}

			for p := range 10 {
				if err := repo.Update(ctx, run.ID, model.RunUpdate{Progress: model.Ptr(p * 10)}); err != nil {
					t.Error(err)
				}
			}
		}()
	}

	wg.Wait()

	runs, err := repo.ListRecent(ctx, 100)
	require.NoError(t, err)
	require.Len(t, runs, 20)

	for _, run := range runs {
		require.Equal(t, 90, run.Progress)
	}
}
