package ports

import (
	"context"

	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
)

type (
	RunSaver interface {
		// Create stores a new run record.
		Create(ctx context.Context, run *model.HealthCheckRun) error
	}

	RunUpdater interface {
		// Update merges the non-nil fields of the update into the stored record.
		Update(ctx context.Context, id model.RunID, update model.RunUpdate) error
	}

	RunFetcher interface {
		// FetchByID retrieves a run by its ID.
		FetchByID(ctx context.Context, id model.RunID) (*model.HealthCheckRun, error)
	}

	RunFinder interface {
		// ListRecent returns up to limit runs ordered by creation time, newest first.
		ListRecent(ctx context.Context, limit uint) ([]*model.HealthCheckRun, error)
	}

	RunDeleter interface {
		// Delete removes a run. Returns model.ErrRunNotFound when absent.
		Delete(ctx context.Context, id model.RunID) error
	}

	// RunRepository defines the persistence operations for health check runs.
	RunRepository interface {
		RunSaver
		RunUpdater
		RunFetcher
		RunFinder
		RunDeleter

		Ping(ctx context.Context) error
	}
)
