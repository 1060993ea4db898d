package handlers_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/architeacher/diagnostics/pkg/logger"
	"github.com/architeacher/diagnostics/pkg/metrics/noop"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/adapters/inbound/http/handlers"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/adapters/inbound/http/middleware"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/adapters/repos"
	adapterServices "github.com/architeacher/diagnostics/services/svc-diagnostics/internal/adapters/services"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/ports"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/services"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/usecases"
	"github.com/go-chi/chi/v5"
	otelNoop "go.opentelemetry.io/otel/trace/noop"
)

var errConnRefused = errors.New("dial tcp 10.0.0.7:5432: connect: connection refused")

var (
	admin  = model.Identity{Subject: "admin-1", Roles: []string{model.RoleAdmin}}
	viewer = model.Identity{Subject: "viewer-1", Roles: []string{"viewer"}}
)

type testEnv struct {
	repo   *repos.RunsMemoryRepository
	runSvc *services.RunService
	app    *usecases.WebApplication

	// execute drives started runs. Set it before the first request; nil leaves runs pending.
	execute func(ctx context.Context, run *model.HealthCheckRun)
}

// unavailableRepo fails every run store call the way an unreachable database does.
type unavailableRepo struct {
	*repos.RunsMemoryRepository
}

func (unavailableRepo) Create(context.Context, *model.HealthCheckRun) error {
	return fmt.Errorf("%w: %v", model.ErrStoreUnavailable, errConnRefused)
}

func (unavailableRepo) FetchByID(context.Context, model.RunID) (*model.HealthCheckRun, error) {
	return nil, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, errConnRefused)
}

func (unavailableRepo) ListRecent(context.Context, uint) ([]*model.HealthCheckRun, error) {
	return nil, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, errConnRefused)
}

func (unavailableRepo) Delete(context.Context, model.RunID) error {
	return fmt.Errorf("%w: %v", model.ErrStoreUnavailable, errConnRefused)
}

type executorFunc func(ctx context.Context, run *model.HealthCheckRun)

func (f executorFunc) Run(ctx context.Context, run *model.HealthCheckRun) {
	f(ctx, run)
}

// newTestEnv wires the real run service over the memory store.
func newTestEnv(ctx context.Context) *testEnv {
	mem := repos.NewRunsMemoryRepository()

	return newTestEnvOver(ctx, mem, mem)
}

// newTestEnvOver serves runs from store while seeding and readiness use the memory repository.
func newTestEnvOver(ctx context.Context, mem *repos.RunsMemoryRepository, store ports.RunRepository) *testEnv {
	env := &testEnv{repo: mem}
	log := logger.NewTestLogger()

	env.runSvc = services.NewRunService(ctx, store, executorFunc(func(ctx context.Context, run *model.HealthCheckRun) {
		if env.execute != nil {
			env.execute(ctx, run)
		}
	}), log)

	env.app = usecases.NewWebApplication(
		env.runSvc,
		adapterServices.NewHealthChecker(env.repo, nil, nil),
		usecases.RunCaching{},
		log,
		noop.NewMetricsClient(),
		otelNoop.NewTracerProvider(),
	)

	return env
}

// completeImmediately finishes every run as healthy.
func (e *testEnv) completeImmediately(ctx context.Context, run *model.HealthCheckRun) {
	_ = e.repo.Update(ctx, run.ID, model.RunUpdate{
		Status:        model.Ptr(model.RunStatusCompleted),
		Progress:      model.Ptr(100),
		CurrentProbe:  model.Ptr(model.ProbeName("")),
		OverallHealth: model.Ptr(model.OverallHealthHealthy),
		CompletedAt:   model.Ptr(time.Now().UTC()),
		DurationMs:    model.Ptr(int64(5)),
	})
}

// router mounts the handlers the way the public router does, minus authentication.
func (e *testEnv) router(identity *model.Identity) http.Handler {
	log := logger.NewTestLogger()
	healthChecks := handlers.NewHealthChecksHandler(e.app, 60, log)
	watch := handlers.NewWatchHandler(e.app, 10*time.Millisecond, time.Second, log)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if identity != nil {
				req = req.WithContext(middleware.WithIdentity(req.Context(), *identity))
			}

			next.ServeHTTP(w, req)
		})
	})
	r.Use(middleware.CacheStatus)

	r.Post("/health-checks", healthChecks.CreateHealthCheck)
	r.Get("/health-checks", healthChecks.GetHealthChecks)
	r.Delete("/health-checks", healthChecks.DeleteHealthCheck)
	r.Get("/health-checks/watch", watch.Watch)

	return r
}

func (e *testEnv) seed(ctx context.Context, status model.RunStatus) *model.HealthCheckRun {
	run := model.NewHealthCheckRun(model.DefaultRunSettings(), admin.Subject)
	_ = e.repo.Create(ctx, run)

	if status != model.RunStatusPending {
		update := model.RunUpdate{Status: model.Ptr(status)}
		if status.IsTerminal() {
			update.Progress = model.Ptr(100)
			update.CompletedAt = model.Ptr(time.Now().UTC())
			update.OverallHealth = model.Ptr(model.OverallHealthHealthy)
		}

		_ = e.repo.Update(ctx, run.ID, update)
	}

	stored, _ := e.repo.FetchByID(ctx, run.ID)

	return stored
}
