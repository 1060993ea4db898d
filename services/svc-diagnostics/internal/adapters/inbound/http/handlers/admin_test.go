package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/architeacher/diagnostics/pkg/logger"
	"github.com/architeacher/diagnostics/pkg/metrics/noop"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/adapters/inbound/http/handlers"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/adapters/repos"
	adapterServices "github.com/architeacher/diagnostics/services/svc-diagnostics/internal/adapters/services"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/usecases"
	"github.com/stretchr/testify/require"
	otelNoop "go.opentelemetry.io/otel/trace/noop"
)

type flakyPinger struct {
	err error
}

func (p flakyPinger) Ping(context.Context) error {
	return p.err
}

func TestAdminHandler(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name           string
		runStore       adapterServices.Pinger
		monitoredStore adapterServices.Pinger
		readyStatus    int
		readyReport    string
	}{
		{
			name:           "all dependencies up",
			runStore:       repos.NewRunsMemoryRepository(),
			monitoredStore: flakyPinger{},
			readyStatus:    http.StatusOK,
			readyReport:    "ok",
		},
		{
			name:           "monitored store down degrades but stays ready",
			runStore:       repos.NewRunsMemoryRepository(),
			monitoredStore: flakyPinger{err: errors.New("connection refused")},
			readyStatus:    http.StatusOK,
			readyReport:    "degraded",
		},
		{
			name:           "run store down is not ready",
			runStore:       flakyPinger{err: errors.New("connection refused")},
			monitoredStore: flakyPinger{},
			readyStatus:    http.StatusServiceUnavailable,
			readyReport:    "down",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			log := logger.NewTestLogger()
			app := usecases.NewWebApplication(
				nil,
				adapterServices.NewHealthChecker(tc.runStore, tc.monitoredStore, nil),
				usecases.RunCaching{},
				log,
				noop.NewMetricsClient(),
				otelNoop.NewTracerProvider(),
			)
			h := handlers.NewAdminHandler(app, log)

			live := httptest.NewRecorder()
			h.Liveness(live, httptest.NewRequest(http.MethodGet, "/livez", nil))
			require.Equal(t, http.StatusOK, live.Code)

			ready := httptest.NewRecorder()
			h.Readiness(ready, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			require.Equal(t, tc.readyStatus, ready.Code)

			var report handlers.HealthReport
			require.NoError(t, json.Unmarshal(ready.Body.Bytes(), &report))
			require.Equal(t, tc.readyReport, report.Status)
			require.Contains(t, report.Checks, "run_store")
			require.Contains(t, report.Checks, "monitored_store")
		})
	}
}
