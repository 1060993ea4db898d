package handlers

import (
	"net/http"
	"time"

	"github.com/architeacher/diagnostics/pkg/logger"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/usecases"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/usecases/queries"
)

type (
	AdminHandler struct {
		app    *usecases.WebApplication
		logger logger.Logger
	}

	HealthReport struct {
		Status    string                     `json:"status"`
		Timestamp time.Time                  `json:"timestamp"`
		Version   string                     `json:"version"`
		Checks    map[string]DependencyCheck `json:"checks,omitempty"`
	}

	DependencyCheck struct {
		Status      string    `json:"status"`
		LatencyMs   uint64    `json:"latencyMs"`
		Message     string    `json:"message,omitempty"`
		LastChecked time.Time `json:"lastChecked"`
		Error       string    `json:"error,omitempty"`
	}
)

func NewAdminHandler(app *usecases.WebApplication, log logger.Logger) *AdminHandler {
	return &AdminHandler{app: app, logger: log.Named("admin_handler")}
}

// Liveness handles GET /livez.
func (h *AdminHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	report, err := h.app.Queries.FetchLiveness.Execute(r.Context(), queries.FetchLivenessQuery{})
	if err != nil {
		writeDomainError(w, r, h.logger, err)

		return
	}

	status := http.StatusOK
	if report.Status != model.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}

	writeJSONResponse(w, status, HealthReport{
		Status:    string(report.Status),
		Timestamp: report.Timestamp,
		Version:   report.Version,
	})
}

// Readiness handles GET /readyz. A degraded service stays ready.
func (h *AdminHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	report, err := h.app.Queries.FetchReadiness.Execute(r.Context(), queries.FetchReadinessQuery{})
	if err != nil {
		writeDomainError(w, r, h.logger, err)

		return
	}

	checks := make(map[string]DependencyCheck, len(report.Checks))
	for name, check := range report.Checks {
		checks[name] = DependencyCheck{
			Status:      string(check.Status),
			LatencyMs:   check.LatencyMs,
			Message:     check.Message,
			LastChecked: check.LastChecked,
			Error:       check.Error,
		}
	}

	status := http.StatusOK
	if report.Status == model.HealthStatusDown {
		status = http.StatusServiceUnavailable
	}

	writeJSONResponse(w, status, HealthReport{
		Status:    string(report.Status),
		Timestamp: report.Timestamp,
		Version:   report.Version,
		Checks:    checks,
	})
}
