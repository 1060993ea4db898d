package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/architeacher/diagnostics/pkg/decorator"
	"github.com/architeacher/diagnostics/pkg/logger"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/adapters/inbound/http/middleware"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/usecases"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/usecases/commands"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/usecases/queries"
	"github.com/oapi-codegen/runtime"
)

const maxRequestBody = 64 << 10

type (
	HealthChecksHandler struct {
		app         *usecases.WebApplication
		cacheMaxAge uint
		logger      logger.Logger
	}

	// createHealthCheckRequest uses pointers so omitted switches can default to true.
	createHealthCheckRequest struct {
		CheckDatabase       *bool `json:"checkDatabase"`
		CheckAuthentication *bool `json:"checkAuthentication"`
		CheckStorage        *bool `json:"checkStorage"`
		CheckPerformance    *bool `json:"checkPerformance"`
		CheckSecurity       *bool `json:"checkSecurity"`
		CheckBackups        *bool `json:"checkBackups"`
		CheckLogs           *bool `json:"checkLogs"`
		IncludeMetrics      *bool `json:"includeMetrics"`
	}
)

// NewHealthChecksHandler serves the run resource. cacheMaxAge is the client cache
// lifetime in seconds advertised for terminal runs, zero disables it.
func NewHealthChecksHandler(app *usecases.WebApplication, cacheMaxAge uint, log logger.Logger) *HealthChecksHandler {
	return &HealthChecksHandler{
		app:         app,
		cacheMaxAge: cacheMaxAge,
		logger:      log.Named("health_checks_handler"),
	}
}

// CreateHealthCheck handles POST /health-checks.
func (h *HealthChecksHandler) CreateHealthCheck(w http.ResponseWriter, r *http.Request) {
	settings, err := decodeRunSettings(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, codeValidationError, err.Error())

		return
	}

	identity, _ := middleware.IdentityFromContext(r.Context())

	runID, err := h.app.Commands.StartRun.Handle(r.Context(), commands.StartRunCommand{
		Settings: settings,
		Caller:   identity,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)

		return
	}

	w.Header().Set("Location", "/health-checks?id="+runID.String())
	writeJSONResponse(w, http.StatusAccepted, RunAccepted{RunID: runID.String()})
}

// GetHealthChecks handles GET /health-checks. With an id it returns that run,
// without one the most recent runs, newest first.
func (h *HealthChecksHandler) GetHealthChecks(w http.ResponseWriter, r *http.Request) {
	var (
		id    *string
		limit *int
	)

	if err := runtime.BindQueryParameter("form", true, false, "id", r.URL.Query(), &id); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, codeValidationError, fmt.Sprintf("invalid id parameter: %v", err))

		return
	}

	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, codeValidationError, fmt.Sprintf("invalid limit parameter: %v", err))

		return
	}

	if id != nil {
		h.getRun(w, r, *id)

		return
	}

	h.listRuns(w, r, limit)
}

func (h *HealthChecksHandler) getRun(w http.ResponseWriter, r *http.Request, rawID string) {
	runID, err := model.ParseRunID(rawID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)

		return
	}

	run, err := h.app.Queries.GetRun.Execute(r.Context(), queries.GetRunQuery{ID: runID})
	w.Header().Set(middleware.CacheStatusHeader, string(decorator.GetCacheStatus(r.Context())))

	if err != nil {
		writeDomainError(w, r, h.logger, err)

		return
	}

	if run.Status.IsTerminal() && h.cacheMaxAge > 0 {
		w.Header().Set("Cache-Control", fmt.Sprintf("private, max-age=%d", h.cacheMaxAge))
	}

	writeJSONResponse(w, http.StatusOK, toHealthCheckRun(run))
}

func (h *HealthChecksHandler) listRuns(w http.ResponseWriter, r *http.Request, limit *int) {
	query := queries.ListRunsQuery{Limit: model.DefaultListLimit}

	if limit != nil {
		if *limit < 1 || *limit > model.MaxListLimit {
			writeErrorResponse(w, http.StatusBadRequest, codeValidationError,
				fmt.Sprintf("limit must be between 1 and %d", model.MaxListLimit))

			return
		}

		query.Limit = uint(*limit)
	}

	runs, err := h.app.Queries.ListRuns.Execute(r.Context(), query)
	if err != nil {
		writeDomainError(w, r, h.logger, err)

		return
	}

	list := RunList{Runs: make([]HealthCheckRun, 0, len(runs)), Count: len(runs)}
	for _, run := range runs {
		list.Runs = append(list.Runs, toHealthCheckRun(run))
	}

	writeJSONResponse(w, http.StatusOK, list)
}

// DeleteHealthCheck handles DELETE /health-checks?id=.
func (h *HealthChecksHandler) DeleteHealthCheck(w http.ResponseWriter, r *http.Request) {
	var id string

	if err := runtime.BindQueryParameter("form", true, true, "id", r.URL.Query(), &id); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, codeValidationError, "the id query parameter is required")

		return
	}

	runID, err := model.ParseRunID(id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)

		return
	}

	identity, _ := middleware.IdentityFromContext(r.Context())

	if _, err := h.app.Commands.DeleteRun.Handle(r.Context(), commands.DeleteRunCommand{
		ID:     runID,
		Caller: identity,
	}); err != nil {
		writeDomainError(w, r, h.logger, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// decodeRunSettings reads the optional settings body. An empty body enables everything.
func decodeRunSettings(body io.Reader) (model.RunSettings, error) {
	var req createHealthCheckRequest

	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return model.DefaultRunSettings(), nil
		}

		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return model.RunSettings{}, fmt.Errorf("field %q must be a boolean", typeErr.Field)
		}

		return model.RunSettings{}, fmt.Errorf("invalid request body: %w", err)
	}

	if decoder.More() {
		return model.RunSettings{}, errors.New("invalid request body: unexpected trailing data")
	}

	return model.RunSettings{
		CheckDatabase:       orTrue(req.CheckDatabase),
		CheckAuthentication: orTrue(req.CheckAuthentication),
		CheckStorage:        orTrue(req.CheckStorage),
		CheckPerformance:    orTrue(req.CheckPerformance),
		CheckSecurity:       orTrue(req.CheckSecurity),
		CheckBackups:        orTrue(req.CheckBackups),
		CheckLogs:           orTrue(req.CheckLogs),
		IncludeMetrics:      orTrue(req.IncludeMetrics),
	}, nil
}

func orTrue(v *bool) bool {
	return v == nil || *v
}
