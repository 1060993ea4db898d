package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/architeacher/diagnostics/pkg/logger"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
)

const (
	codeValidationError    = "VALIDATION_ERROR"
	codeUnauthorized       = "UNAUTHORIZED"
	codeForbidden          = "FORBIDDEN"
	codeNotFound           = "NOT_FOUND"
	codeServiceUnavailable = "SERVICE_UNAVAILABLE"
	codeInternalError      = "INTERNAL_ERROR"
)

type (
	ErrorResponse struct {
		Code      string    `json:"code"`
		Message   string    `json:"message"`
		Timestamp time.Time `json:"timestamp"`
	}

	RunAccepted struct {
		RunID string `json:"runId"`
	}

	ProbeResult struct {
		Name      string         `json:"name"`
		Status    string         `json:"status"`
		Details   string         `json:"details"`
		Metrics   map[string]any `json:"metrics"`
		Timestamp time.Time      `json:"timestamp"`
	}

	Finding struct {
		Probe    string `json:"probe"`
		Message  string `json:"message"`
		Severity string `json:"severity"`
	}

	HealthCheckRun struct {
		ID            string            `json:"id"`
		CreatedAt     time.Time         `json:"createdAt"`
		CompletedAt   *time.Time        `json:"completedAt"`
		CreatedBy     string            `json:"createdBy"`
		Settings      model.RunSettings `json:"settings"`
		Status        string            `json:"status"`
		Progress      int               `json:"progress"`
		CurrentProbe  string            `json:"currentProbe"`
		Results       []ProbeResult     `json:"results"`
		Issues        []Finding         `json:"issues"`
		Warnings      []Finding         `json:"warnings"`
		Metrics       map[string]any    `json:"metrics"`
		OverallHealth string            `json:"overallHealth"`
		DurationMs    *int64            `json:"durationMs"`
		Error         string            `json:"error,omitempty"`
	}

	RunList struct {
		Runs  []HealthCheckRun `json:"runs"`
		Count int              `json:"count"`
	}
)

func toHealthCheckRun(run *model.HealthCheckRun) HealthCheckRun {
	results := make([]ProbeResult, 0, len(run.Results))
	for _, res := range run.Results {
		results = append(results, ProbeResult{
			Name:      string(res.Name),
			Status:    string(res.Status),
			Details:   res.Details,
			Metrics:   nonNilMetrics(res.Metrics),
			Timestamp: res.Timestamp,
		})
	}

	return HealthCheckRun{
		ID:            run.ID.String(),
		CreatedAt:     run.CreatedAt,
		CompletedAt:   run.CompletedAt,
		CreatedBy:     run.CreatedBy,
		Settings:      run.Settings,
		Status:        string(run.Status),
		Progress:      run.Progress,
		CurrentProbe:  string(run.CurrentProbe),
		Results:       results,
		Issues:        toFindings(run.Issues),
		Warnings:      toFindings(run.Warnings),
		Metrics:       nonNilMetrics(run.Metrics),
		OverallHealth: string(run.OverallHealth),
		DurationMs:    run.DurationMs,
		Error:         run.Error,
	}
}

func toFindings(findings []model.Finding) []Finding {
	out := make([]Finding, 0, len(findings))
	for _, f := range findings {
		out = append(out, Finding{
			Probe:    string(f.Probe),
			Message:  f.Message,
			Severity: string(f.Severity),
		})
	}

	return out
}

func nonNilMetrics(m model.Metrics) map[string]any {
	if m == nil {
		return map[string]any{}
	}

	return m
}

func writeJSONResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(data)
}

func writeErrorResponse(w http.ResponseWriter, status int, code, message string) {
	writeJSONResponse(w, status, ErrorResponse{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// writeDomainError maps service errors onto the HTTP error taxonomy.
func writeDomainError(w http.ResponseWriter, r *http.Request, log logger.Logger, err error) {
	var validationErrs *model.ValidationErrors

	switch {
	case errors.As(err, &validationErrs):
		writeErrorResponse(w, http.StatusBadRequest, codeValidationError, validationErrs.Error())
	case errors.Is(err, model.ErrInvalidRunID):
		writeErrorResponse(w, http.StatusBadRequest, codeValidationError, err.Error())
	case errors.Is(err, model.ErrUnauthorized):
		writeErrorResponse(w, http.StatusUnauthorized, codeUnauthorized, err.Error())
	case errors.Is(err, model.ErrForbidden):
		writeErrorResponse(w, http.StatusForbidden, codeForbidden, "the admin role is required")
	case errors.Is(err, model.ErrRunNotFound):
		writeErrorResponse(w, http.StatusNotFound, codeNotFound, "health check run not found")
	case errors.Is(err, model.ErrStoreUnavailable), errors.Is(err, model.ErrDatabaseConnection):
		reqLog := log.WithContext(r.Context())
		reqLog.Warn().Err(err).Msg("run store unavailable")
		writeErrorResponse(w, http.StatusServiceUnavailable, codeServiceUnavailable, "run store temporarily unavailable")
	default:
		reqLog := log.WithContext(r.Context())
		reqLog.Error().Err(err).Msg("request failed")
		writeErrorResponse(w, http.StatusInternalServerError, codeInternalError, "internal server error")
	}
}
