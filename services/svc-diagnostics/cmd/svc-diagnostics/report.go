package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
)

const (
	outputYAML = "yaml"
	outputJSON = "json"
)

type (
	report struct {
		ID            string          `json:"id" yaml:"id"`
		Status        string          `json:"status" yaml:"status"`
		OverallHealth string          `json:"overallHealth" yaml:"overallHealth"`
		Progress      int             `json:"progress" yaml:"progress"`
		CreatedAt     time.Time       `json:"createdAt" yaml:"createdAt"`
		CompletedAt   *time.Time      `json:"completedAt,omitempty" yaml:"completedAt,omitempty"`
		DurationMs    *int64          `json:"durationMs,omitempty" yaml:"durationMs,omitempty"`
		Error         string          `json:"error,omitempty" yaml:"error,omitempty"`
		Results       []reportResult  `json:"results" yaml:"results"`
		Issues        []reportFinding `json:"issues" yaml:"issues"`
		Warnings      []reportFinding `json:"warnings" yaml:"warnings"`
		Metrics       map[string]any  `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	}

	reportResult struct {
		Name    string         `json:"name" yaml:"name"`
		Status  string         `json:"status" yaml:"status"`
		Details string         `json:"details" yaml:"details"`
		Metrics map[string]any `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	}

	reportFinding struct {
		Probe    string `json:"probe" yaml:"probe"`
		Severity string `json:"severity" yaml:"severity"`
		Message  string `json:"message" yaml:"message"`
	}
)

func newReport(run *model.HealthCheckRun) report {
	r := report{
		ID:            run.ID.String(),
		Status:        string(run.Status),
		OverallHealth: string(run.OverallHealth),
		Progress:      run.Progress,
		CreatedAt:     run.CreatedAt,
		CompletedAt:   run.CompletedAt,
		DurationMs:    run.DurationMs,
		Error:         run.Error,
		Results:       make([]reportResult, 0, len(run.Results)),
		Issues:        toReportFindings(run.Issues),
		Warnings:      toReportFindings(run.Warnings),
		Metrics:       run.Metrics,
	}

	for _, res := range run.Results {
		r.Results = append(r.Results, reportResult{
			Name:    string(res.Name),
			Status:  string(res.Status),
			Details: res.Details,
			Metrics: res.Metrics,
		})
	}

	return r
}

func toReportFindings(findings []model.Finding) []reportFinding {
	out := make([]reportFinding, 0, len(findings))
	for _, f := range findings {
		out = append(out, reportFinding{Probe: string(f.Probe), Severity: string(f.Severity), Message: f.Message})
	}

	return out
}

func writeReport(w io.Writer, format string, r report) error {
	switch format {
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encoding yaml report: %w", err)
		}

		return enc.Close()
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(r)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
