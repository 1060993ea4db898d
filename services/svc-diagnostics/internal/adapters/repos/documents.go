package repos

import (
	"time"

	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
)

// JSON document shapes shared by the Postgres and cache repositories.
type (
	resultDocument struct {
		Name      string         `json:"name"`
		Status    string         `json:"status"`
		Details   string         `json:"details"`
		Metrics   map[string]any `json:"metrics"`
		Timestamp time.Time      `json:"timestamp"`
	}

	findingDocument struct {
		Probe    string `json:"probe"`
		Message  string `json:"message"`
		Severity string `json:"severity"`
	}

	runDocument struct {
		ID            string            `json:"id"`
		CreatedAt     time.Time         `json:"createdAt"`
		CompletedAt   *time.Time        `json:"completedAt,omitempty"`
		CreatedBy     string            `json:"createdBy"`
		Settings      model.RunSettings `json:"settings"`
		Status        string            `json:"status"`
		Progress      int               `json:"progress"`
		CurrentProbe  string            `json:"currentProbe"`
		Results       []resultDocument  `json:"results"`
		Issues        []findingDocument `json:"issues"`
		Warnings      []findingDocument `json:"warnings"`
		Metrics       map[string]any    `json:"metrics"`
		OverallHealth string            `json:"overallHealth"`
		DurationMs    *int64            `json:"durationMs,omitempty"`
		Error         string            `json:"error,omitempty"`
	}
)

func toResultDocument(r model.ProbeResult) resultDocument {
	return resultDocument{
		Name:      string(r.Name),
		Status:    string(r.Status),
		Details:   r.Details,
		Metrics:   metricsOrEmpty(r.Metrics),
		Timestamp: r.Timestamp,
	}
}

func (d resultDocument) toDomain() model.ProbeResult {
	return model.ProbeResult{
		Name:      model.ProbeName(d.Name),
		Status:    model.ProbeStatus(d.Status),
		Details:   d.Details,
		Metrics:   metricsOrEmpty(d.Metrics),
		Timestamp: d.Timestamp,
	}
}

func toFindingDocuments(findings []model.Finding) []findingDocument {
	docs := make([]findingDocument, 0, len(findings))
	for _, f := range findings {
		docs = append(docs, findingDocument{Probe: string(f.Probe), Message: f.Message, Severity: string(f.Severity)})
	}

	return docs
}

func toFindings(docs []findingDocument) []model.Finding {
	findings := make([]model.Finding, 0, len(docs))
	for _, d := range docs {
		findings = append(findings, model.Finding{
			Probe:    model.ProbeName(d.Probe),
			Message:  d.Message,
			Severity: model.Severity(d.Severity),
		})
	}

	return findings
}

func toRunDocument(run *model.HealthCheckRun) runDocument {
	results := make([]resultDocument, 0, len(run.Results))
	for _, r := range run.Results {
		results = append(results, toResultDocument(r))
	}

	return runDocument{
		ID:            run.ID.String(),
		CreatedAt:     run.CreatedAt,
		CompletedAt:   run.CompletedAt,
		CreatedBy:     run.CreatedBy,
		Settings:      run.Settings,
		Status:        string(run.Status),
		Progress:      run.Progress,
		CurrentProbe:  string(run.CurrentProbe),
		Results:       results,
		Issues:        toFindingDocuments(run.Issues),
		Warnings:      toFindingDocuments(run.Warnings),
		Metrics:       metricsOrEmpty(run.Metrics),
		OverallHealth: string(run.OverallHealth),
		DurationMs:    run.DurationMs,
		Error:         run.Error,
	}
}

func (d runDocument) toDomain() (*model.HealthCheckRun, error) {
	id, err := model.ParseRunID(d.ID)
	if err != nil {
		return nil, err
	}

	results := make([]model.ProbeResult, 0, len(d.Results))
	for _, r := range d.Results {
		results = append(results, r.toDomain())
	}

	return &model.HealthCheckRun{
		ID:            id,
		CreatedAt:     d.CreatedAt,
		CompletedAt:   d.CompletedAt,
		CreatedBy:     d.CreatedBy,
		Settings:      d.Settings,
		Status:        model.RunStatus(d.Status),
		Progress:      d.Progress,
		CurrentProbe:  model.ProbeName(d.CurrentProbe),
		Results:       results,
		Issues:        toFindings(d.Issues),
		Warnings:      toFindings(d.Warnings),
		Metrics:       metricsOrEmpty(d.Metrics),
		OverallHealth: model.OverallHealth(d.OverallHealth),
		DurationMs:    d.DurationMs,
		Error:         d.Error,
	}, nil
}

func metricsOrEmpty(m map[string]any) model.Metrics {
	if m == nil {
		return model.Metrics{}
	}

	return model.Metrics(m).Clone()
}
