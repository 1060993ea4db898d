package model

import (
	"time"

	"github.com/google/uuid"
)

type (
	RunStatus string

	OverallHealth string

	RunID struct {
		uuid.UUID
	}

	HealthCheckRun struct {
		ID            RunID
		CreatedAt     time.Time
		CompletedAt   *time.Time
		CreatedBy     string
		Settings      RunSettings
		Status        RunStatus
		Progress      int
		CurrentProbe  ProbeName
		Results       []ProbeResult
		Issues        []Finding
		Warnings      []Finding
		Metrics       Metrics
		OverallHealth OverallHealth
		DurationMs    *int64
		Error         string
	}

	// RunUpdate is a partial update of a run record. Nil fields are left untouched.
	RunUpdate struct {
		Status        *RunStatus
		Progress      *int
		CurrentProbe  *ProbeName
		AppendResult  *ProbeResult
		Issues        []Finding
		Warnings      []Finding
		Metrics       Metrics
		OverallHealth *OverallHealth
		CompletedAt   *time.Time
		DurationMs    *int64
		Error         *string
	}
)

const (
	RunStatusPending    RunStatus = "pending"
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"

	OverallHealthUnknown  OverallHealth = "unknown"
	OverallHealthHealthy  OverallHealth = "healthy"
	OverallHealthDegraded OverallHealth = "degraded"
	OverallHealthWarning  OverallHealth = "warning"
	OverallHealthCritical OverallHealth = "critical"

	DefaultListLimit = 20
	MaxListLimit     = 100
)

func NewRunID() RunID {
	return RunID{UUID: uuid.Must(uuid.NewV7())}
}

func ParseRunID(s string) (RunID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return RunID{}, ErrInvalidRunID
	}

	return RunID{UUID: id}, nil
}

func (r RunID) String() string {
	return r.UUID.String()
}

func (r RunID) IsZero() bool {
	return r.UUID == uuid.Nil
}

func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

func NewHealthCheckRun(settings RunSettings, createdBy string) *HealthCheckRun {
	return &HealthCheckRun{
		ID:            NewRunID(),
		CreatedAt:     time.Now().UTC(),
		CreatedBy:     createdBy,
		Settings:      settings,
		Status:        RunStatusPending,
		Results:       make([]ProbeResult, 0),
		Issues:        make([]Finding, 0),
		Warnings:      make([]Finding, 0),
		Metrics:       make(Metrics),
		OverallHealth: OverallHealthUnknown,
	}
}

// Apply merges the update into the run. Terminal runs are left untouched and
// ErrRunTerminal is returned.
func (r *HealthCheckRun) Apply(u RunUpdate) error {
	if r.Status.IsTerminal() {
		return ErrRunTerminal
	}

	if u.Status != nil {
		r.Status = *u.Status
	}

	if u.Progress != nil {
		r.Progress = *u.Progress
	}

	if u.CurrentProbe != nil {
		r.CurrentProbe = *u.CurrentProbe
	}

	if u.AppendResult != nil {
		r.Results = append(r.Results, u.AppendResult.Clone())
	}

	if u.Issues != nil {
		r.Issues = append([]Finding(nil), u.Issues...)
	}

	if u.Warnings != nil {
		r.Warnings = append([]Finding(nil), u.Warnings...)
	}

	if u.Metrics != nil {
		r.Metrics = u.Metrics.Clone()
	}

	if u.OverallHealth != nil {
		r.OverallHealth = *u.OverallHealth
	}

	if u.CompletedAt != nil {
		completedAt := *u.CompletedAt
		r.CompletedAt = &completedAt
	}

	if u.DurationMs != nil {
		durationMs := *u.DurationMs
		r.DurationMs = &durationMs
	}

	if u.Error != nil {
		r.Error = *u.Error
	}

	return nil
}

// Clone returns a deep copy so readers never share slices or maps with the writer.
func (r *HealthCheckRun) Clone() *HealthCheckRun {
	if r == nil {
		return nil
	}

	c := *r

	c.Results = make([]ProbeResult, 0, len(r.Results))
	for _, res := range r.Results {
		c.Results = append(c.Results, res.Clone())
	}

	c.Issues = append(make([]Finding, 0, len(r.Issues)), r.Issues...)
	c.Warnings = append(make([]Finding, 0, len(r.Warnings)), r.Warnings...)
	c.Metrics = r.Metrics.Clone()

	if r.CompletedAt != nil {
		completedAt := *r.CompletedAt
		c.CompletedAt = &completedAt
	}

	if r.DurationMs != nil {
		durationMs := *r.DurationMs
		c.DurationMs = &durationMs
	}

	return &c
}

// StripMetrics drops metric payloads for runs started with includeMetrics disabled.
func (u RunUpdate) StripMetrics() RunUpdate {
	if u.AppendResult != nil {
		res := u.AppendResult.Clone()
		res.Metrics = Metrics{}
		u.AppendResult = &res
	}

	if u.Metrics != nil {
		u.Metrics = Metrics{}
	}

	return u
}

func Ptr[T any](v T) *T {
	return &v
}
