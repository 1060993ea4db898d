package model

import (
	"maps"
	"time"
)

type (
	ProbeName string

	ProbeStatus string

	// Metrics values are numbers or strings.
	Metrics map[string]any

	ProbeResult struct {
		Name      ProbeName
		Status    ProbeStatus
		Details   string
		Metrics   Metrics
		Timestamp time.Time
	}

	Severity string

	Finding struct {
		Probe    ProbeName
		Message  string
		Severity Severity
	}
)

const (
	ProbeDatabase       ProbeName = "database"
	ProbeAuthentication ProbeName = "authentication"
	ProbeStorage        ProbeName = "storage"
	ProbePerformance    ProbeName = "performance"
	ProbeSecurity       ProbeName = "security"
	ProbeBackups        ProbeName = "backups"
	ProbeLogs           ProbeName = "logs"

	ProbeStatusHealthy ProbeStatus = "healthy"
	ProbeStatusWarning ProbeStatus = "warning"
	ProbeStatusError   ProbeStatus = "error"

	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// CanonicalProbeOrder is the fixed execution order of the probe battery.
var CanonicalProbeOrder = []ProbeName{
	ProbeDatabase,
	ProbeAuthentication,
	ProbeStorage,
	ProbePerformance,
	ProbeSecurity,
	ProbeBackups,
	ProbeLogs,
}

func ParseProbeName(s string) (ProbeName, error) {
	for _, name := range CanonicalProbeOrder {
		if string(name) == s {
			return name, nil
		}
	}

	return "", ErrUnknownProbe
}

func (s ProbeStatus) IsValid() bool {
	switch s {
	case ProbeStatusHealthy, ProbeStatusWarning, ProbeStatusError:
		return true
	default:
		return false
	}
}

func NewProbeResult(name ProbeName, status ProbeStatus, details string, metrics Metrics) ProbeResult {
	if metrics == nil {
		metrics = Metrics{}
	}

	return ProbeResult{
		Name:      name,
		Status:    status,
		Details:   details,
		Metrics:   metrics,
		Timestamp: time.Now().UTC(),
	}
}

func (p ProbeResult) Clone() ProbeResult {
	p.Metrics = p.Metrics.Clone()

	return p
}

func (m Metrics) Clone() Metrics {
	if m == nil {
		return Metrics{}
	}

	return maps.Clone(m)
}
