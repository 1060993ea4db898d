package model

import "time"

type (
	HealthStatus string

	DependencyStatus string

	DependencyCheck struct {
		Status      DependencyStatus
		LatencyMs   uint64
		Message     string
		LastChecked time.Time
		Error       string
	}

	LivenessReport struct {
		Status    HealthStatus
		Timestamp time.Time
		Version   string
	}

	ReadinessReport struct {
		Status    HealthStatus
		Timestamp time.Time
		Version   string
		Checks    map[string]DependencyCheck
	}
)

const (
	HealthStatusOK       HealthStatus = "ok"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusDown     HealthStatus = "down"

	DependencyStatusUp   DependencyStatus = "up"
	DependencyStatusDown DependencyStatus = "down"
)

// ObserveDependency turns the outcome of one dependency check into its report entry.
func ObserveDependency(err error, latency time.Duration, checkedAt time.Time) DependencyCheck {
	check := DependencyCheck{
		Status:      DependencyStatusUp,
		Message:     "ok",
		LatencyMs:   uint64(latency.Milliseconds()),
		LastChecked: checkedAt,
	}

	if err != nil {
		check.Status = DependencyStatusDown
		check.Message = "unreachable"
		check.Error = err.Error()
	}

	return check
}

// SummarizeReadiness is down when the critical dependency is down and degraded
// when any other one is.
func SummarizeReadiness(checks map[string]DependencyCheck, critical string) HealthStatus {
	status := HealthStatusOK

	for name, check := range checks {
		if check.Status == DependencyStatusUp {
			continue
		}

		if name == critical {
			return HealthStatusDown
		}

		status = HealthStatusDegraded
	}

	return status
}
