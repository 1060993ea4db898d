package model

import "maps"

type Aggregation struct {
	Issues        []Finding
	Warnings      []Finding
	Metrics       Metrics
	OverallHealth OverallHealth
}

// Aggregate folds probe results into findings, merged metrics and a verdict.
// Metrics are merged in execution order; a later probe overwrites an earlier key.
func Aggregate(results []ProbeResult) Aggregation {
	agg := Aggregation{
		Issues:   make([]Finding, 0),
		Warnings: make([]Finding, 0),
		Metrics:  make(Metrics),
	}

	for _, res := range results {
		switch res.Status {
		case ProbeStatusError:
			agg.Issues = append(agg.Issues, Finding{Probe: res.Name, Message: res.Details, Severity: SeverityHigh})
		case ProbeStatusWarning:
			agg.Warnings = append(agg.Warnings, Finding{Probe: res.Name, Message: res.Details, Severity: SeverityMedium})
		}

		maps.Copy(agg.Metrics, res.Metrics)
	}

	agg.OverallHealth = DecideHealth(len(agg.Issues), len(agg.Warnings))

	return agg
}

// DecideHealth evaluates the verdict table; the first matching row wins.
func DecideHealth(issues, warnings int) OverallHealth {
	switch {
	case issues > 0:
		return OverallHealthCritical
	case warnings > 2:
		return OverallHealthWarning
	case warnings > 0:
		return OverallHealthDegraded
	default:
		return OverallHealthHealthy
	}
}
