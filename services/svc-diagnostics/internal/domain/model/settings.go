package model

type RunSettings struct {
	CheckDatabase       bool `json:"checkDatabase"`
	CheckAuthentication bool `json:"checkAuthentication"`
	CheckStorage        bool `json:"checkStorage"`
	CheckPerformance    bool `json:"checkPerformance"`
	CheckSecurity       bool `json:"checkSecurity"`
	CheckBackups        bool `json:"checkBackups"`
	CheckLogs           bool `json:"checkLogs"`
	IncludeMetrics      bool `json:"includeMetrics"`
}

// DefaultRunSettings enables every probe.
func DefaultRunSettings() RunSettings {
	return RunSettings{
		CheckDatabase:       true,
		CheckAuthentication: true,
		CheckStorage:        true,
		CheckPerformance:    true,
		CheckSecurity:       true,
		CheckBackups:        true,
		CheckLogs:           true,
		IncludeMetrics:      true,
	}
}

// Enabled reports whether the named probe is switched on.
func (s RunSettings) Enabled(name ProbeName) bool {
	switch name {
	case ProbeDatabase:
		return s.CheckDatabase
	case ProbeAuthentication:
		return s.CheckAuthentication
	case ProbeStorage:
		return s.CheckStorage
	case ProbePerformance:
		return s.CheckPerformance
	case ProbeSecurity:
		return s.CheckSecurity
	case ProbeBackups:
		return s.CheckBackups
	case ProbeLogs:
		return s.CheckLogs
	default:
		return false
	}
}

// Only returns settings enabling exactly the given probes. Metrics stay included.
func Only(names ...ProbeName) RunSettings {
	s := RunSettings{IncludeMetrics: true}

	for _, name := range names {
		switch name {
		case ProbeDatabase:
			s.CheckDatabase = true
		case ProbeAuthentication:
			s.CheckAuthentication = true
		case ProbeStorage:
			s.CheckStorage = true
		case ProbePerformance:
			s.CheckPerformance = true
		case ProbeSecurity:
			s.CheckSecurity = true
		case ProbeBackups:
			s.CheckBackups = true
		case ProbeLogs:
			s.CheckLogs = true
		}
	}

	return s
}

// EnabledProbes lists the enabled probes in canonical order.
func (s RunSettings) EnabledProbes() []ProbeName {
	names := make([]ProbeName, 0, len(CanonicalProbeOrder))

	for _, name := range CanonicalProbeOrder {
		if s.Enabled(name) {
			names = append(names, name)
		}
	}

	return names
}
