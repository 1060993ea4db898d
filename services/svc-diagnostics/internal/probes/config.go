package probes

import "time"

// Config holds the thresholds each probe applies to its own signals.
type Config struct {
	InactivityWindow time.Duration

	StorageSoftLimitBytes int64

	PerformanceSamples int
	LatencyWarning     time.Duration
	LatencyError       time.Duration

	RequiredPolicies []string

	BackupWindow      time.Duration
	BackupStaleAfter  time.Duration
	BackupWarningRate float64
	BackupErrorRate   float64

	LogWindow                 time.Duration
	LogWarningRate            float64
	LogErrorRate              float64
	AuthErrorClusterThreshold int64
}

func DefaultConfig() Config {
	return Config{
		InactivityWindow:          7 * 24 * time.Hour,
		StorageSoftLimitBytes:     1 << 30,
		PerformanceSamples:        3,
		LatencyWarning:            1000 * time.Millisecond,
		LatencyError:              2000 * time.Millisecond,
		RequiredPolicies:          []string{"password", "session", "access_control"},
		BackupWindow:              48 * time.Hour,
		BackupStaleAfter:          24 * time.Hour,
		BackupWarningRate:         90,
		BackupErrorRate:           50,
		LogWindow:                 24 * time.Hour,
		LogWarningRate:            5,
		LogErrorRate:              20,
		AuthErrorClusterThreshold: 10,
	}
}
