package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
	"github.com/stretchr/testify/require"
)

func TestSummarizeReadiness(t *testing.T) {
	t.Parallel()

	up := model.DependencyCheck{Status: model.DependencyStatusUp}
	down := model.DependencyCheck{Status: model.DependencyStatusDown}

	cases := []struct {
		name     string
		checks   map[string]model.DependencyCheck
		expected model.HealthStatus
	}{
		{name: "no dependencies", checks: map[string]model.DependencyCheck{}, expected: model.HealthStatusOK},
		{name: "all up", checks: map[string]model.DependencyCheck{"run_store": up, "cache": up}, expected: model.HealthStatusOK},
		{name: "optional down", checks: map[string]model.DependencyCheck{"run_store": up, "cache": down}, expected: model.HealthStatusDegraded},
		{name: "critical down", checks: map[string]model.DependencyCheck{"run_store": down, "cache": up}, expected: model.HealthStatusDown},
		{name: "critical down wins over optional", checks: map[string]model.DependencyCheck{"run_store": down, "cache": down, "monitored_store": down}, expected: model.HealthStatusDown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.expected, model.SummarizeReadiness(tc.checks, "run_store"))
		})
	}
}

func TestObserveDependency(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()

	ok := model.ObserveDependency(nil, 1500*time.Microsecond, now)
	require.Equal(t, model.DependencyStatusUp, ok.Status)
	require.Equal(t, uint64(1), ok.LatencyMs)
	require.Empty(t, ok.Error)
	require.Equal(t, now, ok.LastChecked)

	failed := model.ObserveDependency(errors.New("connection refused"), time.Millisecond, now)
	require.Equal(t, model.DependencyStatusDown, failed.Status)
	require.Equal(t, "connection refused", failed.Error)
}
