package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/runtime"
)

// Exit codes of the run command.
const (
	exitFailure   = 1
	exitUnhealthy = 2
	exitRunFailed = 3
)

var healthSeverity = map[model.OverallHealth]int{
	model.OverallHealthHealthy:  0,
	model.OverallHealthDegraded: 1,
	model.OverallHealthWarning:  2,
	model.OverallHealthCritical: 3,
}

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}

	return exitFailure
}

func newRunCommand() *cobra.Command {
	var (
		only      []string
		output    string
		noMetrics bool
		failOn    string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one health check run in-process and print its report",
		Example: "  svc-diagnostics run\n" +
			"  svc-diagnostics run --only database,logs --output json --fail-on warning",
		Args: cobra.NoArgs,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			if output != outputYAML && output != outputJSON {
				return fmt.Errorf("--output must be %q or %q", outputYAML, outputJSON)
			}

			if _, ok := healthSeverity[model.OverallHealth(failOn)]; !ok && failOn != "none" {
				return fmt.Errorf("--fail-on must be one of none, degraded, warning, critical")
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := runSettings(only, !noMetrics)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			run, err := runtime.New(runtime.WithLogOutput(os.Stderr)).RunOnce(ctx, settings)
			if err != nil {
				return err
			}

			if err := writeReport(cmd.OutOrStdout(), output, newReport(run)); err != nil {
				return err
			}

			return verdictError(run, failOn)
		},
	}

	cmd.Flags().StringSliceVar(&only, "only", nil, "Run only the listed probes, e.g. database,logs")
	cmd.Flags().StringVarP(&output, "output", "o", outputYAML, "Report format: yaml or json")
	cmd.Flags().BoolVar(&noMetrics, "no-metrics", false, "Omit probe metrics from the run")
	cmd.Flags().StringVar(&failOn, "fail-on", string(model.OverallHealthCritical), "Exit non-zero at or above this verdict: none, degraded, warning, critical")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Interrupt the run after this duration")

	return cmd
}

func runSettings(only []string, includeMetrics bool) (model.RunSettings, error) {
	if len(only) == 0 {
		settings := model.DefaultRunSettings()
		settings.IncludeMetrics = includeMetrics

		return settings, nil
	}

	names := make([]model.ProbeName, 0, len(only))

	for _, raw := range only {
		name, err := model.ParseProbeName(strings.TrimSpace(raw))
		if err != nil {
			return model.RunSettings{}, fmt.Errorf("--only: %w", err)
		}

		names = append(names, name)
	}

	settings := model.Only(names...)
	settings.IncludeMetrics = includeMetrics

	return settings, nil
}

func verdictError(run *model.HealthCheckRun, failOn string) error {
	if run.Status == model.RunStatusFailed {
		return &exitError{code: exitRunFailed, err: fmt.Errorf("run %s failed: %s", run.ID, run.Error)}
	}

	threshold, ok := healthSeverity[model.OverallHealth(failOn)]
	if !ok {
		return nil
	}

	if healthSeverity[run.OverallHealth] >= threshold {
		return &exitError{
			code: exitUnhealthy,
			err:  fmt.Errorf("run %s finished %s", run.ID, run.OverallHealth),
		}
	}

	return nil
}
