package main

import (
	"github.com/spf13/cobra"

	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/runtime"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the diagnostics API",
		Long:  "Serve the public API and, when enabled, the admin probes. Configuration is read from the environment.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// the service installs its own signal handling for graceful shutdown
			return runtime.New().Run()
		},
	}
}
