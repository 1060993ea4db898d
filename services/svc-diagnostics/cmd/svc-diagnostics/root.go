package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "svc-diagnostics",
		Short: "Diagnostic health-check orchestrator",
		Long: "svc-diagnostics runs batteries of health probes against a monitored system\n" +
			"and records their progress and verdict as health check runs.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCommand())
	root.AddCommand(newRunCommand())
	root.AddCommand(newVersionCommand())

	return root
}
