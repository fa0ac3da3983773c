package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "crew",
	Short: "Multi-agent task crew",
	Long: `Crew decomposes a request into a dependency graph of tasks and executes
them with a pool of specialized agent workers (coder, reviewer, researcher,
tester), coordinating reviews, rework, timeouts, and a shared token budget.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(rolesCmd)
	rootCmd.AddCommand(versionCmd)
}
