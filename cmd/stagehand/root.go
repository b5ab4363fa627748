package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stagehand",
	Short: "Agent workflow orchestrator",
	Long: `Stagehand orchestrates AI agent workflows as dependency graphs,
schedules future and recurring work, and delegates large tasks across
sub-agents.

Core capabilities:
- Runs task graphs with priority ordering and bounded concurrency
- Skips downstream work when a dependency fails, without stopping
  independent branches
- Persists graphs and scheduled items in SQLite
- Executes scheduled tasks, graphs, and single nodes via a daemon
- Splits large prompts across sub-agents with auto, manual, or
  sequential delegation`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}
