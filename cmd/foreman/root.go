package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "foreman",
	Short: "Durable task orchestration engine",
	Long: `Foreman turns a natural-language task into a durable, resumable
plan of tool invocations and executes it step by step.

A submitted task is resolved into an ordered plan, persisted before
anything runs, and driven through a strict lifecycle:
pending -> running -> completed or failed. Every state change is
audited. If the process dies mid-task, the next start picks up
exactly where it left off, counting the interrupted attempt against
the step's retry budget.

Typical session:
  foreman init                  Prepare the project (config, data dir)
  foreman run "your task here"  Submit a task and watch it execute
  foreman status <id>           Inspect a task and its steps
  foreman audit <id>            Full transition history
  foreman resume                Finish tasks interrupted by a crash`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// A .env in the working directory may carry API keys. Missing is fine.
	_ = godotenv.Load()

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(versionCmd)
}
