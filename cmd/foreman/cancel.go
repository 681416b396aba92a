package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/foremanhq/foreman/internal/config"
	"github.com/foremanhq/foreman/internal/orchestrator"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Request cancellation of a task",
	Long: `Set the durable cancel flag and drop a signal file for the
running engine.

The engine honors the request between steps and between retry
attempts; an in-flight attempt finishes first. The flag survives
restarts, so a cancel recorded while no engine is running takes
effect the moment one picks the task up.`,
	Args: cobra.ExactArgs(1),
	RunE: runCancel,
}

func runCancel(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	task, err := db.GetTask(args[0])
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		return fmt.Errorf("task %s not found", args[0])
	}
	if task.Status.Terminal() {
		return fmt.Errorf("task %s already %s", task.ID, task.Status)
	}

	if err := db.RequestCancel(task.ID); err != nil {
		return fmt.Errorf("record cancel request: %w", err)
	}
	if err := orchestrator.WriteCancelSignal(dataDir(cfg), task.ID); err != nil {
		return fmt.Errorf("write cancel signal: %w", err)
	}

	printStatus("✓", fmt.Sprintf("cancellation requested for %s", task.ID), color.FgGreen)
	fmt.Println("the engine honors it at the next step boundary")
	return nil
}
