package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/foremanhq/foreman/internal/config"
	"github.com/foremanhq/foreman/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show a task and its steps",
	Long: `Display the current state of a task.

Shows:
  - Lifecycle status and timing
  - The resolved plan classification
  - Every step with its status, retries, and errors`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	steps, err := db.ListSteps(task.ID)
	if err != nil {
		return fmt.Errorf("list steps: %w", err)
	}

	displayTask(task, steps)
	return nil
}

func displayTask(t *models.Task, steps []models.Step) {
	fmt.Printf("Task: %s\n", t.ID)
	fmt.Printf("  Status: %s\n", statusLabel(string(t.Status), 0))
	fmt.Printf("  Input: %q\n", truncate(t.Input, 80))
	fmt.Printf("  Created: %s ago\n", formatDuration(time.Since(t.CreatedAt)))
	if t.CompletedAt != nil {
		fmt.Printf("  Duration: %s\n", formatDuration(t.CompletedAt.Sub(t.CreatedAt)))
	}
	if t.Strategy != nil {
		fmt.Printf("  Plan: %s, %s complexity, tools: %s\n",
			t.Strategy.Category, t.Strategy.Complexity, strings.Join(t.Strategy.RequiredTools, ", "))
	}
	if t.CancelRequested && !t.Status.Terminal() {
		fmt.Println("  Cancel: requested")
	}
	if t.ErrorMessage != "" {
		fmt.Printf("  Error: %s\n", color.RedString(t.ErrorMessage))
	}

	if len(steps) == 0 {
		return
	}

	fmt.Println()
	fmt.Println("Steps:")
	for _, s := range steps {
		line := fmt.Sprintf("  %d. %-12s %s %q",
			s.StepNumber, s.Tool, statusLabel(string(s.Status), 9), truncate(s.Instruction, 60))
		if s.RetryCount > 0 {
			line += fmt.Sprintf(" (retries %d)", s.RetryCount)
		}
		fmt.Println(line)
		if s.Error != "" && s.Status == models.StepStatusFailed {
			fmt.Printf("     %s\n", color.RedString(s.Error))
		}
	}
}
