package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/foremanhq/foreman/internal/config"
	"github.com/foremanhq/foreman/pkg/models"
)

var submitCmd = &cobra.Command{
	Use:   "submit <task>",
	Short: "Enqueue a task without running it",
	Long: `Record a task in the store and print its id on stdout.

The task stays pending until an engine picks it up: a 'foreman run'
in another terminal, or the next 'foreman resume'. No API key is
needed to enqueue.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSubmit,
}

func runSubmit(cmd *cobra.Command, args []string) error {
	input := strings.TrimSpace(strings.Join(args, " "))
	if input == "" {
		return fmt.Errorf("task input is empty")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	t := &models.Task{
		ID:        uuid.New().String(),
		Input:     input,
		Status:    models.TaskStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.CreateTask(t); err != nil {
		return fmt.Errorf("persist task: %w", err)
	}

	fmt.Println(t.ID)
	fmt.Fprintln(os.Stderr, "queued; 'foreman resume' or a running engine will pick it up")
	return nil
}
