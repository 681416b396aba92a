package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/foremanhq/foreman/internal/config"
	"github.com/foremanhq/foreman/pkg/models"
)

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Submit a task and watch it execute",
	Long: `Submit a task, stream its lifecycle events, and wait for the
terminal status.

The task is resolved into an ordered plan of tool invocations and
executed step by step. Interrupting with Ctrl-C shuts down
gracefully: progress is already persisted, and a later
'foreman resume' continues from the last recorded state.

Any other pending or interrupted tasks in the store are picked up
alongside the new one.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	input := strings.Join(args, " ")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	eng, db, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nReceived interrupt, shutting down...")
		cancel()
	}()

	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		streamEvents(eng.Events())
	}()

	id, err := eng.Submit(ctx, input)
	if err != nil {
		eng.Stop()
		<-done
		return err
	}
	fmt.Printf("task %s\n", id)

	task, waitErr := eng.Wait(ctx, id)

	if err := eng.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	<-done

	if waitErr != nil {
		if ctx.Err() != nil {
			fmt.Printf("\ninterrupted; run 'foreman resume' to continue task %s\n", id)
			return nil
		}
		return waitErr
	}

	if task.Status == models.TaskStatusFailed {
		return fmt.Errorf("task failed: %s", task.ErrorMessage)
	}
	printOutcome(task)
	return nil
}

// printOutcome summarizes a successfully finished task and echoes the
// final step's result, which is the closest thing a plan has to an
// answer.
func printOutcome(t *models.Task) {
	fmt.Println()
	elapsed := ""
	if t.CompletedAt != nil {
		elapsed = " in " + formatDuration(t.CompletedAt.Sub(t.CreatedAt))
	}
	printStatus("✓", fmt.Sprintf("task %s completed%s", t.ID, elapsed), color.FgGreen)

	if n := len(t.Steps); n > 0 {
		if result := t.Steps[n-1].Result; result != "" {
			fmt.Println()
			fmt.Println(result)
		}
	}
}
