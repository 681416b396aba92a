package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/foremanhq/foreman/internal/config"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Finish interrupted and queued tasks",
	Long: `Start the engine, pick up every pending or interrupted task,
drive them to a terminal status, and exit.

Recovery is exact: completed steps are never re-executed, and a step
that was mid-attempt when the previous process died resumes with that
attempt counted against its retry budget.`,
	Args: cobra.NoArgs,
	RunE: runResume,
}

func runResume(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	unfinished, err := db.ListInterrupted()
	if err != nil {
		return fmt.Errorf("list unfinished tasks: %w", err)
	}
	if len(unfinished) == 0 {
		fmt.Println("Nothing to resume.")
		return nil
	}
	fmt.Printf("Resuming %d task(s)...\n", len(unfinished))

	eng, err := newEngine(cfg, db)
	if err != nil {
		return err
	}

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

	drainErr := eng.Drain(ctx)

	if err := eng.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	<-done

	if drainErr != nil {
		if ctx.Err() != nil {
			fmt.Println("\ninterrupted; run 'foreman resume' again to continue")
			return nil
		}
		return drainErr
	}

	fmt.Println()
	printStatus("✓", fmt.Sprintf("%d task(s) driven to a terminal status", len(unfinished)), color.FgGreen)
	return nil
}
