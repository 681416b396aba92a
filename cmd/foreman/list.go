package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/foremanhq/foreman/internal/config"
)

var (
	listLimit  int
	listOffset int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent tasks",
	Long:  `List tasks newest first. Use --limit and --offset to page.`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "Maximum number of tasks to show")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "Number of tasks to skip")
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	tasks, err := db.ListTasks(listLimit, listOffset)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	if len(tasks) == 0 {
		fmt.Println("No tasks. Run 'foreman run <task>' to start one.")
		return nil
	}

	fmt.Printf("%-36s  %-9s  %-9s  %s\n", "ID", "STATUS", "AGE", "INPUT")
	for _, t := range tasks {
		age := formatDuration(time.Since(t.CreatedAt))
		fmt.Printf("%-36s  %s  %-9s  %s\n",
			t.ID, statusLabel(string(t.Status), 9), age, truncate(t.Input, 60))
	}
	return nil
}
