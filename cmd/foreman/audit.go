package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/foremanhq/foreman/internal/config"
)

var auditJSON bool

var auditCmd = &cobra.Command{
	Use:   "audit <task-id>",
	Short: "Show the transition history of a task",
	Long: `Print every recorded state change of a task and its steps,
oldest first. Each row is one audited transition: which entity moved,
from which status to which, and why.

Output formats:
  - Human-readable (default)
  - JSON (--json flag) for scripting, e.g. 'foreman audit <id> --json | jq'`,
	Args: cobra.ExactArgs(1),
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "Output in JSON format")
}

func runAudit(cmd *cobra.Command, args []string) error {
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

	transitions, err := db.ListTransitions(task.ID)
	if err != nil {
		return fmt.Errorf("list transitions: %w", err)
	}

	if auditJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(transitions)
	}

	fmt.Printf("Task %s: %d transitions\n\n", task.ID, len(transitions))
	for _, tr := range transitions {
		from := tr.FromStatus
		if from == "" {
			from = "-"
		}
		fmt.Printf("%s  %-4s  %-9s -> %-9s  %s\n",
			tr.CreatedAt.Local().Format("15:04:05.000"), tr.Entity, from, tr.ToStatus, tr.Detail)
	}
	return nil
}
