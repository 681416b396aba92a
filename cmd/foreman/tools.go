package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/foremanhq/foreman/internal/config"
	"github.com/foremanhq/foreman/internal/tool"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List registered capabilities",
	Long: `List every capability the resolver may bind plan steps to,
with its idempotency class.

The class decides what a retry may do:
  idempotent              retried freely within the tier budget
  side-effecting-unknown  retried only with engine.retry_side_effects
  side-effecting-unsafe   never retried automatically`,
	Args: cobra.NoArgs,
	RunE: runTools,
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	specs := registry.Specs()
	fmt.Printf("%d capabilities registered\n\n", len(specs))
	for _, spec := range specs {
		fmt.Printf("  %-14s %s %s\n", spec.Name, idempotencyLabel(spec.Idempotency), spec.Description)
	}
	return nil
}

func idempotencyLabel(class tool.Idempotency) string {
	padded := fmt.Sprintf("%-23s", string(class))
	switch class {
	case tool.Idempotent:
		return color.GreenString(padded)
	case tool.SideEffectingUnknown:
		return color.YellowString(padded)
	case tool.SideEffectingUnsafe:
		return color.RedString(padded)
	default:
		return padded
	}
}
