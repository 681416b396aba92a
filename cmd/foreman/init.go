package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/foremanhq/foreman/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a Foreman project",
	Long: `Initialize a directory for use with Foreman.

This command sets up everything needed to run tasks:
  - Creates the .foreman data directory (database, logs, signals)
  - Creates a .foreman.yaml configuration template
  - Adds data-dir entries to .gitignore when the directory is a git repo
  - Checks that a reasoning API key is available

The directory argument is optional and defaults to the current
directory.

Examples:
  foreman init              # Initialize current directory
  foreman init ./myproject  # Initialize specific directory
  foreman init --force      # Reinitialize even if already set up`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize even if already set up")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing Foreman in %s...\n\n", absPath)

	foremanDir := filepath.Join(absPath, ".foreman")
	if _, err := os.Stat(foremanDir); err == nil && !initForce {
		fmt.Println("Directory already initialized. Use --force to reinitialize.")
		return nil
	}

	for _, sub := range []string{"logs", "signals"} {
		if err := os.MkdirAll(filepath.Join(foremanDir, sub), 0755); err != nil {
			return fmt.Errorf("create .foreman/%s directory: %w", sub, err)
		}
	}
	printStatus("✓", "Created .foreman directory structure", color.FgGreen)

	created, err := createProjectConfig(absPath)
	if err != nil {
		return fmt.Errorf("create project config: %w", err)
	}
	if created {
		printStatus("✓", "Created .foreman.yaml template", color.FgGreen)
	} else {
		printStatus("✓", ".foreman.yaml already exists", color.FgGreen)
	}

	if _, err := os.Stat(filepath.Join(absPath, ".git")); err == nil {
		if err := updateGitignore(absPath); err != nil {
			return fmt.Errorf("update .gitignore: %w", err)
		}
		printStatus("✓", "Updated .gitignore with Foreman entries", color.FgGreen)
	}

	key, keyErr := config.AnthropicKey(nil)
	switch {
	case keyErr != nil:
		printStatus("⚠", "ANTHROPIC_API_KEY not set (you can set it later)", color.FgYellow)
	case config.ValidateAnthropicKey(key) != nil:
		printStatus("⚠", "ANTHROPIC_API_KEY is set but looks malformed", color.FgYellow)
	default:
		printStatus("✓", "ANTHROPIC_API_KEY is set", color.FgGreen)
	}

	fmt.Printf("\n%s Foreman initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	if keyErr != nil {
		fmt.Println("  1. Set your API key:")
		fmt.Println("     export ANTHROPIC_API_KEY=your-key-here")
		fmt.Println()
	}
	fmt.Println("  2. Run a task:")
	fmt.Println("     foreman run \"your task here\"")
	fmt.Println()
	fmt.Println("  3. Learn more:")
	fmt.Println("     foreman --help")

	return nil
}

const projectConfigTemplate = `# Foreman project configuration.
# Values here override ~/.config/foreman/config.yaml.

reasoning:
  provider: anthropic # anthropic or openai
  # model: claude-sonnet-4-20250514
  timeout: 30s

engine:
  max_concurrent_tasks: 4
  # Retrying a side-effecting-unknown capability may repeat its effect.
  retry_side_effects: false

tiers:
  low:
    max_retries: 1
    step_timeout: 30s
  medium:
    max_retries: 2
    step_timeout: 60s
  high:
    max_retries: 3
    step_timeout: 120s

workspace:
  dir: .
  data_dir: .foreman

# Extra paths the file tools must never write to or delete. These add
# to the built-in policy (.env, keys, certs, .git, and friends).
# protected:
#   patterns:
#     - "deploy/**"
#   keywords:
#     - "prod"
#   file_types:
#     - ".tfstate"
`

// createProjectConfig writes the .foreman.yaml template. An existing
// file is left alone.
func createProjectConfig(repoPath string) (bool, error) {
	configPath := filepath.Join(repoPath, ".foreman.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return false, nil
	}
	if err := os.WriteFile(configPath, []byte(projectConfigTemplate), 0644); err != nil {
		return false, err
	}
	return true, nil
}

// updateGitignore adds Foreman entries to .gitignore if not present
func updateGitignore(repoPath string) error {
	gitignorePath := filepath.Join(repoPath, ".gitignore")

	var existing string
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existing = string(data)
	}

	entries := []string{".foreman/", "foreman"}
	var missing []string
	for _, entry := range entries {
		if !strings.Contains(existing, entry) {
			missing = append(missing, entry)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	f, err := os.OpenFile(gitignorePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if existing != "" && !strings.HasSuffix(existing, "\n") {
		if _, err := f.WriteString("\n"); err != nil {
			return err
		}
	}
	if _, err := f.WriteString("\n# Foreman\n"); err != nil {
		return err
	}
	for _, entry := range missing {
		if _, err := f.WriteString(entry + "\n"); err != nil {
			return err
		}
	}
	return nil
}
