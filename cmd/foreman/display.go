package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/foremanhq/foreman/internal/orchestrator"
	"github.com/foremanhq/foreman/pkg/models"
)

// printStatus prints a colorized status line with a symbol
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

// statusLabel renders a task or step status in its conventional color.
// The value is padded before coloring so escape codes do not break
// column alignment.
func statusLabel(status string, width int) string {
	padded := fmt.Sprintf("%-*s", width, status)
	switch status {
	case string(models.TaskStatusCompleted):
		return color.GreenString(padded)
	case string(models.TaskStatusFailed):
		return color.RedString(padded)
	case string(models.TaskStatusRunning):
		return color.YellowString(padded)
	default:
		return padded
	}
}

// streamEvents prints engine events as they arrive until the channel
// closes. On a terminal each line gets a colored symbol; when piped,
// lines are timestamped instead.
func streamEvents(events <-chan orchestrator.Event) {
	tty := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	for ev := range events {
		if tty {
			fmt.Printf("%s %s\n", eventSymbol(ev.Type), eventLine(ev))
		} else {
			fmt.Printf("%s %s\n", ev.Timestamp.Format(time.RFC3339), eventLine(ev))
		}
	}
}

func eventSymbol(t orchestrator.EventType) string {
	switch t {
	case orchestrator.EventStepCompleted, orchestrator.EventTaskCompleted:
		return color.GreenString("✓")
	case orchestrator.EventStepFailed, orchestrator.EventTaskFailed:
		return color.RedString("✗")
	case orchestrator.EventStepRetrying, orchestrator.EventTaskCancelled:
		return color.YellowString("⚠")
	default:
		return color.CyanString("→")
	}
}

func eventLine(ev orchestrator.Event) string {
	var line string
	switch {
	case ev.StepNumber > 0 && ev.Tool != "":
		line = fmt.Sprintf("[%s] step %d (%s)", ev.Type, ev.StepNumber, ev.Tool)
	case ev.StepNumber > 0:
		line = fmt.Sprintf("[%s] step %d", ev.Type, ev.StepNumber)
	default:
		line = fmt.Sprintf("[%s]", ev.Type)
	}
	if ev.Message != "" {
		line += ": " + ev.Message
	}
	return line
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		if s > 0 {
			return fmt.Sprintf("%dm%ds", m, s)
		}
		return fmt.Sprintf("%dm", m)
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}

// truncate shortens s for table display.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
