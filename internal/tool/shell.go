package tool

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const maxShellOutputBytes = 64 << 10

// DefaultShellAllowlist lists the commands shell_exec runs out of the box.
// Everything else is refused before any process is spawned.
var DefaultShellAllowlist = []string{"ls", "cat", "echo", "pwd", "date", "whoami", "head", "tail", "wc"}

// shellRunner executes allowlisted commands inside the workspace.
type shellRunner struct {
	root  string
	allow map[string]bool
}

func newShellRunner(root string, allow []string) *shellRunner {
	m := make(map[string]bool, len(allow))
	for _, cmd := range allow {
		m[cmd] = true
	}
	return &shellRunner{root: root, allow: m}
}

func (s *shellRunner) run(ctx context.Context, inv Invocation) (string, error) {
	command, err := stringArg(inv.Args, "command")
	if err != nil {
		return "", err
	}
	if strings.ContainsAny(command, "|&;<>`$") {
		return "", Terminal(fmt.Errorf("command contains shell metacharacters: %s", command))
	}

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return "", Terminal(fmt.Errorf("empty command"))
	}
	if !s.allow[parts[0]] {
		return "", Terminal(fmt.Errorf("command %s is not allowlisted", parts[0]))
	}

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Dir = s.root
	out, err := cmd.CombinedOutput()
	if len(out) > maxShellOutputBytes {
		out = append(out[:maxShellOutputBytes], []byte("\n[truncated]")...)
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil {
		return "", fmt.Errorf("command %s failed: %v: %s", parts[0], err, strings.TrimSpace(string(out)))
	}
	return strings.TrimRight(string(out), "\n"), nil
}
