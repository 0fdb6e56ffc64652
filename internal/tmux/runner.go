package tmux

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes a tmux command and returns its stdout. Swappable so
// tests can script tmux behavior without a server.
type Runner interface {
	Run(ctx context.Context, args ...string) ([]byte, error)
}

// OSRunner invokes the real tmux binary.
type OSRunner struct{}

func (OSRunner) Run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "tmux", args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("tmux %s: %w: %s", args[0], err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("tmux %s: %w", args[0], err)
	}
	return out, nil
}

// isRetryable reports whether a tmux subcommand is safe to re-run after a
// transient failure. Only read-only queries qualify; send-keys must never
// be retried or text could arrive twice.
func isRetryable(args []string) bool {
	if len(args) == 0 {
		return false
	}
	switch args[0] {
	case "list-windows", "list-sessions", "list-panes", "display-message", "show-options", "show-environment":
		return true
	default:
		return false
	}
}
