package tmux

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/muxgram/muxgram/internal/logging"
)

// ErrQueryFailed wraps any failure to enumerate windows. Callers keep
// working from their previous window list when they see it.
var ErrQueryFailed = errors.New("tmux query failed")

const defaultTimeout = 5 * time.Second

// Window is one tmux window as the monitor sees it: the server-assigned
// id (@N, stable for the window's lifetime) and the user-visible name.
type Window struct {
	ID    string
	Label string
}

// Client runs tmux commands with per-call timeouts, retries for
// read-only queries, and singleflight deduplication of concurrent
// window listings.
type Client struct {
	runner  Runner
	timeout time.Duration
	backoff []time.Duration
	listSf  singleflight.Group
	log     *slog.Logger
}

func NewClient(timeout time.Duration) *Client {
	return NewClientWithRunner(timeout, OSRunner{})
}

func NewClientWithRunner(timeout time.Duration, r Runner) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		runner:  r,
		timeout: timeout,
		backoff: []time.Duration{100 * time.Millisecond, 300 * time.Millisecond},
		log:     logging.ForComponent(logging.CompTmux),
	}
}

// run executes one tmux command with the client timeout. Read-only
// queries are retried on transient failure; anything that mutates server
// state gets exactly one attempt.
func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	maxAttempts := 1
	if isRetryable(args) {
		maxAttempts += len(c.backoff)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		runCtx, cancel := context.WithTimeout(ctx, c.timeout)
		out, err := c.runner.Run(runCtx, args...)
		cancel()
		if err == nil {
			return out, nil
		}
		lastErr = err

		if attempt < maxAttempts {
			c.log.Debug("tmux_retry",
				slog.String("command", args[0]),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff[attempt-1]):
			}
		}
	}
	return nil, lastErr
}

// ListWindows enumerates every window across all tmux sessions.
// Concurrent callers share one subprocess via singleflight.
func (c *Client) ListWindows(ctx context.Context) ([]Window, error) {
	v, err, _ := c.listSf.Do("list-windows", func() (interface{}, error) {
		out, err := c.run(ctx, "list-windows", "-a", "-F", "#{window_id}\t#{window_name}")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
		}
		return parseWindows(string(out)), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Window), nil
}

func parseWindows(out string) []Window {
	var windows []Window
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		w := Window{ID: parts[0]}
		if len(parts) == 2 {
			w.Label = parts[1]
		}
		if !strings.HasPrefix(w.ID, "@") {
			continue
		}
		windows = append(windows, w)
	}
	return windows
}

// WindowForPane resolves the window containing the given pane. Hook
// processes use this with $TMUX_PANE to find their own window.
func (c *Client) WindowForPane(ctx context.Context, paneID string) (Window, error) {
	if paneID == "" {
		return Window{}, fmt.Errorf("empty pane id")
	}
	out, err := c.run(ctx, "display-message", "-p", "-t", paneID, "#{window_id}\t#{window_name}")
	if err != nil {
		return Window{}, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	windows := parseWindows(string(out))
	if len(windows) == 0 {
		return Window{}, fmt.Errorf("%w: pane %s not found", ErrQueryFailed, paneID)
	}
	return windows[0], nil
}

const (
	sendChunkSize  = 4096
	sendChunkDelay = 50 * time.Millisecond
	sendEnterDelay = 100 * time.Millisecond
)

// SendText types literal text into the window's active pane and presses
// Enter. Text above 4KB is split at newline boundaries to stay inside
// tmux buffer limits. Enter goes as a separate call after a short delay:
// tmux 3.2+ wraps literal sends in bracketed paste markers, and TUI apps
// swallow an Enter that arrives in the same PTY buffer as the paste-end
// marker.
func (c *Client) SendText(ctx context.Context, windowID, text string) error {
	if windowID == "" {
		return fmt.Errorf("empty window id")
	}
	for i, chunk := range splitChunks(text, sendChunkSize) {
		if i > 0 {
			time.Sleep(sendChunkDelay)
		}
		// -l keeps tmux from interpreting the text as key names.
		if _, err := c.run(ctx, "send-keys", "-l", "-t", windowID, "--", chunk); err != nil {
			return fmt.Errorf("send text to %s: %w", windowID, err)
		}
	}
	time.Sleep(sendEnterDelay)
	if _, err := c.run(ctx, "send-keys", "-t", windowID, "Enter"); err != nil {
		return fmt.Errorf("send enter to %s: %w", windowID, err)
	}
	return nil
}

// splitChunks splits text into pieces of at most maxSize bytes,
// preferring newline boundaries. A single oversized line is hard-split.
func splitChunks(text string, maxSize int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= maxSize {
		return []string{text}
	}

	var chunks []string
	remaining := text
	for len(remaining) > 0 {
		if len(remaining) <= maxSize {
			chunks = append(chunks, remaining)
			break
		}
		cut := strings.LastIndex(remaining[:maxSize], "\n")
		if cut > 0 {
			chunks = append(chunks, remaining[:cut+1])
			remaining = remaining[cut+1:]
		} else {
			chunks = append(chunks, remaining[:maxSize])
			remaining = remaining[maxSize:]
		}
	}
	return chunks
}

// InsideTmux reports whether the current process runs inside a tmux
// client.
func InsideTmux() bool {
	return os.Getenv("TMUX") != ""
}

// CurrentPane returns the pane id tmux exported into this process's
// environment, or empty when not running inside tmux.
func CurrentPane() string {
	return os.Getenv("TMUX_PANE")
}

// IsAvailable checks that the tmux binary is installed and answers.
func IsAvailable() error {
	if _, err := (OSRunner{}).Run(context.Background(), "-V"); err != nil {
		return fmt.Errorf("tmux not found or not working: %w", err)
	}
	return nil
}
