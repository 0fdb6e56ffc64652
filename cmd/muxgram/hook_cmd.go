package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/muxgram/muxgram/internal/config"
	"github.com/muxgram/muxgram/internal/logging"
	"github.com/muxgram/muxgram/internal/sessionmap"
	"github.com/muxgram/muxgram/internal/tmux"
)

// hookPayload is the JSON Claude Code pipes to hook commands on stdin.
// Only the fields muxgram needs are decoded; unknown fields are ignored.
type hookPayload struct {
	HookEventName string `json:"hook_event_name"`
	SessionID     string `json:"session_id"`
	CWD           string `json:"cwd"`
}

// hookInput is the merged view of payload and flag overrides.
type hookInput struct {
	Event   string
	Session string
	Workdir string
	Window  string
}

// mergeHookInput overlays explicit flags and the positional event over
// the piped payload. Flags win, then the positional argument, then the
// payload.
func mergeHookInput(p hookPayload, flagEvent, flagSession, flagWorkdir, flagWindow, positionalEvent string) hookInput {
	in := hookInput{
		Event:   flagEvent,
		Session: flagSession,
		Workdir: flagWorkdir,
		Window:  flagWindow,
	}
	if in.Event == "" {
		in.Event = positionalEvent
	}
	if in.Event == "" {
		in.Event = p.HookEventName
	}
	if in.Session == "" {
		in.Session = p.SessionID
	}
	if in.Workdir == "" {
		in.Workdir = p.CWD
	}
	return in
}

// handleHook records a SessionStart or SessionEnd event in the session
// map. Claude Code invokes it from inside a tmux pane; outside tmux
// there is no window to bind and the command exits quietly. The exit
// code is non-zero only when the store write itself fails, so a
// half-configured environment never blocks the assistant.
func handleHook(args []string) {
	fs := flag.NewFlagSet("hook", flag.ExitOnError)
	eventFlag := fs.String("event", "", "SessionStart or SessionEnd (default: from the hook payload)")
	sessionFlag := fs.String("session", "", "session id (default: from the hook payload)")
	workdirFlag := fs.String("workdir", "", "project directory (default: from the hook payload)")
	windowFlag := fs.String("window", "", "tmux window id (default: resolved from $TMUX_PANE)")
	fs.Parse(normalizeArgs(fs, args))

	cfg, _ := config.Load()
	initLogging(cfg, false)
	defer logging.Shutdown()

	// Hook invocations are separate short-lived processes sharing one
	// log file; the event id ties each invocation's lines together.
	log := logging.ForComponent(logging.CompHook).With(
		slog.String("event_id", uuid.NewString()))

	in := mergeHookInput(readHookPayload(), *eventFlag, *sessionFlag, *workdirFlag, *windowFlag, fs.Arg(0))

	switch in.Event {
	case "SessionStart", "SessionEnd":
	default:
		// Some other event found its way into settings.json; nothing to
		// record for it.
		log.Debug("hook_event_ignored", slog.String("event", in.Event))
		return
	}
	if in.Session == "" {
		log.Warn("hook_missing_session", slog.String("event", in.Event))
		return
	}

	label := ""
	if in.Window == "" {
		pane := tmux.CurrentPane()
		if pane == "" {
			log.Debug("hook_outside_tmux", slog.String("event", in.Event))
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		w, err := tmux.NewClient(0).WindowForPane(ctx, pane)
		if err != nil {
			log.Warn("hook_window_resolve_failed",
				slog.String("pane", pane),
				slog.String("error", err.Error()))
			return
		}
		in.Window = w.ID
		label = w.Label
	}

	storePath, err := config.StorePath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "muxgram hook: %v\n", err)
		os.Exit(1)
	}
	historyPath, _ := config.HistoryPath()
	store := sessionmap.NewStore(storePath, historyPath)

	switch in.Event {
	case "SessionStart":
		if err := store.RecordStart(in.Window, label, sessionmap.SessionID(in.Session), in.Workdir); err != nil {
			log.Error("session_start_record_failed",
				slog.String("window", in.Window),
				slog.String("error", err.Error()))
			fmt.Fprintf(os.Stderr, "muxgram hook: %v\n", err)
			os.Exit(1)
		}
		log.Info("session_start_recorded",
			slog.String("window", in.Window),
			slog.String("session", in.Session),
			slog.String("workdir", in.Workdir))
	case "SessionEnd":
		applied, err := store.RecordEnd(in.Window, sessionmap.SessionID(in.Session))
		if err != nil {
			log.Error("session_end_record_failed",
				slog.String("window", in.Window),
				slog.String("error", err.Error()))
			fmt.Fprintf(os.Stderr, "muxgram hook: %v\n", err)
			os.Exit(1)
		}
		if !applied {
			log.Debug("stale_session_end_ignored",
				slog.String("window", in.Window),
				slog.String("session", in.Session))
			return
		}
		log.Info("session_end_recorded",
			slog.String("window", in.Window),
			slog.String("session", in.Session))
	}
}

// readHookPayload parses the piped JSON. When stdin is a terminal the
// read is skipped so manual invocations with flags do not hang.
func readHookPayload() hookPayload {
	var p hookPayload
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return p
	}
	data, err := io.ReadAll(io.LimitReader(os.Stdin, 1<<20))
	if err != nil || len(data) == 0 {
		return p
	}
	_ = json.Unmarshal(data, &p)
	return p
}
