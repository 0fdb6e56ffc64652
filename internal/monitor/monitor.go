// Package monitor implements the observation loop: every tick it lists
// tmux windows, loads the session map, reads new transcript content for
// each bound window, and pushes what it finds into a Sink. All relay
// position state (cursors) lives in memory; a restart re-baselines from
// the current transcripts instead of replaying old content.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/muxgram/muxgram/internal/logging"
	"github.com/muxgram/muxgram/internal/sessionmap"
	"github.com/muxgram/muxgram/internal/tmux"
	"github.com/muxgram/muxgram/internal/transcript"
)

var monLog = logging.ForComponent(logging.CompMonitor)

const (
	defaultPollInterval     = 2 * time.Second
	defaultFailureThreshold = 5
)

// cursor is the monitor's in-memory relay position for one window.
type cursor struct {
	sessionID sessionmap.SessionID
	marker    int
	primed    bool

	failures int
	troubled bool
	lastErr  string
}

type Monitor struct {
	registry Registry
	store    Store
	source   Source
	sink     Sink
	cfg      Config

	nudge <-chan struct{}

	mu           sync.Mutex
	cursors      map[string]*cursor
	lastWindows  []tmux.Window
	lastBindings sessionmap.Map
	haveBindings bool
	ticks        uint64
	lastTick     time.Time
}

func New(registry Registry, store Store, source Source, sink Sink, cfg Config) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	return &Monitor{
		registry: registry,
		store:    store,
		source:   source,
		sink:     sink,
		cfg:      cfg,
		cursors:  make(map[string]*cursor),
	}
}

// NudgeFrom wires an optional channel that triggers an immediate pass,
// typically fed by the session map file watcher. Must be called before
// Run.
func (m *Monitor) NudgeFrom(ch <-chan struct{}) {
	m.nudge = ch
}

// Run observes until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	monLog.Info("monitor_started",
		slog.String("poll_interval", m.cfg.PollInterval.String()),
		slog.Int("failure_threshold", m.cfg.FailureThreshold))

	// Prime baselines immediately so a restart does not wait a full
	// interval, and existing transcript content is never replayed.
	m.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			monLog.Info("monitor_stopped")
			return nil
		case <-ticker.C:
			m.tick(ctx)
		case <-m.nudge:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	windows, err := m.registry.ListWindows(ctx)
	if err != nil {
		// Keep working from the last known window list; a flapping tmux
		// server should not tear down relay positions.
		monLog.Warn("registry_query_failed", slog.String("error", err.Error()))
		windows = m.lastWindows
	} else {
		m.lastWindows = windows
	}

	bindings, err := m.store.Load()
	if err != nil {
		monLog.Error("session_map_load_failed", slog.String("error", err.Error()))
		if m.haveBindings {
			bindings = m.lastBindings
		}
	} else {
		m.lastBindings = bindings
		m.haveBindings = true
	}

	for _, w := range windows {
		m.observe(ctx, w, bindings)
	}

	// Drop cursors for windows that no longer exist. Windows that merely
	// lost their binding keep theirs, so a later rebind is announced as
	// a session change instead of being silently re-primed.
	present := make(map[string]bool, len(windows))
	for _, w := range windows {
		present[w.ID] = true
	}
	for id := range m.cursors {
		if !present[id] {
			delete(m.cursors, id)
			monLog.Debug("cursor_pruned", slog.String("window", id))
		}
	}

	m.ticks++
	m.lastTick = time.Now()
}

// observe handles a single window. Errors are contained here: one
// window's failure never stops the pass over the others.
func (m *Monitor) observe(ctx context.Context, w tmux.Window, bindings sessionmap.Map) {
	b, ok := bindings.ActiveFor(w.ID)
	if !ok {
		return
	}

	cur := m.cursors[w.ID]
	if cur == nil {
		m.track(w, b)
		return
	}

	if cur.sessionID != b.SessionID {
		if err := m.sink.SessionChanged(ctx, w, cur.sessionID, b.SessionID); err != nil {
			m.windowFailed(ctx, w, cur, fmt.Errorf("announce session change: %w", err))
			return
		}
		monLog.Info("session_changed",
			slog.String("window", w.ID),
			slog.String("from", cur.sessionID.String()),
			slog.String("to", b.SessionID.String()))
		// Commit only after the announcement lands, so a failed send is
		// retried before any content from the new session goes out.
		cur.sessionID = b.SessionID
		cur.primed = false
	}

	if !cur.primed {
		marker, ok, err := m.baseline(b)
		if !ok {
			m.windowFailed(ctx, w, cur, err)
			return
		}
		cur.marker = marker
		cur.primed = true
		m.windowHealthy(w, cur)
		monLog.Debug("window_baselined",
			slog.String("window", w.ID),
			slog.String("session", b.SessionID.String()),
			slog.Int("marker", marker))
		return
	}

	units, tail, err := m.source.After(b, cur.marker)
	if errors.Is(err, transcript.ErrSessionFileNotFound) {
		// Bound but nothing on disk yet.
		m.windowHealthy(w, cur)
		return
	}
	if err != nil {
		m.windowFailed(ctx, w, cur, err)
		return
	}

	if tail < cur.marker {
		// The transcript shrank under us. Re-baseline at the new tail
		// rather than replaying whatever replaced it.
		monLog.Info("transcript_truncated",
			slog.String("window", w.ID),
			slog.Int("marker", cur.marker),
			slog.Int("tail", tail))
		cur.marker = tail
		m.windowHealthy(w, cur)
		return
	}

	for _, u := range units {
		if err := m.sink.NewContent(ctx, w, b, u); err != nil {
			m.windowFailed(ctx, w, cur, fmt.Errorf("deliver unit at line %d: %w", u.Marker, err))
			return
		}
		// Advance per unit: a later failure must not re-deliver this one.
		cur.marker = u.Marker
	}
	cur.marker = tail
	m.windowHealthy(w, cur)
}

// track creates the cursor for a window seen for the first time. The
// baseline is the transcript's current tail: content that existed
// before tracking began is never relayed.
func (m *Monitor) track(w tmux.Window, b sessionmap.Binding) {
	cur := &cursor{sessionID: b.SessionID}
	marker, ok, err := m.baseline(b)
	if ok {
		cur.marker = marker
		cur.primed = true
	} else {
		cur.failures = 1
		cur.lastErr = err.Error()
		monLog.Warn("window_baseline_failed",
			slog.String("window", w.ID),
			slog.String("error", err.Error()))
	}
	m.cursors[w.ID] = cur
	monLog.Info("window_tracked",
		slog.String("window", w.ID),
		slog.String("label", w.Label),
		slog.String("session", b.SessionID.String()),
		slog.Int("marker", cur.marker))
}

// baseline returns the starting marker for a session: its current tail,
// or zero when the transcript does not exist yet.
func (m *Monitor) baseline(b sessionmap.Binding) (int, bool, error) {
	tail, err := m.source.Tail(b)
	if err == nil {
		return tail, true, nil
	}
	if errors.Is(err, transcript.ErrSessionFileNotFound) {
		return 0, true, nil
	}
	return 0, false, err
}

func (m *Monitor) windowFailed(ctx context.Context, w tmux.Window, cur *cursor, err error) {
	cur.failures++
	cur.lastErr = err.Error()
	monLog.Warn("window_observe_failed",
		slog.String("window", w.ID),
		slog.Int("consecutive", cur.failures),
		slog.String("error", err.Error()))

	if cur.failures >= m.cfg.FailureThreshold && !cur.troubled {
		cur.troubled = true
		if terr := m.sink.WindowTrouble(ctx, w, cur.lastErr, cur.failures); terr != nil {
			monLog.Error("window_trouble_event_failed",
				slog.String("window", w.ID),
				slog.String("error", terr.Error()))
		}
	}
}

func (m *Monitor) windowHealthy(w tmux.Window, cur *cursor) {
	if cur.troubled {
		monLog.Info("window_recovered",
			slog.String("window", w.ID),
			slog.Int("failed_ticks", cur.failures))
	}
	cur.failures = 0
	cur.troubled = false
	cur.lastErr = ""
}

// Snapshot reports the monitor's current view for status surfaces.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{Ticks: m.ticks, LastTick: m.lastTick}
	for _, w := range m.lastWindows {
		ws := WindowStatus{Window: w}
		if b, ok := m.lastBindings.ActiveFor(w.ID); ok {
			ws.Binding = b
			ws.HasBinding = true
		}
		if cur := m.cursors[w.ID]; cur != nil {
			ws.Marker = cur.marker
			ws.Failures = cur.failures
		}
		snap.Windows = append(snap.Windows, ws)
	}
	return snap
}
