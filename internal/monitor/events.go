package monitor

import (
	"context"
	"time"

	"github.com/muxgram/muxgram/internal/sessionmap"
	"github.com/muxgram/muxgram/internal/tmux"
	"github.com/muxgram/muxgram/internal/transcript"
)

// Registry enumerates the windows that currently exist.
type Registry interface {
	ListWindows(ctx context.Context) ([]tmux.Window, error)
}

// Store is the read side of the session map.
type Store interface {
	Load() (sessionmap.Map, error)
}

// Source answers content questions about a binding's session.
type Source interface {
	Tail(b sessionmap.Binding) (int, error)
	After(b sessionmap.Binding, marker int) ([]transcript.Unit, int, error)
}

// Sink receives what the monitor observes. Delivery is assumed to cross
// a network: every method may fail, and NewContent failures hold the
// window's marker so the unit is offered again next tick.
type Sink interface {
	// SessionChanged fires when a tracked window's session id changes.
	SessionChanged(ctx context.Context, w tmux.Window, from, to sessionmap.SessionID) error
	// NewContent delivers one assistant turn from the window's session.
	NewContent(ctx context.Context, w tmux.Window, b sessionmap.Binding, u transcript.Unit) error
	// WindowTrouble fires once per trouble episode, after a window has
	// failed several consecutive ticks.
	WindowTrouble(ctx context.Context, w tmux.Window, reason string, consecutive int) error
}

// Config holds the monitor's tuning knobs.
type Config struct {
	// PollInterval is the gap between observation passes.
	PollInterval time.Duration
	// FailureThreshold is the number of consecutive failed passes over
	// one window before WindowTrouble fires.
	FailureThreshold int
}

// WindowStatus is one window's row in a Snapshot.
type WindowStatus struct {
	Window     tmux.Window
	Binding    sessionmap.Binding
	HasBinding bool
	Marker     int
	Failures   int
}

// Snapshot is a point-in-time view of the monitor for status commands.
type Snapshot struct {
	Ticks    uint64
	LastTick time.Time
	Windows  []WindowStatus
}
