package sessionmap

import "time"

// SessionID is an opaque assistant-session identifier. The store never
// inspects its structure; equality is the only operation performed on it.
type SessionID string

func (id SessionID) String() string { return string(id) }

// Binding status values.
const (
	StatusActive = "active"
	StatusEnded  = "ended"
)

// Binding is the persisted window→session association.
type Binding struct {
	WindowID  string    `json:"window_id"`
	SessionID SessionID `json:"session_id"`
	Label     string    `json:"label,omitempty"`
	Workdir   string    `json:"workdir,omitempty"`
	BoundAt   time.Time `json:"bound_at"`
	Status    string    `json:"status"`
}

// Active reports whether the binding is currently live.
func (b Binding) Active() bool { return b.Status == StatusActive }

// Map is the full store contents: one current binding per window.
// Unknown JSON fields in the underlying file are ignored on load.
type Map struct {
	Windows map[string]Binding `json:"windows"`
}

// ActiveFor returns the window's binding when one exists and is active.
func (m Map) ActiveFor(windowID string) (Binding, bool) {
	b, ok := m.Windows[windowID]
	if !ok || !b.Active() {
		return Binding{}, false
	}
	return b, true
}

// historyRecord is one line of the bindings history log, written when a
// binding is superseded by a newer SessionStart.
type historyRecord struct {
	Binding
	SupersededAt time.Time `json:"superseded_at"`
	SupersededBy SessionID `json:"superseded_by,omitempty"`
}
