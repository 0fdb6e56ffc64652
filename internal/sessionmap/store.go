package sessionmap

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/muxgram/muxgram/internal/logging"
)

// Store is the durable window→session binding map, shared between
// short-lived hook processes (writers) and the monitor daemon (reader).
// Writers hold an exclusive flock for the whole read-modify-write cycle
// and publish via temp file + rename, so a reader never observes a
// partially-written record.
type Store struct {
	path        string
	historyPath string
	log         *slog.Logger
}

// NewStore creates a store over the given map file. A superseded binding
// is appended to historyPath before it is replaced; pass "" to skip
// history entirely.
func NewStore(path, historyPath string) *Store {
	return &Store{
		path:        path,
		historyPath: historyPath,
		log:         logging.ForComponent(logging.CompStore),
	}
}

// Path returns the map file location.
func (s *Store) Path() string { return s.path }

// Load reads the current map. A missing file is the pre-first-hook steady
// state and yields an empty map with no error. An unreadable file yields
// an empty map plus ErrStoreUnavailable; unparseable contents yield an
// empty map plus ErrStoreCorrupt. The caller decides how to degrade.
func (s *Store) Load() (Map, error) {
	empty := Map{Windows: map[string]Binding{}}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return empty, nil
		}
		return empty, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return empty, fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
	}
	if m.Windows == nil {
		m.Windows = map[string]Binding{}
	}
	// The key is authoritative for window identity.
	for id, b := range m.Windows {
		b.WindowID = id
		m.Windows[id] = b
	}
	return m, nil
}

// RecordStart upserts a fresh active binding for the window, superseding
// any prior record. The prior record, active or ended, goes to history.
func (s *Store) RecordStart(windowID, label string, sessionID SessionID, workdir string) error {
	if windowID == "" || sessionID == "" {
		return fmt.Errorf("record start: window and session ids are required")
	}

	return s.withLock(func(m Map) (Map, error) {
		now := time.Now().UTC()
		if prev, ok := m.Windows[windowID]; ok {
			s.appendHistory(historyRecord{Binding: prev, SupersededAt: now, SupersededBy: sessionID})
		}
		m.Windows[windowID] = Binding{
			WindowID:  windowID,
			SessionID: sessionID,
			Label:     label,
			Workdir:   workdir,
			BoundAt:   now,
			Status:    StatusActive,
		}
		return m, nil
	})
}

// RecordEnd marks the window's binding ended, but only when sessionID
// matches the currently active binding. A mismatch means the end event
// raced with a newer start and arrived stale: the store is left untouched
// and applied is false. Stale ends are expected, not errors.
func (s *Store) RecordEnd(windowID string, sessionID SessionID) (applied bool, err error) {
	if windowID == "" || sessionID == "" {
		return false, fmt.Errorf("record end: window and session ids are required")
	}

	err = s.withLock(func(m Map) (Map, error) {
		b, ok := m.Windows[windowID]
		if !ok || b.SessionID != sessionID || !b.Active() {
			s.log.Debug("stale_session_end_ignored",
				slog.String("window", windowID),
				slog.String("session", sessionID.String()))
			return m, errNoChange
		}
		b.Status = StatusEnded
		m.Windows[windowID] = b
		applied = true
		return m, nil
	})
	return applied, err
}

// errNoChange short-circuits withLock without publishing.
var errNoChange = errors.New("no change")

// withLock runs fn under the writer flock: load current state, apply the
// mutation, publish atomically.
func (s *Store) withLock(fn func(Map) (Map, error)) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	lock := newFileLock(s.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock store: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	m, err := s.Load()
	if err != nil {
		// A corrupt or unreadable map must not wedge new sessions out of
		// the bridge; start over from empty and say so.
		s.log.Error("store_reset_on_write", slog.String("error", err.Error()))
		m = Map{Windows: map[string]Binding{}}
	}

	m, err = fn(m)
	if err != nil {
		if errors.Is(err, errNoChange) {
			return nil
		}
		return err
	}
	return s.publish(m)
}

// publish writes the map to a temp file and renames it into place.
func (s *Store) publish(m Map) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session map: %w", err)
	}
	tmp := fmt.Sprintf("%s.%d.tmp", s.path, os.Getpid())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write session map: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publish session map: %w", err)
	}
	return nil
}

// appendHistory adds one JSON line to the history log. History is an
// archive, best-effort only: failures are logged and never block the
// binding update itself.
func (s *Store) appendHistory(rec historyRecord) {
	if s.historyPath == "" {
		return
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return
	}
	f, err := os.OpenFile(s.historyPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		s.log.Warn("history_append_failed", slog.String("error", err.Error()))
		return
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		s.log.Warn("history_append_failed", slog.String("error", err.Error()))
	}
}
