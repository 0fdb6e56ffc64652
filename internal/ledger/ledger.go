// Package ledger persists a history of what the relay has done: every
// delivered content unit and every session transition or trouble
// escalation. The monitor itself never reads this; it exists for the
// /history command and postmortems.
package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SchemaVersion tracks the current database schema version.
// Bump this when adding migrations.
const SchemaVersion = 1

// Transition kinds.
const (
	KindSessionChange = "session_change"
	KindTrouble       = "trouble"
)

// Ledger wraps a SQLite database. Safe for concurrent use within one
// process; WAL mode plus a busy timeout keeps concurrent processes from
// tripping over each other.
type Ledger struct {
	db *sql.DB
}

// RelayRow is one delivered content unit.
type RelayRow struct {
	ID          int64
	WindowID    string
	WindowLabel string
	SessionID   string
	Marker      int
	Chars       int
	SentAt      time.Time
}

// TransitionRow is one session change or trouble escalation.
type TransitionRow struct {
	ID          int64
	WindowID    string
	FromSession string
	ToSession   string
	Kind        string
	Detail      string
	OccurredAt  time.Time
}

// Open creates or opens the ledger database at path.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ledger: mkdir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open: %w", err)
	}

	// WAL mode: allows concurrent readers while writing
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: wal mode: %w", err)
	}

	// Busy timeout: wait up to 5s if another process holds a lock
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: busy timeout: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close checkpoints WAL and closes the database.
func (l *Ledger) Close() error {
	_, _ = l.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return l.db.Close()
}

// Migrate creates tables if they don't exist.
func (l *Ledger) Migrate() error {
	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("ledger: begin migrate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("ledger: create metadata: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS relays (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			window_id    TEXT NOT NULL,
			window_label TEXT NOT NULL DEFAULT '',
			session_id   TEXT NOT NULL,
			marker       INTEGER NOT NULL,
			chars        INTEGER NOT NULL DEFAULT 0,
			sent_at      INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("ledger: create relays: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS transitions (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			window_id    TEXT NOT NULL,
			from_session TEXT NOT NULL DEFAULT '',
			to_session   TEXT NOT NULL DEFAULT '',
			kind         TEXT NOT NULL,
			detail       TEXT NOT NULL DEFAULT '',
			occurred_at  INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("ledger: create transitions: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_relays_window ON relays(window_id, id)
	`); err != nil {
		return fmt.Errorf("ledger: create relay index: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)
	`, fmt.Sprintf("%d", SchemaVersion)); err != nil {
		return fmt.Errorf("ledger: set schema version: %w", err)
	}

	return tx.Commit()
}

// RecordRelay appends one delivered unit.
func (l *Ledger) RecordRelay(r RelayRow) error {
	sentAt := r.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}
	_, err := l.db.Exec(`
		INSERT INTO relays (window_id, window_label, session_id, marker, chars, sent_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.WindowID, r.WindowLabel, r.SessionID, r.Marker, r.Chars, sentAt.Unix())
	if err != nil {
		return fmt.Errorf("ledger: record relay: %w", err)
	}
	return nil
}

// RecordTransition appends one session change or trouble event.
func (l *Ledger) RecordTransition(t TransitionRow) error {
	occurredAt := t.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	_, err := l.db.Exec(`
		INSERT INTO transitions (window_id, from_session, to_session, kind, detail, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.WindowID, t.FromSession, t.ToSession, t.Kind, t.Detail, occurredAt.Unix())
	if err != nil {
		return fmt.Errorf("ledger: record transition: %w", err)
	}
	return nil
}

// RecentRelays returns the newest relays first.
func (l *Ledger) RecentRelays(limit int) ([]RelayRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.Query(`
		SELECT id, window_id, window_label, session_id, marker, chars, sent_at
		FROM relays ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: query relays: %w", err)
	}
	defer rows.Close()

	var result []RelayRow
	for rows.Next() {
		var r RelayRow
		var sentAt int64
		if err := rows.Scan(&r.ID, &r.WindowID, &r.WindowLabel, &r.SessionID, &r.Marker, &r.Chars, &sentAt); err != nil {
			return nil, fmt.Errorf("ledger: scan relay: %w", err)
		}
		r.SentAt = time.Unix(sentAt, 0)
		result = append(result, r)
	}
	return result, rows.Err()
}

// RecentTransitions returns the newest transitions first.
func (l *Ledger) RecentTransitions(limit int) ([]TransitionRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.Query(`
		SELECT id, window_id, from_session, to_session, kind, detail, occurred_at
		FROM transitions ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: query transitions: %w", err)
	}
	defer rows.Close()

	var result []TransitionRow
	for rows.Next() {
		var t TransitionRow
		var occurredAt int64
		if err := rows.Scan(&t.ID, &t.WindowID, &t.FromSession, &t.ToSession, &t.Kind, &t.Detail, &occurredAt); err != nil {
			return nil, fmt.Errorf("ledger: scan transition: %w", err)
		}
		t.OccurredAt = time.Unix(occurredAt, 0)
		result = append(result, t)
	}
	return result, rows.Err()
}

// Counts reports total rows for status surfaces.
func (l *Ledger) Counts() (relays, transitions int64, err error) {
	if err = l.db.QueryRow("SELECT COUNT(*) FROM relays").Scan(&relays); err != nil {
		return 0, 0, fmt.Errorf("ledger: count relays: %w", err)
	}
	if err = l.db.QueryRow("SELECT COUNT(*) FROM transitions").Scan(&transitions); err != nil {
		return 0, 0, fmt.Errorf("ledger: count transitions: %w", err)
	}
	return relays, transitions, nil
}
