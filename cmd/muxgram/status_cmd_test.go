package main

import (
	"testing"
	"time"

	"github.com/muxgram/muxgram/internal/sessionmap"
)

func testMap() sessionmap.Map {
	bound := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return sessionmap.Map{Windows: map[string]sessionmap.Binding{
		"@2": {
			WindowID:  "@2",
			SessionID: "01234567-89ab-cdef-0123-456789abcdef",
			Label:     "api",
			Status:    sessionmap.StatusActive,
			BoundAt:   bound,
		},
		"@1": {
			WindowID:  "@1",
			SessionID: "ffffffff-0000-1111-2222-333333333333",
			Status:    sessionmap.StatusEnded,
			BoundAt:   bound,
		},
	}}
}

func TestStatusRowsSortedWithHeader(t *testing.T) {
	rows := statusRows(testMap(), nil, false)
	if len(rows) != 3 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0][0] != "WINDOW" {
		t.Errorf("header %v", rows[0])
	}
	if rows[1][0] != "@1" || rows[2][0] != "@2" {
		t.Errorf("rows not sorted by window id: %v, %v", rows[1], rows[2])
	}
}

func TestStatusRowsShortensSessionAndFormatsFields(t *testing.T) {
	rows := statusRows(testMap(), nil, false)
	row := rows[2] // @2
	if row[1] != "api" {
		t.Errorf("name %q", row[1])
	}
	if row[2] != "01234567" {
		t.Errorf("session %q, want shortened", row[2])
	}
	if row[3] != sessionmap.StatusActive {
		t.Errorf("status %q", row[3])
	}
	if row[4] == "" {
		t.Error("bound timestamp empty")
	}
}

func TestStatusRowsUnnamedWindowGetsDash(t *testing.T) {
	rows := statusRows(testMap(), nil, false)
	if rows[1][1] != "-" {
		t.Errorf("name %q, want dash for unlabeled binding", rows[1][1])
	}
}

func TestStatusRowsLiveNamesWin(t *testing.T) {
	live := map[string]string{"@2": "renamed"}
	rows := statusRows(testMap(), live, true)
	if rows[2][1] != "renamed" {
		t.Errorf("name %q, want live window name", rows[2][1])
	}
	if rows[1][1] != "(gone)" {
		t.Errorf("name %q, want vanished marker", rows[1][1])
	}
}
