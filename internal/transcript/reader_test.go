package transcript

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTranscript(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write transcript: %v", err)
	}
	return path
}

const (
	lineUser       = `{"type":"user","message":{"role":"user","content":"run the tests"},"sessionId":"s1","cwd":"/home/u/api"}`
	lineAssistant1 = `{"type":"assistant","message":{"role":"assistant","content":"Running them now."}}`
	lineToolResult = `{"type":"user","message":{"role":"user","content":[{"type":"tool_result","content":"ok"}]}}`
	lineAssistant2 = `{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"All tests pass."},{"type":"tool_use","id":"t1","name":"Bash","input":{}}]}}`
	lineSummary    = `{"type":"summary","summary":"test run"}`
)

func TestTailCountsLines(t *testing.T) {
	path := writeTranscript(t, lineUser, lineAssistant1, lineToolResult, lineAssistant2, lineSummary)

	r := NewReader()
	tail, err := r.Tail(path)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if tail != 5 {
		t.Errorf("tail = %d, want 5", tail)
	}
}

func TestAfterFromZero(t *testing.T) {
	path := writeTranscript(t, lineUser, lineAssistant1, lineToolResult, lineAssistant2, lineSummary)

	r := NewReader()
	units, tail, err := r.After(path, 0)
	if err != nil {
		t.Fatalf("After: %v", err)
	}
	if tail != 5 {
		t.Errorf("tail = %d, want 5", tail)
	}
	if len(units) != 2 {
		t.Fatalf("got %d units, want 2: %+v", len(units), units)
	}
	if units[0].Marker != 2 || units[0].Text != "Running them now." {
		t.Errorf("unit[0] = %+v", units[0])
	}
	if units[1].Marker != 4 || units[1].Text != "All tests pass." {
		t.Errorf("unit[1] = %+v", units[1])
	}
}

func TestAfterSkipsConsumedLines(t *testing.T) {
	path := writeTranscript(t, lineUser, lineAssistant1, lineToolResult, lineAssistant2)

	r := NewReader()
	units, tail, err := r.After(path, 2)
	if err != nil {
		t.Fatalf("After: %v", err)
	}
	if tail != 4 {
		t.Errorf("tail = %d, want 4", tail)
	}
	if len(units) != 1 || units[0].Marker != 4 {
		t.Fatalf("expected only the second assistant turn, got %+v", units)
	}
}

func TestAfterAtTail(t *testing.T) {
	path := writeTranscript(t, lineUser, lineAssistant1)

	r := NewReader()
	units, tail, err := r.After(path, 2)
	if err != nil {
		t.Fatalf("After: %v", err)
	}
	if len(units) != 0 {
		t.Errorf("expected no units at tail, got %+v", units)
	}
	if tail != 2 {
		t.Errorf("tail = %d, want 2", tail)
	}
}

func TestAfterJoinsTextBlocks(t *testing.T) {
	line := `{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"first"},{"type":"thinking","thinking":"hidden"},{"type":"text","text":"second"}]}}`
	path := writeTranscript(t, line)

	r := NewReader()
	units, _, err := r.After(path, 0)
	if err != nil {
		t.Fatalf("After: %v", err)
	}
	if len(units) != 1 {
		t.Fatalf("got %d units, want 1", len(units))
	}
	if units[0].Text != "first\nsecond" {
		t.Errorf("text = %q, want blocks joined by newline", units[0].Text)
	}
}

func TestAfterToleratesMalformedLines(t *testing.T) {
	path := writeTranscript(t, `{broken`, lineAssistant1, "", `[1,2,3]`, lineAssistant2)

	r := NewReader()
	units, tail, err := r.After(path, 0)
	if err != nil {
		t.Fatalf("After: %v", err)
	}
	// Malformed lines still advance the tail so the marker keeps its
	// meaning as a line index.
	if tail != 5 {
		t.Errorf("tail = %d, want 5", tail)
	}
	if len(units) != 2 {
		t.Fatalf("got %d units, want 2: %+v", len(units), units)
	}
	if units[0].Marker != 2 || units[1].Marker != 5 {
		t.Errorf("markers = %d,%d, want 2,5", units[0].Marker, units[1].Marker)
	}
}

func TestAfterSkipsEmptyAssistantText(t *testing.T) {
	line := `{"type":"assistant","message":{"role":"assistant","content":[{"type":"tool_use","id":"t1","name":"Bash","input":{}}]}}`
	path := writeTranscript(t, line)

	r := NewReader()
	units, tail, err := r.After(path, 0)
	if err != nil {
		t.Fatalf("After: %v", err)
	}
	if len(units) != 0 {
		t.Errorf("tool-only turn should yield no unit, got %+v", units)
	}
	if tail != 1 {
		t.Errorf("tail = %d, want 1", tail)
	}
}

func TestMissingFile(t *testing.T) {
	r := NewReader()
	missing := filepath.Join(t.TempDir(), "nope.jsonl")

	if _, err := r.Tail(missing); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Tail err = %v, want ErrNotExist", err)
	}
	if _, _, err := r.After(missing, 0); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("After err = %v, want ErrNotExist", err)
	}
}
