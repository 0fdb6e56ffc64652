package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestInitWritesJSONL(t *testing.T) {
	Shutdown()

	dir := t.TempDir()
	Init(Config{LogDir: dir})
	defer Shutdown()

	l := Logger()
	if l == nil {
		t.Fatal("expected non-nil logger after Init")
	}

	l.Info("test_message", "key", "value")

	data, err := os.ReadFile(filepath.Join(dir, "muxgram.log"))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("log file is empty")
	}

	record := firstRecord(t, data)
	if record["msg"] != "test_message" {
		t.Errorf("expected msg=test_message, got %v", record["msg"])
	}
	if record["key"] != "value" {
		t.Errorf("expected key=value, got %v", record["key"])
	}
}

func TestInitNoLogDirDiscards(t *testing.T) {
	Shutdown()

	Init(Config{})
	defer Shutdown()

	l := Logger()
	if l == nil {
		t.Fatal("expected non-nil logger without a log dir")
	}

	// Must not panic.
	l.Info("this goes nowhere")
}

func TestLoggerBeforeInit(t *testing.T) {
	Shutdown()

	// Must not panic before Init.
	Logger().Info("pre-init message")
	ForComponent(CompMonitor).Warn("pre-init component message")
}

func TestForComponent(t *testing.T) {
	Shutdown()

	dir := t.TempDir()

	// Component loggers created before Init must pick up the real handler.
	cl := ForComponent(CompStore)

	Init(Config{LogDir: dir})
	defer Shutdown()

	cl.Info("map_written", "window", "@1")

	data, err := os.ReadFile(filepath.Join(dir, "muxgram.log"))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	record := firstRecord(t, data)
	if record["component"] != CompStore {
		t.Errorf("expected component=%s, got %v", CompStore, record["component"])
	}
	if record["window"] != "@1" {
		t.Errorf("expected window=@1, got %v", record["window"])
	}
}

func TestLevelFiltering(t *testing.T) {
	Shutdown()

	dir := t.TempDir()
	Init(Config{LogDir: dir, Level: "warn"})
	defer Shutdown()

	l := Logger()
	l.Info("should_be_filtered")
	l.Warn("should_appear")

	data, err := os.ReadFile(filepath.Join(dir, "muxgram.log"))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	if containsMsg(data, "should_be_filtered") {
		t.Error("info message should have been filtered at warn level")
	}
	if !containsMsg(data, "should_appear") {
		t.Error("warn message should have appeared")
	}
}

func TestTextFormat(t *testing.T) {
	Shutdown()

	dir := t.TempDir()
	Init(Config{LogDir: dir, Format: "text"})
	defer Shutdown()

	Logger().Info("text_format_test")

	data, err := os.ReadFile(filepath.Join(dir, "muxgram.log"))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	var record map[string]any
	if err := json.Unmarshal(data, &record); err == nil {
		t.Error("expected text format, but got valid JSON")
	}
}

// firstRecord parses the first JSONL line in data.
func firstRecord(t *testing.T, data []byte) map[string]any {
	t.Helper()
	for i, b := range data {
		if b == '\n' {
			var record map[string]any
			if err := json.Unmarshal(data[:i], &record); err != nil {
				t.Fatalf("failed to parse JSONL: %v (data: %s)", err, string(data[:i]))
			}
			return record
		}
	}
	t.Fatal("no complete JSONL line in log output")
	return nil
}

// containsMsg checks if JSONL data contains a record with the given msg field.
func containsMsg(data []byte, msg string) bool {
	start := 0
	for i, b := range data {
		if b == '\n' {
			var record map[string]any
			if err := json.Unmarshal(data[start:i], &record); err == nil {
				if record["msg"] == msg {
					return true
				}
			}
			start = i + 1
		}
	}
	return false
}
