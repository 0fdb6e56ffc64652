package transcript

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestEncodeProjectDir(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/home/u/api", "-home-u-api"},
		{"/Users/master/Code cloud/!Project", "-Users-master-Code-cloud--Project"},
		{"/home/u/my.dotted.dir", "-home-u-my-dotted-dir"},
		{"relative/path", "relative-path"},
	}
	for _, tc := range cases {
		if got := EncodeProjectDir(tc.path); got != tc.want {
			t.Errorf("EncodeProjectDir(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

const testSessionID = "01234567-89ab-cdef-0123-456789abcdef"

func seedTranscript(t *testing.T, configDir, projectDir, sessionID string) string {
	t.Helper()
	dir := filepath.Join(configDir, "projects", projectDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, sessionID+".jsonl")
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLocateDirect(t *testing.T) {
	configDir := t.TempDir()
	workdir := "/home/u/api"
	want := seedTranscript(t, configDir, EncodeProjectDir(workdir), testSessionID)

	l := NewLocator(configDir)
	got, err := l.Locate(workdir, testSessionID)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}

func TestLocateFallbackScan(t *testing.T) {
	configDir := t.TempDir()
	// The transcript lives under a project dir that does not match the
	// window's recorded workdir.
	want := seedTranscript(t, configDir, "-home-u-api-subdir", testSessionID)

	l := NewLocator(configDir)
	got, err := l.Locate("/home/u/api", testSessionID)
	if err != nil {
		t.Fatalf("Locate via scan: %v", err)
	}
	if got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}

func TestLocateNotFound(t *testing.T) {
	l := NewLocator(t.TempDir())

	_, err := l.Locate("/home/u/api", testSessionID)
	if !errors.Is(err, ErrSessionFileNotFound) {
		t.Fatalf("err = %v, want ErrSessionFileNotFound", err)
	}
}

func TestLocateEmptySessionID(t *testing.T) {
	l := NewLocator(t.TempDir())

	if _, err := l.Locate("/home/u/api", ""); err == nil {
		t.Error("expected error for empty session id")
	}
}

func TestLocateCacheDropsDeletedFile(t *testing.T) {
	configDir := t.TempDir()
	workdir := "/home/u/api"
	path := seedTranscript(t, configDir, EncodeProjectDir(workdir), testSessionID)

	l := NewLocator(configDir)
	if _, err := l.Locate(workdir, testSessionID); err != nil {
		t.Fatalf("first Locate: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if _, err := l.Locate(workdir, testSessionID); !errors.Is(err, ErrSessionFileNotFound) {
		t.Fatalf("err after delete = %v, want ErrSessionFileNotFound", err)
	}
}
