package main

import (
	"os"
	"testing"
)

// TestMain points MUXGRAM_DIR at a scratch directory so cmd tests can
// never read or write a real ~/.muxgram.
func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "muxgram-cmd-test-")
	if err != nil {
		os.Exit(1)
	}
	os.Setenv("MUXGRAM_DIR", dir)

	code := m.Run()

	os.RemoveAll(dir)
	os.Exit(code)
}
