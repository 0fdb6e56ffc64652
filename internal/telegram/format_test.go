package telegram

import (
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
)

func TestSplitMessageShortTextIsOnePart(t *testing.T) {
	parts := SplitMessage("hello world", 100)
	if len(parts) != 1 || parts[0] != "hello world" {
		t.Fatalf("got %q", parts)
	}
}

func TestSplitMessageExactLimitIsOnePart(t *testing.T) {
	text := strings.Repeat("a", 50)
	parts := SplitMessage(text, 50)
	if len(parts) != 1 || parts[0] != text {
		t.Fatalf("got %d parts", len(parts))
	}
}

func TestSplitMessagePrefersNewline(t *testing.T) {
	parts := SplitMessage("abcdef\nghijklmnop", 10)
	if len(parts) != 2 {
		t.Fatalf("got %d parts: %q", len(parts), parts)
	}
	if parts[0] != "abcdef" {
		t.Errorf("first part %q, want break at newline", parts[0])
	}
	if parts[1] != "ghijklmnop" {
		t.Errorf("second part %q", parts[1])
	}
}

func TestSplitMessageFallsBackToSpace(t *testing.T) {
	parts := SplitMessage("abc def gh ijklmnop", 10)
	if len(parts) < 2 {
		t.Fatalf("got %q", parts)
	}
	if parts[0] != "abc def" {
		t.Errorf("first part %q, want break at last space past midpoint", parts[0])
	}
}

func TestSplitMessageHardSplitsWhenBoundaryTooEarly(t *testing.T) {
	// The only space sits before the midpoint, so using it would leave
	// a nearly empty part.
	parts := SplitMessage("ab cdefghijklmn", 10)
	if len(parts) != 2 {
		t.Fatalf("got %q", parts)
	}
	if len(parts[0]) != 10 {
		t.Errorf("first part %q (len %d), want hard split at limit", parts[0], len(parts[0]))
	}
}

func TestSplitMessagePreservesWords(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 400; i++ {
		sb.WriteString("lorem ipsum dolor sit amet ")
		if i%7 == 0 {
			sb.WriteString("\n")
		}
	}
	original := sb.String()

	parts := SplitMessage(original, 500)
	if len(parts) < 2 {
		t.Fatalf("expected a multi-part split, got %d", len(parts))
	}
	for i, p := range parts {
		if len(p) > 500 {
			t.Errorf("part %d exceeds limit: %d bytes", i, len(p))
		}
	}
	got := strings.Fields(strings.Join(parts, " "))
	want := strings.Fields(original)
	if len(got) != len(want) {
		t.Fatalf("word count changed: got %d want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("word %d changed: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestNumberPartsSingleIsUntouched(t *testing.T) {
	parts := NumberParts([]string{"only"})
	if len(parts) != 1 || parts[0] != "only" {
		t.Fatalf("got %q", parts)
	}
}

func TestNumberPartsSuffixesPosition(t *testing.T) {
	parts := NumberParts([]string{"a", "b", "c"})
	want := []string{"a [1/3]", "b [2/3]", "c [3/3]"}
	for i := range want {
		if parts[i] != want[i] {
			t.Errorf("part %d: got %q want %q", i, parts[i], want[i])
		}
	}
}

func TestShortID(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", "-"},
		{"abc", "abc"},
		{"01234567", "01234567"},
		{"01234567-89ab-cdef-0123-456789abcdef", "01234567"},
	}
	for _, c := range cases {
		if got := ShortID(c.in); got != c.want {
			t.Errorf("ShortID(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFormatWindowTableEmpty(t *testing.T) {
	if got := FormatWindowTable(nil); got != "no windows" {
		t.Fatalf("got %q", got)
	}
}

func TestFormatWindowTableAlignsColumns(t *testing.T) {
	rows := []TableRow{
		{Window: "@1", Label: "api", Session: "0123abcd", Marker: 42},
		{Window: "@12", Label: "workerlong", Marker: 7, Failures: 3},
	}
	out := FormatWindowTable(rows)
	lines := strings.Split(out, "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "WINDOW  LABEL") {
		t.Errorf("header %q", lines[0])
	}
	// Empty session renders as a dash and the session column lines up.
	sess1 := strings.Index(lines[1], "0123abcd")
	sess2 := strings.Index(lines[2], "-")
	if sess1 < 0 || sess1 != sess2 {
		t.Errorf("session columns misaligned:\n%s", out)
	}
	if strings.HasSuffix(out, "\n") {
		t.Error("trailing newline")
	}
}

func TestFormatWindowTableHandlesWideRunes(t *testing.T) {
	rows := []TableRow{
		{Window: "@1", Label: "日本語", Session: "aaaabbbb"},
		{Window: "@2", Label: "api", Session: "ccccdddd"},
	}
	lines := strings.Split(FormatWindowTable(rows), "\n")

	widthBefore := func(line, cell string) int {
		idx := strings.Index(line, cell)
		if idx < 0 {
			t.Fatalf("%q not in %q", cell, line)
		}
		return runewidth.StringWidth(line[:idx])
	}
	w1 := widthBefore(lines[1], "aaaabbbb")
	w2 := widthBefore(lines[2], "ccccdddd")
	if w1 != w2 {
		t.Errorf("session column drifts with wide label: %d vs %d", w1, w2)
	}
}
