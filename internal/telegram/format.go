package telegram

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

const (
	// MaxMessageLen is Telegram's hard per-message limit.
	MaxMessageLen = 4096
	// splitTarget leaves headroom under the hard limit for part
	// numbering and formatting overhead.
	splitTarget = 3500
)

// SplitMessage breaks text into pieces of at most maxLen bytes,
// preferring newline boundaries and falling back to spaces. A boundary
// is only used when it keeps the piece at least half full, so one long
// line cannot degenerate into many tiny messages.
func SplitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var messages []string
	remaining := text
	for len(remaining) > 0 {
		if len(remaining) <= maxLen {
			messages = append(messages, remaining)
			break
		}

		splitAt := maxLen
		if idx := strings.LastIndex(remaining[:maxLen], "\n"); idx > maxLen/2 {
			splitAt = idx + 1
		} else if idx := strings.LastIndex(remaining[:maxLen], " "); idx > maxLen/2 {
			splitAt = idx + 1
		}

		messages = append(messages, strings.TrimRight(remaining[:splitAt], " \n"))
		remaining = remaining[splitAt:]
	}
	return messages
}

// NumberParts suffixes each part with its position when a message was
// split, so out-of-order arrival is visible to the reader.
func NumberParts(parts []string) []string {
	if len(parts) <= 1 {
		return parts
	}
	numbered := make([]string, len(parts))
	for i, p := range parts {
		numbered[i] = fmt.Sprintf("%s [%d/%d]", p, i+1, len(parts))
	}
	return numbered
}

// ShortID abbreviates a session id for display. UUIDs share their first
// block rarely enough for eight characters to identify them in context.
func ShortID(id string) string {
	if id == "" {
		return "-"
	}
	runes := []rune(id)
	if len(runes) <= 8 {
		return id
	}
	return string(runes[:8])
}

// TableRow is one window's line in the /windows table.
type TableRow struct {
	Window   string
	Label    string
	Session  string
	Marker   int
	Failures int
}

// FormatWindowTable renders rows as an aligned monospace table. Widths
// are computed with runewidth so CJK and emoji in window labels do not
// break the columns.
func FormatWindowTable(rows []TableRow) string {
	if len(rows) == 0 {
		return "no windows"
	}

	headers := []string{"WINDOW", "LABEL", "SESSION", "POS", "FAILS"}
	cells := make([][]string, 0, len(rows)+1)
	cells = append(cells, headers)
	for _, r := range rows {
		session := r.Session
		if session == "" {
			session = "-"
		}
		cells = append(cells, []string{
			r.Window,
			r.Label,
			session,
			fmt.Sprintf("%d", r.Marker),
			fmt.Sprintf("%d", r.Failures),
		})
	}

	widths := make([]int, len(headers))
	for _, row := range cells {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var sb strings.Builder
	for _, row := range cells {
		for i, cell := range row {
			if i > 0 {
				sb.WriteString("  ")
			}
			if i == len(row)-1 {
				sb.WriteString(cell)
			} else {
				sb.WriteString(runewidth.FillRight(cell, widths[i]))
			}
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
