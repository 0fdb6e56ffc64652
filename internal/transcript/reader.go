package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Unit is one relayable piece of session output: the text of an
// assistant turn, tagged with the 1-based transcript line it came from.
// Line indexes only grow while a session id is alive, which makes them
// usable as resume markers.
type Unit struct {
	Marker int
	Text   string
}

// jsonlRecord is the subset of a transcript line the relay cares about.
type jsonlRecord struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message"`
}

type message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// Reader extracts assistant turns from Claude transcript files. Files
// are append-only JSONL; individual lines can be large (pasted content,
// tool results), so the scanner buffer allows lines up to 10MB.
type Reader struct{}

func NewReader() *Reader {
	return &Reader{}
}

const maxLineSize = 10 * 1024 * 1024

func newScanner(f *os.File) *bufio.Scanner {
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxLineSize)
	return scanner
}

// Tail returns the current line count of the transcript. Used to set a
// baseline marker without emitting any of the existing content.
func (r *Reader) Tail(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	scanner := newScanner(f)
	lines := 0
	for scanner.Scan() {
		lines++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan transcript: %w", err)
	}
	return lines, nil
}

// After returns the assistant turns recorded after the marker, plus the
// new tail position. A marker of zero reads the whole file. Lines that
// fail to parse are counted but produce no unit; the transcript also
// interleaves user turns, tool results, and summary records, which are
// skipped the same way.
func (r *Reader) After(path string, marker int) ([]Unit, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	var units []Unit
	scanner := newScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo <= marker {
			continue
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var record jsonlRecord
		if err := json.Unmarshal(line, &record); err != nil {
			continue
		}
		if record.Type != "assistant" || len(record.Message) == 0 {
			continue
		}
		var msg message
		if err := json.Unmarshal(record.Message, &msg); err != nil {
			continue
		}
		if text := extractText(msg.Content); text != "" {
			units = append(units, Unit{Marker: lineNo, Text: text})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan transcript: %w", err)
	}
	return units, lineNo, nil
}

// extractText pulls the human-readable text out of a message content
// field, which is either a plain string or an array of content blocks.
// Non-text blocks (tool_use, thinking) contribute nothing.
func extractText(contentRaw json.RawMessage) string {
	var contentStr string
	if err := json.Unmarshal(contentRaw, &contentStr); err == nil {
		return contentStr
	}

	var blocks []map[string]interface{}
	if err := json.Unmarshal(contentRaw, &blocks); err != nil {
		return ""
	}
	var sb strings.Builder
	for _, block := range blocks {
		text, ok := block["text"].(string)
		if !ok || text == "" {
			continue
		}
		if blockType, ok := block["type"].(string); ok && blockType != "text" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(text)
	}
	return sb.String()
}
