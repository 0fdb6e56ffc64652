// Package claudehooks manages muxgram's entries in Claude Code's
// settings.json. Install and Uninstall preserve every unrelated setting
// and every user hook: the file is read as raw JSON, only the muxgram
// entries are touched, and the result is written atomically.
package claudehooks

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/muxgram/muxgram/internal/logging"
)

// hookCommand is the marker command identifying muxgram hooks in
// settings.json. The handler reads the event name from the hook payload,
// so both events share one command.
const hookCommand = "muxgram hook"

// Events lists the Claude Code events muxgram subscribes to.
var Events = []string{"SessionStart", "SessionEnd"}

var log = logging.ForComponent(logging.CompHook)

type hookEntry struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Async   bool   `json:"async,omitempty"`
}

type hookMatcher struct {
	Matcher string      `json:"matcher,omitempty"`
	Hooks   []hookEntry `json:"hooks"`
}

func muxgramHook() hookEntry {
	return hookEntry{
		Type:    "command",
		Command: hookCommand,
		Async:   true,
	}
}

// EventStatus reports one event's installation state.
type EventStatus struct {
	Event     string
	Installed bool
}

// Install adds muxgram hook entries to settings.json in configDir.
// Returns true if hooks were newly installed, false if already present.
func Install(configDir string) (bool, error) {
	settingsPath := filepath.Join(configDir, "settings.json")

	var rawSettings map[string]json.RawMessage
	data, err := os.ReadFile(settingsPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return false, fmt.Errorf("read settings.json: %w", err)
		}
		rawSettings = make(map[string]json.RawMessage)
	} else {
		if err := json.Unmarshal(data, &rawSettings); err != nil {
			return false, fmt.Errorf("parse settings.json: %w", err)
		}
	}

	var hooks map[string]json.RawMessage
	if raw, ok := rawSettings["hooks"]; ok {
		if err := json.Unmarshal(raw, &hooks); err != nil {
			// hooks key exists but is not an object; rebuild it
			hooks = make(map[string]json.RawMessage)
		}
	} else {
		hooks = make(map[string]json.RawMessage)
	}

	if allInstalled(hooks) {
		return false, nil
	}

	for _, event := range Events {
		hooks[event] = mergeEvent(hooks[event])
	}

	hooksRaw, err := json.Marshal(hooks)
	if err != nil {
		return false, fmt.Errorf("marshal hooks: %w", err)
	}
	rawSettings["hooks"] = hooksRaw

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return false, fmt.Errorf("create config dir: %w", err)
	}
	if err := writeSettings(settingsPath, rawSettings); err != nil {
		return false, err
	}

	log.Info("claude_hooks_installed", slog.String("config_dir", configDir))
	return true, nil
}

// Uninstall removes muxgram hook entries from settings.json.
// Returns true if any were removed, false if none found.
func Uninstall(configDir string) (bool, error) {
	settingsPath := filepath.Join(configDir, "settings.json")

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read settings.json: %w", err)
	}

	var rawSettings map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawSettings); err != nil {
		return false, fmt.Errorf("parse settings.json: %w", err)
	}

	hooksRaw, ok := rawSettings["hooks"]
	if !ok {
		return false, nil
	}
	var hooks map[string]json.RawMessage
	if err := json.Unmarshal(hooksRaw, &hooks); err != nil {
		return false, nil
	}

	removed := false
	for _, event := range Events {
		raw, ok := hooks[event]
		if !ok {
			continue
		}
		cleaned, didRemove := removeFromEvent(raw)
		if !didRemove {
			continue
		}
		removed = true
		if cleaned == nil {
			delete(hooks, event)
		} else {
			hooks[event] = cleaned
		}
	}
	if !removed {
		return false, nil
	}

	if len(hooks) == 0 {
		delete(rawSettings, "hooks")
	} else {
		hooksData, _ := json.Marshal(hooks)
		rawSettings["hooks"] = hooksData
	}

	if err := writeSettings(settingsPath, rawSettings); err != nil {
		return false, err
	}

	log.Info("claude_hooks_removed", slog.String("config_dir", configDir))
	return true, nil
}

// Status reports per-event installation state, in Events order.
func Status(configDir string) []EventStatus {
	statuses := make([]EventStatus, len(Events))
	for i, event := range Events {
		statuses[i] = EventStatus{Event: event}
	}

	data, err := os.ReadFile(filepath.Join(configDir, "settings.json"))
	if err != nil {
		return statuses
	}
	var rawSettings map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawSettings); err != nil {
		return statuses
	}
	hooksRaw, ok := rawSettings["hooks"]
	if !ok {
		return statuses
	}
	var hooks map[string]json.RawMessage
	if err := json.Unmarshal(hooksRaw, &hooks); err != nil {
		return statuses
	}

	for i, event := range Events {
		statuses[i].Installed = eventHasHook(hooks[event])
	}
	return statuses
}

// Installed reports whether every event carries a muxgram hook.
func Installed(configDir string) bool {
	for _, s := range Status(configDir) {
		if !s.Installed {
			return false
		}
	}
	return true
}

func allInstalled(hooks map[string]json.RawMessage) bool {
	for _, event := range Events {
		if !eventHasHook(hooks[event]) {
			return false
		}
	}
	return true
}

func eventHasHook(raw json.RawMessage) bool {
	if raw == nil {
		return false
	}
	var matchers []hookMatcher
	if err := json.Unmarshal(raw, &matchers); err != nil {
		return false
	}
	for _, m := range matchers {
		for _, h := range m.Hooks {
			if strings.Contains(h.Command, hookCommand) {
				return true
			}
		}
	}
	return false
}

// mergeEvent adds the muxgram hook to an event's matcher array without
// disturbing existing matchers or user hooks.
func mergeEvent(existing json.RawMessage) json.RawMessage {
	var matchers []hookMatcher
	if existing != nil {
		if err := json.Unmarshal(existing, &matchers); err != nil {
			matchers = nil
		}
	}

	for i, m := range matchers {
		if m.Matcher != "" {
			continue
		}
		for _, h := range m.Hooks {
			if strings.Contains(h.Command, hookCommand) {
				result, _ := json.Marshal(matchers)
				return result
			}
		}
		matchers[i].Hooks = append(matchers[i].Hooks, muxgramHook())
		result, _ := json.Marshal(matchers)
		return result
	}

	matchers = append(matchers, hookMatcher{Hooks: []hookEntry{muxgramHook()}})
	result, _ := json.Marshal(matchers)
	return result
}

// removeFromEvent strips muxgram hooks from an event's matcher array.
// Returns the cleaned JSON and whether anything was removed; nil JSON
// means the array emptied out.
func removeFromEvent(raw json.RawMessage) (json.RawMessage, bool) {
	var matchers []hookMatcher
	if err := json.Unmarshal(raw, &matchers); err != nil {
		return raw, false
	}

	removed := false
	var cleaned []hookMatcher
	for _, m := range matchers {
		var hooks []hookEntry
		for _, h := range m.Hooks {
			if strings.Contains(h.Command, hookCommand) {
				removed = true
				continue
			}
			hooks = append(hooks, h)
		}
		if len(hooks) > 0 {
			m.Hooks = hooks
			cleaned = append(cleaned, m)
		}
	}
	if !removed {
		return raw, false
	}
	if len(cleaned) == 0 {
		return nil, true
	}
	result, _ := json.Marshal(cleaned)
	return result, true
}

func writeSettings(path string, settings map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write settings.json.tmp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename settings.json: %w", err)
	}
	return nil
}
