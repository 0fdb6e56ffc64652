package transcript

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/muxgram/muxgram/internal/logging"
)

// ErrSessionFileNotFound means no transcript file exists yet for the
// session. Normal in the window between SessionStart and the first
// turn being flushed to disk.
var ErrSessionFileNotFound = errors.New("session transcript not found")

// dirNameRegex matches any character that is not alphanumeric or hyphen.
// Claude encodes a project path into a directory name by replacing all
// such characters: /home/u/my app -> -home-u-my-app
var dirNameRegex = regexp.MustCompile(`[^a-zA-Z0-9-]`)

// EncodeProjectDir converts a working directory into the directory name
// Claude uses under <config>/projects/.
func EncodeProjectDir(workdir string) string {
	return dirNameRegex.ReplaceAllString(workdir, "-")
}

var sessionFilePattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.jsonl$`)

// Locator resolves a (workdir, session id) pair to the transcript file
// on disk. The usual location is derived from the workdir; when the file
// is not there (Claude was started in a subdirectory, or the window's
// recorded workdir is stale) a scan across all project directories finds
// it. The scan walks every project dir, so it is rate limited.
type Locator struct {
	configDir string

	mu    sync.Mutex
	found map[string]string // session id -> resolved path

	scanLimit *rate.Limiter
	log       *slog.Logger
}

func NewLocator(configDir string) *Locator {
	return &Locator{
		configDir: configDir,
		found:     make(map[string]string),
		scanLimit: rate.NewLimiter(rate.Every(30*time.Second), 1),
		log:       logging.ForComponent(logging.CompTranscript),
	}
}

// Locate returns the transcript path for the session, or
// ErrSessionFileNotFound.
func (l *Locator) Locate(workdir, sessionID string) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("empty session id")
	}

	l.mu.Lock()
	cached, ok := l.found[sessionID]
	l.mu.Unlock()
	if ok {
		if _, err := os.Stat(cached); err == nil {
			return cached, nil
		}
		l.mu.Lock()
		delete(l.found, sessionID)
		l.mu.Unlock()
	}

	name := sessionID + ".jsonl"

	if workdir != "" {
		direct := filepath.Join(l.configDir, "projects", EncodeProjectDir(workdir), name)
		if _, err := os.Stat(direct); err == nil {
			l.remember(sessionID, direct)
			return direct, nil
		}
	}

	if path := l.scanProjects(name); path != "" {
		l.remember(sessionID, path)
		return path, nil
	}

	return "", fmt.Errorf("%w: session %s", ErrSessionFileNotFound, sessionID)
}

func (l *Locator) remember(sessionID, path string) {
	l.mu.Lock()
	l.found[sessionID] = path
	l.mu.Unlock()
}

// scanProjects looks for the session file in every project directory.
func (l *Locator) scanProjects(name string) string {
	if !l.scanLimit.Allow() {
		return ""
	}

	projectsDir := filepath.Join(l.configDir, "projects")
	entries, err := os.ReadDir(projectsDir)
	if err != nil {
		return ""
	}
	if !sessionFilePattern.MatchString(name) {
		return ""
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		candidate := filepath.Join(projectsDir, entry.Name(), name)
		if _, err := os.Stat(candidate); err == nil {
			l.log.Debug("transcript_found_by_scan",
				slog.String("session", strings.TrimSuffix(name, ".jsonl")),
				slog.String("project_dir", entry.Name()))
			return candidate
		}
	}
	return ""
}
