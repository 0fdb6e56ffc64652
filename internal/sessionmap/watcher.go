package sessionmap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/muxgram/muxgram/internal/logging"
	"github.com/muxgram/muxgram/internal/platform"
)

const watcherDebounce = 100 * time.Millisecond

// Watcher turns writes to the session map file into nudges on a channel,
// so the monitor can tick right after a hook fires instead of waiting out
// its poll interval. Purely a latency optimization: the loop is correct
// without any nudges, which also covers filesystems where inotify does
// not work.
type Watcher struct {
	storePath string
	watcher   *fsnotify.Watcher
	nudge     chan struct{}
	log       *slog.Logger
}

// NewWatcher creates a watcher for the store file. The parent directory
// is watched (atomic renames replace the file, so watching the file
// itself would go stale after the first update).
func NewWatcher(storePath string) (*Watcher, error) {
	dir := filepath.Dir(storePath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &Watcher{
		storePath: storePath,
		watcher:   fw,
		nudge:     make(chan struct{}, 1),
		log:       logging.ForComponent(logging.CompStore),
	}
	if warn := platform.CheckFsnotifySupport(dir); warn != "" {
		w.log.Warn("fsnotify_degraded", slog.String("detail", warn))
	}
	return w, nil
}

// Nudge returns the channel that receives one signal per coalesced burst
// of map updates. The channel has capacity one; signals are dropped, not
// queued, while a nudge is pending.
func (w *Watcher) Nudge() <-chan struct{} {
	return w.nudge
}

// Run watches until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filepath.Base(w.storePath) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watcherDebounce, func() {
				select {
				case w.nudge <- struct{}{}:
				default:
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("store_watcher_error", slog.String("error", err.Error()))
		}
	}
}
