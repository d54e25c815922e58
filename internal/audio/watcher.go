package audio

import (
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces bursts of filesystem events (e.g. a file copy)
// into a single library reload.
const reloadDebounce = 500 * time.Millisecond

// LibraryWatcher watches the alarm sounds directory and reloads the
// library when sound files are added, changed, or removed, so new alarm
// tones can be dropped in without restarting the daemon.
type LibraryWatcher struct {
	watcher *fsnotify.Watcher
	library *Library
	dir     string
	logger  *slog.Logger
	done    chan struct{}
	mu      sync.Mutex
	running bool
}

// NewLibraryWatcher creates a watcher for the given alarm sounds directory.
func NewLibraryWatcher(library *Library, dir string, logger *slog.Logger) (*LibraryWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &LibraryWatcher{
		watcher: watcher,
		library: library,
		dir:     dir,
		logger:  logger,
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching the directory for changes.
func (w *LibraryWatcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}

	go w.watch()
	w.logger.Debug("sound library watcher started", "dir", w.dir)
	return nil
}

// watch is the main watch loop. Reloads are debounced.
func (w *LibraryWatcher) watch() {
	var debounce *time.Timer
	var reloadCh <-chan time.Time

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			// Only sound files matter
			if !EligibleSound(event.Name) {
				continue
			}

			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				if debounce == nil {
					debounce = time.NewTimer(reloadDebounce)
					reloadCh = debounce.C
				} else {
					debounce.Reset(reloadDebounce)
				}
			}

		case <-reloadCh:
			w.logger.Info("alarm sounds changed, reloading library", "dir", w.dir)
			w.library.Reload()
			debounce = nil
			reloadCh = nil

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("sound library watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

// Stop stops watching. Safe to call if the watcher never started.
func (w *LibraryWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		_ = w.watcher.Close()
		return
	}
	w.running = false

	close(w.done)
	_ = w.watcher.Close()
	w.logger.Debug("sound library watcher stopped")
}
