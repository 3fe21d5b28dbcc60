package store

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"hallpass/pkg/logging"
)

// debounceInterval is the time to wait after the last token-file change
// before notifying, so a write immediately followed by a rename counts once.
const debounceInterval = 500 * time.Millisecond

// Watcher monitors the token file for writes by other processes. Two open
// sessions of the same application share the token file with
// last-writer-wins semantics; the watcher lets a session notice that another
// process logged in or out instead of silently diverging.
type Watcher struct {
	mu        sync.Mutex
	tokenPath string
	onChange  func()

	fsWatcher *fsnotify.Watcher
	stopCh    chan struct{}
	running   bool

	debounceMu    sync.Mutex
	debounceTimer *time.Timer
}

// NewWatcher creates a watcher for the given token store. onChange is called
// (debounced) whenever the token file is written, created, or removed.
func NewWatcher(tokens *TokenStore, onChange func()) *Watcher {
	return &Watcher{
		tokenPath: tokens.Path(),
		onChange:  onChange,
	}
}

// Start begins watching the token file's directory.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := fsWatcher.Add(filepath.Dir(w.tokenPath)); err != nil {
		fsWatcher.Close()
		return err
	}

	w.fsWatcher = fsWatcher
	w.stopCh = make(chan struct{})
	w.running = true

	go w.processEvents(fsWatcher.Events, fsWatcher.Errors)

	logging.Debug("TokenWatcher", "Watching %s for external changes", w.tokenPath)
	return nil
}

// processEvents handles fsnotify events. The channels are passed as
// parameters to avoid race conditions with Stop().
func (w *Watcher) processEvents(eventsCh <-chan fsnotify.Event, errorsCh <-chan error) {
	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-eventsCh:
			if !ok {
				return
			}
			if event.Name != w.tokenPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logging.Debug("TokenWatcher", "Token file changed externally (%s)", event.Op)
			w.notifyDebounced()

		case err, ok := <-errorsCh:
			if !ok {
				return
			}
			logging.Error("TokenWatcher", err, "fsnotify error")
		}
	}
}

func (w *Watcher) notifyDebounced() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(debounceInterval, func() {
		w.mu.Lock()
		running := w.running
		callback := w.onChange
		w.mu.Unlock()

		if running && callback != nil {
			callback()
		}
	})
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	w.running = false
	close(w.stopCh)

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
	w.debounceMu.Unlock()

	if w.fsWatcher != nil {
		_ = w.fsWatcher.Close()
		w.fsWatcher = nil
	}
}
