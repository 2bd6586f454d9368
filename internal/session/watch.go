package session

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/davral/lexqa-go/internal/index"
)

// watcher evicts cached indexes when their source files change on disk.
// Watches are registered per file; the event loop runs until close.
type watcher struct {
	fs      *fsnotify.Watcher
	indexes *index.Manager

	mu   sync.Mutex
	keys map[string]string // absolute path -> doc key

	done chan struct{}
}

func newWatcher(indexes *index.Manager) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("session: create watcher: %w", err)
	}
	w := &watcher{
		fs:      fsw,
		indexes: indexes,
		keys:    make(map[string]string),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// add registers a file for watching under its document key.
func (w *watcher) add(path, docKey string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("session: resolve %s: %w", path, err)
	}

	w.mu.Lock()
	_, known := w.keys[abs]
	w.keys[abs] = docKey
	w.mu.Unlock()
	if known {
		return nil
	}

	if err := w.fs.Add(abs); err != nil {
		return fmt.Errorf("session: watch %s: %w", abs, err)
	}
	return nil
}

// rekey updates the document key for an already watched path after a rebuild.
func (w *watcher) rekey(path, docKey string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	w.mu.Lock()
	if _, ok := w.keys[abs]; ok {
		w.keys[abs] = docKey
	}
	w.mu.Unlock()
}

// loop consumes filesystem events, evicting the index for any watched file
// that was written, replaced, or removed.
func (w *watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.Lock()
			key, watched := w.keys[ev.Name]
			w.mu.Unlock()
			if watched {
				w.indexes.Invalidate(key)
			}
		case _, ok := <-w.fs.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *watcher) close() error {
	close(w.done)
	return w.fs.Close()
}
