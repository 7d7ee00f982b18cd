package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a Config from disk whenever its file changes. It watches
// the containing directory (editors rewrite files via rename-into-place,
// which a Write-only watch on the path itself can miss), filters to the
// exact file, reloads, and pushes only genuine changes.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	current *Config
}

// NewWatcher builds a Watcher for path, loading its initial value.
func NewWatcher(path string) (*Watcher, error) {
	initial, err := Load(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", filepath.Dir(path), err)
	}
	return &Watcher{path: path, watcher: fw, current: initial}, nil
}

// Current returns the most recently loaded Config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	cpy := *w.current
	return &cpy
}

// Watch streams Configs as the underlying file changes. It returns at once;
// a background goroutine feeds both channels until ctx is canceled or the
// file watcher stops, and then closes them.
func (w *Watcher) Watch(ctx context.Context) (<-chan *Config, <-chan error) {
	changes := make(chan *Config, 1)
	errs := make(chan error, 1)

	go func() {
		defer close(changes)
		defer close(errs)
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(w.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				next, err := Load(w.path)
				if err != nil {
					errs <- err
					continue
				}
				w.mu.Lock()
				changed := !equal(w.current, next)
				w.current = next
				w.mu.Unlock()
				if changed {
					changes <- next
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				errs <- err
			case <-ctx.Done():
				return
			}
		}
	}()

	return changes, errs
}

// Close stops the underlying file watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
