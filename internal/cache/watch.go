package cache

import (
	"log"

	"github.com/fsnotify/fsnotify"
)

// Watcher feeds filesystem write/remove events into Cache invalidation, an
// optional fast path alongside plain version-marker comparison on read.
type Watcher struct {
	fsw *fsnotify.Watcher
	c   *Cache
	done chan struct{}
}

// NewWatcher wraps an fsnotify.Watcher. Failure to start the underlying
// watcher is not fatal to the engine — version-marker comparison on read
// still catches staleness — so callers may ignore a non-nil error and run
// without the fast path.
func NewWatcher(c *Cache) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{fsw: fsw, c: c, done: make(chan struct{})}
	go w.run()
	return w, nil
}

// Add registers a directory for invalidation events.
func (w *Watcher) Add(path string) error {
	return w.fsw.Add(path)
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.c.InvalidatePath(event.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("cache: watch error: %v", err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
