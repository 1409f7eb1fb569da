package predictor

import (
	"sync"
	"time"

	"github.com/standardbeagle/fileforge/internal/types"
)

// AccessWindow is the append-only sliding window of access events named in
// spec.md §4.G signal source 1, trimmed by both age and a maximum size
// under a brief exclusive lock per spec.md §5.
type AccessWindow struct {
	mu      sync.Mutex
	events  []types.AccessPatternEvent
	maxSize int
	maxAge  time.Duration
}

// NewAccessWindow builds a window retaining at most maxSize events no
// older than maxAge.
func NewAccessWindow(maxSize int, maxAge time.Duration) *AccessWindow {
	if maxSize <= 0 {
		maxSize = 500
	}
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &AccessWindow{maxSize: maxSize, maxAge: maxAge}
}

// Record appends one event and trims the window.
func (w *AccessWindow) Record(e types.AccessPatternEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, e)
	w.trimLocked(e.Timestamp)
}

func (w *AccessWindow) trimLocked(now time.Time) {
	cutoff := now.Add(-w.maxAge)
	start := 0
	for start < len(w.events) && w.events[start].Timestamp.Before(cutoff) {
		start++
	}
	if start > 0 {
		w.events = append([]types.AccessPatternEvent{}, w.events[start:]...)
	}
	if over := len(w.events) - w.maxSize; over > 0 {
		w.events = append([]types.AccessPatternEvent{}, w.events[over:]...)
	}
}

// Snapshot returns a copy of the current window, oldest first.
func (w *AccessWindow) Snapshot() []types.AccessPatternEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]types.AccessPatternEvent, len(w.events))
	copy(out, w.events)
	return out
}

// RecentPaths returns up to limit distinct paths touched in the
// window, most-recently-touched first, used to assemble locality
// candidates without re-reading the whole window per trigger.
func (w *AccessWindow) RecentPaths(limit int) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for i := len(w.events) - 1; i >= 0 && len(out) < limit; i-- {
		p := w.events[i].AbsPath
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
