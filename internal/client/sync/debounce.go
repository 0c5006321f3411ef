package sync

import (
	"sync"
	"time"
)

// debouncer coalesces rapid successive hits on the same path into a single
// fire after a quiet period. A burst of raw write events on one file becomes
// one logical change.
type debouncer struct {
	window  time.Duration
	fire    func(path string)
	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

func newDebouncer(window time.Duration, fire func(string)) *debouncer {
	return &debouncer{
		window: window,
		fire:   fire,
		timers: make(map[string]*time.Timer),
	}
}

// Hit registers a raw event for path, resetting its quiet-period timer.
func (d *debouncer) Hit(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if t, ok := d.timers[path]; ok {
		t.Stop()
	}
	d.timers[path] = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		if d.stopped {
			d.mu.Unlock()
			return
		}
		delete(d.timers, path)
		d.mu.Unlock()
		d.fire(path)
	})
}

// Pending returns the number of paths waiting out their quiet period.
func (d *debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// Stop cancels all pending timers. Unflushed paths are recovered by the next
// reconciliation pass.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for path, t := range d.timers {
		t.Stop()
		delete(d.timers, path)
	}
}
