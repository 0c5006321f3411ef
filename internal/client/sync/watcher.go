package sync

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/drp-sh/drpsync/internal/utils"
	"github.com/rjeczalik/notify"
)

const (
	// DefaultDebounceWindow is the per-path quiet period before a burst of
	// raw events collapses into one ChangeEvent.
	DefaultDebounceWindow = 500 * time.Millisecond

	eventBufferSize = 64
)

var ErrWatchRoot = errors.New("watch root does not exist")

// TrackedFn reports whether a relative path has a sync record. The watcher
// uses it to classify a debounced path as Created vs Modified.
type TrackedFn func(relPath string) bool

// Watcher observes the watch root recursively and emits debounced
// ChangeEvents. Classification happens at flush time by re-checking the
// filesystem, so a save-by-rename (temp file renamed over the target)
// surfaces as a single Modified on the target, never a Removed+Created pair.
type Watcher struct {
	root     string
	ignore   *IgnoreList
	tracked  TrackedFn
	debounce *debouncer
	raw      chan notify.EventInfo
	events   chan ChangeEvent
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewWatcher(root string, ignore *IgnoreList, tracked TrackedFn, window time.Duration) *Watcher {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	w := &Watcher{
		root:    root,
		ignore:  ignore,
		tracked: tracked,
		raw:     make(chan notify.EventInfo, eventBufferSize),
		events:  make(chan ChangeEvent, eventBufferSize),
		done:    make(chan struct{}),
	}
	w.debounce = newDebouncer(window, w.flush)
	return w
}

func (w *Watcher) Events() <-chan ChangeEvent {
	return w.events
}

// Start establishes the recursive watch. Failure here is fatal to the caller:
// without a watch subsystem there is nothing to sync on.
func (w *Watcher) Start() error {
	if !utils.DirExists(w.root) {
		return fmt.Errorf("%w: %s", ErrWatchRoot, w.root)
	}

	recursivePath := filepath.Join(w.root, "...")
	if err := notify.Watch(recursivePath, w.raw, notify.Create|notify.Write|notify.Remove|notify.Rename); err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}

	slog.Info("file watcher start", "dir", w.root)

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop stops accepting filesystem events immediately and cancels pending
// debounce timers. Unflushed changes are picked up by the next
// reconciliation, so nothing is silently lost.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		notify.Stop(w.raw)
		w.debounce.Stop()
		w.wg.Wait()
		slog.Info("file watcher stop")
	})
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.raw:
			if !ok {
				return
			}
			w.handleRaw(ev)
		}
	}
}

func (w *Watcher) handleRaw(ev notify.EventInfo) {
	relPath, err := filepath.Rel(w.root, ev.Path())
	if err != nil || relPath == "." || strings.HasPrefix(relPath, "..") {
		return
	}

	if w.ignore.ShouldIgnore(relPath) {
		return
	}

	// Directory events only matter for the recursive watch itself; per-file
	// events arrive separately.
	if info, err := os.Stat(ev.Path()); err == nil && info.IsDir() {
		return
	}

	w.debounce.Hit(relPath)
}

// flush classifies a quiesced path against filesystem truth and emits the
// resulting event.
func (w *Watcher) flush(relPath string) {
	absPath := filepath.Join(w.root, relPath)
	tracked := w.tracked != nil && w.tracked(relPath)

	var ev ChangeEvent
	switch {
	case utils.FileExists(absPath) && tracked:
		ev = ChangeEvent{Op: ChangeModified, Path: relPath}
	case utils.FileExists(absPath):
		ev = ChangeEvent{Op: ChangeCreated, Path: relPath}
	case tracked:
		ev = ChangeEvent{Op: ChangeRemoved, Path: relPath}
	default:
		// never tracked and already gone (temp file churn)
		return
	}

	select {
	case <-w.done:
	case w.events <- ev:
		slog.Debug("file watcher", "op", ev.Op, "path", ev.Path)
	default:
		// The periodic reconciliation sweep recovers anything dropped here.
		slog.Warn("file watcher dropped event", "reason", "channel full", "path", relPath)
	}
}
