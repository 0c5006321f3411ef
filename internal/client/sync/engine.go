package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultSweepInterval is how often remote truth is re-checked for
	// staleness on top of local change handling.
	DefaultSweepInterval = 5 * time.Minute

	// NamespaceFile is the drop namespace synced files live in.
	NamespaceFile = "f"

	listTimeout = 30 * time.Second
)

// EngineOptions tune the sync engine. Zero values fall back to defaults.
type EngineOptions struct {
	Namespace      string
	DebounceWindow time.Duration
	SweepInterval  time.Duration
	Executor       ExecutorOptions
}

// Engine wires the watcher, reconciler and executor into the sync loop:
// debounced change events trigger a local reconciliation pass, a periodic
// sweep adds remote truth to catch out-of-band deletes and corruption, and
// every pass is idempotent so a crash at any point is repaired on restart.
type Engine struct {
	root          string
	namespace     string
	store         *StateStore
	scanner       *Scanner
	watcher       *Watcher
	reconciler    *Reconciler
	executor      *Executor
	remote        RemoteStore
	sweepInterval time.Duration
	muSync        sync.Mutex
	wg            sync.WaitGroup
}

func NewEngine(root string, store *StateStore, remote RemoteStore, ignore *IgnoreList, opts EngineOptions) *Engine {
	if opts.Namespace == "" {
		opts.Namespace = NamespaceFile
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}

	tracked := func(relPath string) bool {
		return store.Get(relPath) != nil
	}

	return &Engine{
		root:          root,
		namespace:     opts.Namespace,
		store:         store,
		scanner:       NewScanner(root, ignore),
		watcher:       NewWatcher(root, ignore, tracked, opts.DebounceWindow),
		reconciler:    NewReconciler(store, opts.Namespace),
		executor:      NewExecutor(remote, store, root, opts.Namespace, opts.Executor),
		remote:        remote,
		sweepInterval: opts.SweepInterval,
	}
}

// Start loads persisted state, runs the startup reconciliation (with remote
// truth), then starts the watcher and the periodic sweep. It returns an
// error only when the watch subsystem cannot be established; that is fatal.
func (e *Engine) Start(ctx context.Context) error {
	slog.Info("sync engine start", "dir", e.root, "ns", e.namespace)

	if err := e.store.Load(); err != nil {
		return fmt.Errorf("load state store: %w", err)
	}

	// Startup reconciliation recomputes truth from scratch: untracked files
	// become creations, missing files become deletions, stale keys are
	// re-uploaded. This closes the crash window of any previous run.
	if err := e.runSync(ctx, true); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("initial sync failed", "error", err)
	}

	if err := e.watcher.Start(); err != nil {
		return err
	}

	e.wg.Add(1)
	go e.watchLoop(ctx)

	e.wg.Add(1)
	go e.sweepLoop(ctx)

	return nil
}

// Stop halts event intake immediately and gives in-flight actions a bounded
// grace period. Abandoning queued actions is safe: the next startup
// reconciliation recomputes the full plan from truth.
func (e *Engine) Stop(grace time.Duration) {
	slog.Info("sync engine stop")
	e.watcher.Stop()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		slog.Warn("grace period elapsed, abandoning queued actions")
	}
}

// Tracked returns a point-in-time snapshot of the tracked-file table.
func (e *Engine) Tracked() map[string]*TrackedFile {
	return e.store.Snapshot()
}

func (e *Engine) watchLoop(ctx context.Context) {
	defer e.wg.Done()
	events := e.watcher.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}

			batch := []ChangeEvent{ev}
		drain:
			for {
				select {
				case next, ok := <-events:
					if !ok {
						break drain
					}
					batch = append(batch, next)
				default:
					break drain
				}
			}

			for _, b := range batch {
				slog.Debug("change", "op", b.Op, "path", b.Path)
			}

			if err := e.runSync(ctx, false); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("sync failed", "error", err)
			}
		}
	}
}

func (e *Engine) sweepLoop(ctx context.Context) {
	defer e.wg.Done()

	// timer instead of ticker to avoid queued ticks when a pass takes longer
	// than the interval
	timer := time.NewTimer(e.sweepInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if err := e.runSync(ctx, true); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("sweep failed", "error", err)
			}
			timer.Reset(e.sweepInterval)
		}
	}
}

// runSync executes one reconciliation pass. Only one computation runs at a
// time; state mutation stays logically single-threaded.
func (e *Engine) runSync(ctx context.Context, includeRemote bool) error {
	e.muSync.Lock()
	defer e.muSync.Unlock()

	tstart := time.Now()

	local, err := e.scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan local state: %w", err)
	}

	var remote map[string]*RemoteDrop
	if includeRemote {
		listCtx, cancel := context.WithTimeout(ctx, listTimeout)
		drops, err := e.remote.List(listCtx, e.namespace)
		cancel()
		if err != nil {
			// proceed local-only; the next sweep retries
			slog.Warn("remote sweep failed, reconciling local only", "error", err)
		} else {
			remote = make(map[string]*RemoteDrop, len(drops))
			for _, d := range drops {
				remote[d.Key] = d
			}
		}
	}

	plan := e.reconciler.Plan(local, remote)
	if len(plan) == 0 {
		return nil
	}

	e.executor.Apply(ctx, plan)

	var uploads, deletes, renames int
	for _, a := range plan {
		switch a.Type {
		case ActionUpload:
			uploads++
		case ActionDelete:
			deletes++
		case ActionRename:
			renames++
		}
	}
	slog.Info("sync pass",
		"took", time.Since(tstart),
		"uploads", uploads,
		"deletes", deletes,
		"renames", renames,
		"tracked", e.store.Len(),
	)
	return nil
}
