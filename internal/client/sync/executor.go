package sync

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/drp-sh/drpsync/internal/utils"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultConcurrency = 4
	DefaultMaxAttempts = 5
	DefaultRetryBase   = 500 * time.Millisecond
	DefaultCallTimeout = 60 * time.Second
)

// ExecutorOptions tune the worker pool and retry policy. Zero values fall
// back to the defaults above.
type ExecutorOptions struct {
	Concurrency int
	MaxAttempts int
	RetryBase   time.Duration
	CallTimeout time.Duration
}

// Executor applies a reconciliation plan against the remote store. Actions on
// the same key are serialized through a per-key lock; the state store is
// updated only after the remote call is confirmed. A single action's failure
// never halts the rest of the plan.
type Executor struct {
	remote      RemoteStore
	store       *StateStore
	root        string
	namespace   string
	concurrency int
	maxAttempts int
	retryBase   time.Duration
	callTimeout time.Duration
	locks       *keyedMutex
}

func NewExecutor(remote RemoteStore, store *StateStore, root, namespace string, opts ExecutorOptions) *Executor {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = DefaultRetryBase
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	return &Executor{
		remote:      remote,
		store:       store,
		root:        root,
		namespace:   namespace,
		concurrency: opts.Concurrency,
		maxAttempts: opts.MaxAttempts,
		retryBase:   opts.RetryBase,
		callTimeout: opts.CallTimeout,
		locks:       newKeyedMutex(),
	}
}

// Apply runs the plan. Renames and deletes complete before uploads start, so
// an old key is torn down before any new key for the same content appears.
func (e *Executor) Apply(ctx context.Context, plan []Action) {
	var teardown, uploads []Action
	for _, a := range plan {
		if a.Type == ActionUpload {
			uploads = append(uploads, a)
		} else {
			teardown = append(teardown, a)
		}
	}
	e.runBatch(ctx, teardown)
	e.runBatch(ctx, uploads)
}

func (e *Executor) runBatch(ctx context.Context, batch []Action) {
	if len(batch) == 0 {
		return
	}
	g := new(errgroup.Group)
	g.SetLimit(e.concurrency)
	for _, action := range batch {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			e.apply(ctx, action)
			return nil
		})
	}
	g.Wait()
}

func (e *Executor) apply(ctx context.Context, a Action) {
	switch a.Type {
	case ActionUpload:
		e.applyUpload(ctx, a)
	case ActionDelete:
		e.applyDelete(ctx, a)
	case ActionRename:
		e.applyRename(ctx, a)
	}
}

func (e *Executor) applyUpload(ctx context.Context, a Action) {
	unlock := e.locks.Lock(a.Key)
	defer unlock()
	e.uploadLocked(ctx, a.Path, a.Key)
}

func (e *Executor) applyDelete(ctx context.Context, a Action) {
	unlock := e.locks.Lock(a.Key)
	defer unlock()

	err := e.withRetry(ctx, func(ctx context.Context) error {
		return e.remote.Delete(ctx, e.namespace, a.Key)
	})
	if err != nil && !errors.Is(err, ErrRemoteNotFound) {
		// already gone remotely counts as satisfied
		e.handleFailure(a, err)
		return
	}

	// Local absence brought us here; remote deletion is now confirmed. The
	// record leaves the store, which is the terminal Deleted transition.
	if err := e.store.Remove(a.Path); err != nil {
		slog.Error("failed to remove record", "path", a.Path, "error", err)
		return
	}
	slog.Info("sync", "op", a.Type, "path", a.Path, "key", a.Key)
}

// applyRename deletes the old key, re-homes the record under the new key as
// pending, then uploads. If the upload fails the record stays pending with
// the new key and the next reconciliation retries it; the old key is never
// resurrected.
func (e *Executor) applyRename(ctx context.Context, a Action) {
	first, second := a.OldKey, a.Key
	if second < first {
		first, second = second, first
	}
	unlockA := e.locks.Lock(first)
	defer unlockA()
	unlockB := e.locks.Lock(second)
	defer unlockB()

	err := e.withRetry(ctx, func(ctx context.Context) error {
		return e.remote.Delete(ctx, e.namespace, a.OldKey)
	})
	if err != nil && !errors.Is(err, ErrRemoteNotFound) {
		e.handleFailure(a, err)
		return
	}

	if err := e.store.Remove(a.OldPath); err != nil {
		slog.Error("failed to remove record", "path", a.OldPath, "error", err)
		return
	}
	if err := e.store.Put(&TrackedFile{
		Path:      a.Path,
		Key:       a.Key,
		Namespace: e.namespace,
		Status:    StatusPending,
	}); err != nil {
		slog.Error("failed to record rename", "path", a.Path, "error", err)
		return
	}
	slog.Info("sync", "op", a.Type, "path", a.Path, "oldKey", a.OldKey, "key", a.Key)

	e.uploadLocked(ctx, a.Path, a.Key)
}

func (e *Executor) uploadLocked(ctx context.Context, path, key string) {
	absPath := filepath.Join(e.root, path)

	hash, err := utils.FileHash(absPath)
	if err != nil {
		// locked by another process, permissions, or deleted mid-plan; the
		// next cycle retries or reconciles it away
		slog.Warn("cannot read file, will retry next cycle", "path", path, "error", err)
		return
	}
	info, err := os.Stat(absPath)
	if err != nil {
		slog.Warn("cannot stat file, will retry next cycle", "path", path, "error", err)
		return
	}

	var drop *RemoteDrop
	err = e.withRetry(ctx, func(ctx context.Context) error {
		d, err := e.remote.Upload(ctx, e.namespace, key, absPath)
		if err != nil {
			return err
		}
		drop = d
		return nil
	})
	if err != nil {
		e.handleFailure(Action{Type: ActionUpload, Path: path, Key: key}, err)
		return
	}

	if drop.Hash == "" {
		drop.Hash = hash
	}

	if err := e.store.Put(&TrackedFile{
		Path:      path,
		Key:       drop.Key,
		Namespace: e.namespace,
		Hash:      drop.Hash,
		Size:      info.Size(),
		ModTime:   info.ModTime(),
		Status:    StatusSynced,
	}); err != nil {
		slog.Error("failed to record upload", "path", path, "error", err)
		return
	}
	slog.Info("sync", "op", ActionUpload, "path", path, "key", drop.Key)
}

// handleFailure applies the error taxonomy: conflicts exclude the file until
// the user intervenes, everything else holds it pending for the next cycle.
func (e *Executor) handleFailure(a Action, err error) {
	switch {
	case errors.Is(err, ErrRemoteConflict):
		slog.Warn("remote key owned by another account, excluding from sync", "path", a.Path, "key", a.Key, "error", err)
		if putErr := e.store.Put(&TrackedFile{
			Path:      a.Path,
			Key:       a.Key,
			Namespace: e.namespace,
			Status:    StatusConflicted,
		}); putErr != nil {
			slog.Error("failed to record conflict", "path", a.Path, "error", putErr)
		}

	case errors.Is(err, ErrRemoteAuth):
		slog.Warn("authentication required, run 'drpsync login'", "path", a.Path, "error", err)
		e.holdPending(a.Path)

	case errors.Is(err, context.Canceled):
		// shutdown; the next startup reconciliation recomputes the plan

	default:
		slog.Warn("sync failed, will retry next cycle", "op", a.Type, "path", a.Path, "key", a.Key, "error", err)
		e.holdPending(a.Path)
	}
}

func (e *Executor) holdPending(path string) {
	if e.store.Get(path) == nil {
		// first upload of a new file; no record exists until it succeeds
		return
	}
	if err := e.store.SetStatus(path, StatusPending); err != nil {
		slog.Error("failed to hold record pending", "path", path, "error", err)
	}
}

// withRetry runs op with a per-call timeout, retrying transient failures
// with exponential backoff up to the attempt ceiling. Auth and validation
// failures surface immediately.
func (e *Executor) withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	backoff := e.retryBase
	for attempt := 1; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
		err := op(callCtx)
		cancel()

		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isTransient(err) || attempt >= e.maxAttempts {
			return err
		}

		slog.Debug("transient failure, backing off", "attempt", attempt, "backoff", backoff, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// keyedMutex serializes actions addressing the same remote key so an upload
// and a delete for one key can never interleave.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
