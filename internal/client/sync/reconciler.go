package sync

import (
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

type ActionType uint8

const (
	ActionUpload ActionType = iota
	ActionDelete
	ActionRename
)

var actionTypeNames = []string{
	"Upload",
	"Delete",
	"Rename",
}

func (t ActionType) String() string {
	if int(t) < len(actionTypeNames) {
		return actionTypeNames[t]
	}
	return "Unknown"
}

// Action is one step of an ordered reconciliation plan.
type Action struct {
	Type    ActionType
	Path    string // tracked path; for renames the new path
	Key     string // target key; for deletes the key to remove
	OldPath string // renames only
	OldKey  string // renames only
	ModTime time.Time
}

// Reconciler computes the delta between filesystem truth, the state store,
// and (when a sweep supplies it) remote truth, and emits an ordered plan.
// Only detection bookkeeping (Pending/Stale flags) is written here; sync
// progress itself is persisted by the executor after remote confirmation.
type Reconciler struct {
	store     *StateStore
	namespace string
}

func NewReconciler(store *StateStore, namespace string) *Reconciler {
	return &Reconciler{
		store:     store,
		namespace: namespace,
	}
}

// Plan compares local against the store, and against remote when non-nil.
// The plan is deterministic: renames first, then deletes, then uploads by
// ascending local modification time. Running an executed plan's inputs
// through Plan again yields an empty plan.
func (r *Reconciler) Plan(local map[string]*LocalFile, remote map[string]*RemoteDrop) []Action {
	journal := r.store.Snapshot()

	paths := mapset.NewThreadUnsafeSet[string]()
	for p := range local {
		paths.Add(p)
	}
	for p := range journal {
		paths.Add(p)
	}
	sorted := paths.ToSlice()
	sort.Strings(sorted)

	var uploads []Action

	// untracked new paths (sorted) and tracked paths gone from disk
	var created []string
	removed := make(map[string]*TrackedFile)

	for _, path := range sorted {
		lf, onDisk := local[path]
		rec, tracked := journal[path]

		switch {
		case onDisk && !tracked:
			created = append(created, path)

		case !onDisk && tracked:
			if rec.Status == StatusConflicted {
				continue
			}
			removed[path] = rec

		default:
			if rec.Status == StatusConflicted {
				continue
			}

			localChanged := lf.Hash != rec.Hash
			remoteChanged := false
			if remote != nil {
				rd := remote[rec.Key]
				remoteChanged = rd == nil || rd.Hash != rec.Hash
			}

			switch {
			case localChanged && remoteChanged:
				// Both sides diverged since the last confirmed sync. Local is
				// authoritative: the local content overwrites the remote drop.
				slog.Warn("divergent changes, local wins", "path", path, "key", rec.Key)
				r.flag(path, StatusPending)
				uploads = append(uploads, uploadAction(path, rec.Key, lf))

			case localChanged:
				r.flag(path, StatusPending)
				uploads = append(uploads, uploadAction(path, rec.Key, lf))

			case remoteChanged && rec.Status == StatusSynced:
				// Remote drop vanished or mutated out of band while the local
				// file is untouched: stale, schedule re-upload.
				slog.Info("remote key stale, scheduling re-upload", "path", path, "key", rec.Key)
				r.flag(path, StatusStale)
				uploads = append(uploads, uploadAction(path, rec.Key, lf))

			case rec.Status != StatusSynced:
				// Pending or stale from an interrupted run; converge.
				uploads = append(uploads, uploadAction(path, rec.Key, lf))
			}
		}
	}

	// Keys assigned within this plan also count as taken, so two new files
	// with colliding slugs get distinct keys.
	claimed := make(map[string]string)
	owner := func(key string) (string, bool) {
		if path, ok := claimed[key]; ok {
			return path, true
		}
		return r.store.KeyOwner(key)
	}

	var renames []Action

	// A removed record whose content hash matches a new untracked file is a
	// rename: tear down the old key, create the one derived from the new name.
	for _, path := range created {
		lf := local[path]
		var oldPath string
		for p, rec := range removed {
			if rec.Hash == lf.Hash && rec.Size == lf.Size {
				oldPath = p
				break
			}
		}

		key := UniqueKey(filepath.Base(path), path, owner)
		claimed[key] = path

		if oldPath != "" {
			rec := removed[oldPath]
			delete(removed, oldPath)
			renames = append(renames, Action{
				Type:    ActionRename,
				Path:    path,
				Key:     key,
				OldPath: oldPath,
				OldKey:  rec.Key,
				ModTime: lf.ModTime,
			})
			continue
		}

		uploads = append(uploads, uploadAction(path, key, lf))
	}

	var deletes []Action
	for path, rec := range removed {
		deletes = append(deletes, Action{
			Type: ActionDelete,
			Path: path,
			Key:  rec.Key,
		})
	}
	sort.Slice(deletes, func(i, j int) bool { return deletes[i].Path < deletes[j].Path })
	sort.Slice(renames, func(i, j int) bool { return renames[i].Path < renames[j].Path })

	// Uploads in ascending mtime order for predictable, bandwidth-friendly
	// batching.
	sort.Slice(uploads, func(i, j int) bool {
		if uploads[i].ModTime.Equal(uploads[j].ModTime) {
			return uploads[i].Path < uploads[j].Path
		}
		return uploads[i].ModTime.Before(uploads[j].ModTime)
	})

	plan := make([]Action, 0, len(renames)+len(deletes)+len(uploads))
	plan = append(plan, renames...)
	plan = append(plan, deletes...)
	plan = append(plan, uploads...)
	return plan
}

func uploadAction(path, key string, lf *LocalFile) Action {
	return Action{
		Type:    ActionUpload,
		Path:    path,
		Key:     key,
		ModTime: lf.ModTime,
	}
}

func (r *Reconciler) flag(path string, status Status) {
	if err := r.store.SetStatus(path, status); err != nil {
		slog.Warn("failed to flag record", "path", path, "status", status, "error", err)
	}
}
