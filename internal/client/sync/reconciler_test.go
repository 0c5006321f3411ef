package sync

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, records ...*TrackedFile) *StateStore {
	t.Helper()
	store := NewStateStore(filepath.Join(t.TempDir(), "state.json"))
	for _, rec := range records {
		require.NoError(t, store.Put(rec))
	}
	return store
}

func localFile(path, hash string, mod time.Time) *LocalFile {
	return &LocalFile{Path: path, Size: int64(len(hash)), ModTime: mod, Hash: hash}
}

func syncedRecord(path, key, hash string) *TrackedFile {
	return &TrackedFile{
		Path:      path,
		Key:       key,
		Namespace: NamespaceFile,
		Hash:      hash,
		Size:      int64(len(hash)),
		Status:    StatusSynced,
	}
}

func TestReconciler_NewFileUploads(t *testing.T) {
	store := newTestStore(t)
	r := NewReconciler(store, NamespaceFile)

	local := map[string]*LocalFile{
		"notes.txt": localFile("notes.txt", "h1", time.Now()),
	}

	plan := r.Plan(local, nil)
	require.Len(t, plan, 1)
	assert.Equal(t, ActionUpload, plan[0].Type)
	assert.Equal(t, "notes.txt", plan[0].Path)
	assert.Equal(t, "notes", plan[0].Key)
}

func TestReconciler_UnchangedFileIsNoop(t *testing.T) {
	store := newTestStore(t, syncedRecord("notes.txt", "notes", "h1"))
	r := NewReconciler(store, NamespaceFile)

	local := map[string]*LocalFile{
		"notes.txt": localFile("notes.txt", "h1", time.Now()),
	}

	assert.Empty(t, r.Plan(local, nil))
}

func TestReconciler_ModifiedFileUploadsWithSameKey(t *testing.T) {
	store := newTestStore(t, syncedRecord("notes.txt", "notes", "h1"))
	r := NewReconciler(store, NamespaceFile)

	local := map[string]*LocalFile{
		"notes.txt": localFile("notes.txt", "h2", time.Now()),
	}

	plan := r.Plan(local, nil)
	require.Len(t, plan, 1)
	assert.Equal(t, ActionUpload, plan[0].Type)
	assert.Equal(t, "notes", plan[0].Key, "a modified file keeps its key")
	assert.Equal(t, StatusPending, store.Get("notes.txt").Status)
}

func TestReconciler_RemovedFileDeletes(t *testing.T) {
	store := newTestStore(t, syncedRecord("notes.txt", "notes", "h1"))
	r := NewReconciler(store, NamespaceFile)

	plan := r.Plan(map[string]*LocalFile{}, nil)
	require.Len(t, plan, 1)
	assert.Equal(t, ActionDelete, plan[0].Type)
	assert.Equal(t, "notes", plan[0].Key)
}

func TestReconciler_RenameSynthesis(t *testing.T) {
	store := newTestStore(t, syncedRecord("old.txt", "old", "h1"))
	r := NewReconciler(store, NamespaceFile)

	// same content under a new name in the same pass
	local := map[string]*LocalFile{
		"new.txt": localFile("new.txt", "h1", time.Now()),
	}

	plan := r.Plan(local, nil)
	require.Len(t, plan, 1)
	assert.Equal(t, ActionRename, plan[0].Type)
	assert.Equal(t, "new.txt", plan[0].Path)
	assert.Equal(t, "new", plan[0].Key)
	assert.Equal(t, "old.txt", plan[0].OldPath)
	assert.Equal(t, "old", plan[0].OldKey)
}

func TestReconciler_RenameRequiresMatchingSize(t *testing.T) {
	rec := syncedRecord("old.txt", "old", "h1")
	rec.Size = 999
	store := newTestStore(t, rec)
	r := NewReconciler(store, NamespaceFile)

	local := map[string]*LocalFile{
		"new.txt": localFile("new.txt", "h1", time.Now()),
	}

	// hash collision with differing size is not a rename
	plan := r.Plan(local, nil)
	require.Len(t, plan, 2)
	assert.Equal(t, ActionDelete, plan[0].Type)
	assert.Equal(t, ActionUpload, plan[1].Type)
}

func TestReconciler_KeyCollisionWithinPlan(t *testing.T) {
	store := newTestStore(t)
	r := NewReconciler(store, NamespaceFile)

	local := map[string]*LocalFile{
		"a/notes.txt": localFile("a/notes.txt", "h1", time.Now()),
		"b/notes.txt": localFile("b/notes.txt", "h2", time.Now()),
	}

	plan := r.Plan(local, nil)
	require.Len(t, plan, 2)

	keys := map[string]bool{}
	for _, a := range plan {
		assert.Equal(t, ActionUpload, a.Type)
		keys[a.Key] = true
	}
	assert.True(t, keys["notes"])
	assert.True(t, keys["notes-2"], "colliding slugs get deterministic suffixes")
}

func TestReconciler_KeyCollisionAgainstStore(t *testing.T) {
	store := newTestStore(t, syncedRecord("a/notes.txt", "notes", "h1"))
	r := NewReconciler(store, NamespaceFile)

	local := map[string]*LocalFile{
		"a/notes.txt": localFile("a/notes.txt", "h1", time.Now()),
		"b/notes.txt": localFile("b/notes.txt", "h2", time.Now()),
	}

	plan := r.Plan(local, nil)
	require.Len(t, plan, 1)
	assert.Equal(t, "notes-2", plan[0].Key)
}

func TestReconciler_StaleRemoteTriggersReupload(t *testing.T) {
	store := newTestStore(t, syncedRecord("notes.txt", "notes", "h1"))
	r := NewReconciler(store, NamespaceFile)

	local := map[string]*LocalFile{
		"notes.txt": localFile("notes.txt", "h1", time.Now()),
	}

	// remote sweep shows the key vanished
	plan := r.Plan(local, map[string]*RemoteDrop{})
	require.Len(t, plan, 1)
	assert.Equal(t, ActionUpload, plan[0].Type)
	assert.Equal(t, StatusStale, store.Get("notes.txt").Status)

	// remote sweep shows the key mutated out of band
	store2 := newTestStore(t, syncedRecord("notes.txt", "notes", "h1"))
	r2 := NewReconciler(store2, NamespaceFile)
	plan = r2.Plan(local, map[string]*RemoteDrop{
		"notes": {Key: "notes", Hash: "tampered"},
	})
	require.Len(t, plan, 1)
	assert.Equal(t, ActionUpload, plan[0].Type)
}

func TestReconciler_RemoteMatchIsNoop(t *testing.T) {
	store := newTestStore(t, syncedRecord("notes.txt", "notes", "h1"))
	r := NewReconciler(store, NamespaceFile)

	local := map[string]*LocalFile{
		"notes.txt": localFile("notes.txt", "h1", time.Now()),
	}
	remote := map[string]*RemoteDrop{
		"notes": {Key: "notes", Hash: "h1"},
	}

	assert.Empty(t, r.Plan(local, remote))
}

func TestReconciler_DivergedLocalWins(t *testing.T) {
	store := newTestStore(t, syncedRecord("notes.txt", "notes", "h1"))
	r := NewReconciler(store, NamespaceFile)

	local := map[string]*LocalFile{
		"notes.txt": localFile("notes.txt", "h2", time.Now()),
	}
	remote := map[string]*RemoteDrop{
		"notes": {Key: "notes", Hash: "h3"},
	}

	plan := r.Plan(local, remote)
	require.Len(t, plan, 1)
	assert.Equal(t, ActionUpload, plan[0].Type, "divergence resolves to a local upload")
	assert.Equal(t, StatusPending, store.Get("notes.txt").Status)
}

func TestReconciler_PendingRecordRetries(t *testing.T) {
	rec := syncedRecord("notes.txt", "notes", "h1")
	rec.Status = StatusPending
	store := newTestStore(t, rec)
	r := NewReconciler(store, NamespaceFile)

	local := map[string]*LocalFile{
		"notes.txt": localFile("notes.txt", "h1", time.Now()),
	}

	plan := r.Plan(local, nil)
	require.Len(t, plan, 1)
	assert.Equal(t, ActionUpload, plan[0].Type, "interrupted uploads converge on the next pass")
}

func TestReconciler_ConflictedRecordIsExcluded(t *testing.T) {
	rec := syncedRecord("notes.txt", "notes", "h1")
	rec.Status = StatusConflicted
	store := newTestStore(t, rec)
	r := NewReconciler(store, NamespaceFile)

	// modified on disk
	plan := r.Plan(map[string]*LocalFile{
		"notes.txt": localFile("notes.txt", "h2", time.Now()),
	}, nil)
	assert.Empty(t, plan, "conflicted files never sync")

	// removed from disk
	plan = r.Plan(map[string]*LocalFile{}, nil)
	assert.Empty(t, plan, "conflicted records never delete remotely")
}

func TestReconciler_PlanOrdering(t *testing.T) {
	now := time.Now()
	store := newTestStore(t,
		syncedRecord("old.txt", "old", "rename-me"),
		syncedRecord("gone.txt", "gone", "h9"),
	)
	r := NewReconciler(store, NamespaceFile)

	local := map[string]*LocalFile{
		"renamed.txt": localFile("renamed.txt", "rename-me", now),
		"late.txt":    localFile("late.txt", "h2", now.Add(time.Hour)),
		"early.txt":   localFile("early.txt", "h3", now.Add(-time.Hour)),
	}

	plan := r.Plan(local, nil)
	require.Len(t, plan, 4)
	assert.Equal(t, ActionRename, plan[0].Type, "renames first")
	assert.Equal(t, ActionDelete, plan[1].Type, "then deletes")
	assert.Equal(t, "early.txt", plan[2].Path, "uploads in mtime order")
	assert.Equal(t, "late.txt", plan[3].Path)
}
