package sync

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestWatcher(t *testing.T, root string, tracked map[string]bool) *Watcher {
	t.Helper()
	ignore := NewIgnoreList(root, nil)
	trackedFn := func(relPath string) bool { return tracked[relPath] }

	w := NewWatcher(root, ignore, trackedFn, 50*time.Millisecond)
	require.NoError(t, w.Start())
	t.Cleanup(w.Stop)
	return w
}

func waitEvent(t *testing.T, w *Watcher) ChangeEvent {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change event")
		return ChangeEvent{}
	}
}

func TestWatcher_MissingRootIsFatal(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nope")
	w := NewWatcher(root, NewIgnoreList(root, nil), nil, 0)
	err := w.Start()
	require.ErrorIs(t, err, ErrWatchRoot)
}

func TestWatcher_CreatedEvent(t *testing.T) {
	root := t.TempDir()
	w := startTestWatcher(t, root, map[string]bool{})

	require.NoError(t, os.WriteFile(filepath.Join(root, "new.txt"), []byte("hello"), 0o644))

	ev := waitEvent(t, w)
	assert.Equal(t, ChangeCreated, ev.Op)
	assert.Equal(t, "new.txt", ev.Path)
}

func TestWatcher_ModifiedEvent(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("v1"), 0o644))

	w := startTestWatcher(t, root, map[string]bool{"a.txt": true})

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("v2"), 0o644))

	ev := waitEvent(t, w)
	assert.Equal(t, ChangeModified, ev.Op)
	assert.Equal(t, "a.txt", ev.Path)
}

func TestWatcher_RemovedEvent(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	w := startTestWatcher(t, root, map[string]bool{"a.txt": true})

	require.NoError(t, os.Remove(path))

	ev := waitEvent(t, w)
	assert.Equal(t, ChangeRemoved, ev.Op)
	assert.Equal(t, "a.txt", ev.Path)
}

func TestWatcher_SaveByRenameIsModified(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "doc.txt")
	require.NoError(t, os.WriteFile(target, []byte("v1"), 0o644))

	w := startTestWatcher(t, root, map[string]bool{"doc.txt": true})

	// editor-style atomic save: write temp, rename over target
	tmp := filepath.Join(root, "doc.txt.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("v2"), 0o644))
	require.NoError(t, os.Rename(tmp, target))

	ev := waitEvent(t, w)
	assert.Equal(t, ChangeModified, ev.Op, "save-by-rename must not surface as created/removed")
	assert.Equal(t, "doc.txt", ev.Path)
}

func TestWatcher_IgnoredPathsProduceNoEvents(t *testing.T) {
	root := t.TempDir()
	w := startTestWatcher(t, root, map[string]bool{})

	require.NoError(t, os.WriteFile(filepath.Join(root, "scratch.tmp"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".DS_Store"), []byte("x"), 0o644))

	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event for ignored path: %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_BurstCollapses(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "busy.txt")
	w := startTestWatcher(t, root, map[string]bool{})

	// rapid successive writes within the debounce window
	for i := 0; i < 10; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte(i)}, 0o644))
	}

	ev := waitEvent(t, w)
	assert.Equal(t, ChangeCreated, ev.Op)
	assert.Equal(t, "busy.txt", ev.Path)

	select {
	case ev := <-w.Events():
		t.Fatalf("burst produced more than one event: %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	root := t.TempDir()
	w := startTestWatcher(t, root, map[string]bool{})
	w.Stop()
	w.Stop()
}
