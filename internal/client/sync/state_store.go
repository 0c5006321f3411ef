package sync

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/drp-sh/drpsync/internal/utils"
	json "github.com/goccy/go-json"
)

const stateVersion = 1

// stateSnapshot is the on-disk format: one complete, internally consistent
// snapshot of every tracked file.
type stateSnapshot struct {
	Version int                     `json:"version"`
	SavedAt time.Time               `json:"savedAt"`
	Files   map[string]*TrackedFile `json:"files"`
}

// StateStore is the durable mapping from local path to the last confirmed
// sync record. Mutations persist a full snapshot with write-then-rename, so a
// crash mid-save never leaves a partial file visible on the next load.
type StateStore struct {
	path  string
	mu    sync.RWMutex
	files map[string]*TrackedFile
}

func NewStateStore(path string) *StateStore {
	return &StateStore{
		path:  path,
		files: make(map[string]*TrackedFile),
	}
}

// Load reads the persisted snapshot. A missing or corrupt snapshot is not
// fatal: reconciliation rebuilds truth from the filesystem and the remote
// store, so corruption is logged and treated as empty state.
func (s *StateStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files = make(map[string]*TrackedFile)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("state store unreadable, starting empty", "path", s.path, "error", err)
		}
		return nil
	}

	var snap stateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		slog.Warn("state store corrupt, starting empty", "path", s.path, "error", err)
		return nil
	}

	for path, f := range snap.Files {
		if f == nil || path == "" {
			continue
		}
		f.Path = path
		s.files[path] = f
	}

	slog.Debug("state store loaded", "path", s.path, "files", len(s.files))
	return nil
}

// Get returns a copy of the record for path, or nil if untracked.
func (s *StateStore) Get(path string) *TrackedFile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.files[path].Clone()
}

// Put records f and persists the snapshot. Callers must only put records for
// confirmed remote state.
func (s *StateStore) Put(f *TrackedFile) error {
	if f == nil || f.Path == "" {
		return fmt.Errorf("cannot put empty record")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[f.Path] = f.Clone()
	return s.saveLocked()
}

// Remove drops the record for path and persists the snapshot.
func (s *StateStore) Remove(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
	return s.saveLocked()
}

// SetStatus flips the lifecycle status of an existing record. It is a no-op
// for untracked paths.
func (s *StateStore) SetStatus(path string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[path]
	if !ok || f.Status == status {
		return nil
	}
	f.Status = status
	return s.saveLocked()
}

// Snapshot returns a point-in-time copy of the full state, safe to read
// while the sync loop keeps writing.
func (s *StateStore) Snapshot() map[string]*TrackedFile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*TrackedFile, len(s.files))
	for path, f := range s.files {
		out[path] = f.Clone()
	}
	return out
}

func (s *StateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// KeyOwner reports which path currently holds key, if any.
func (s *StateStore) KeyOwner(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for path, f := range s.files {
		if f.Key == key {
			return path, true
		}
	}
	return "", false
}

func (s *StateStore) saveLocked() error {
	snap := stateSnapshot{
		Version: stateVersion,
		SavedAt: time.Now().UTC(),
		Files:   s.files,
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if err := utils.WriteFileAtomic(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}
