package sync

import "time"

// Status describes where a tracked file sits in its sync lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusSynced     Status = "synced"
	StatusStale      Status = "stale"
	StatusConflicted Status = "conflicted"
	StatusDeleted    Status = "deleted"
)

// TrackedFile is the last confirmed sync record for one local path. It is
// owned by the StateStore; everything handed out is a copy.
type TrackedFile struct {
	Path      string    `json:"path"` // relative to the watch root
	Key       string    `json:"key"`
	Namespace string    `json:"ns"`
	Hash      string    `json:"hash"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"modTime"`
	Status    Status    `json:"status"`
}

func (t *TrackedFile) Clone() *TrackedFile {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
