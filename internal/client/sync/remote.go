package sync

import (
	"context"
	"errors"
	"net"
)

// Remote store failure classes. Implementations of RemoteStore wrap their
// transport errors with these sentinels so the executor can pick the right
// policy: retry, hold pending, or exclude.
var (
	ErrRemoteNotFound    = errors.New("remote: key not found")
	ErrRemoteConflict    = errors.New("remote: key owned by another account")
	ErrRemoteAuth        = errors.New("remote: authentication required")
	ErrRemoteUnavailable = errors.New("remote: temporarily unavailable")
)

// RemoteDrop is the remote store's view of one drop.
type RemoteDrop struct {
	Key  string
	Size int64
	Hash string
}

// RemoteStore is the capability the engine needs from the drop server.
// Upload is an idempotent upsert keyed by (namespace, key).
type RemoteStore interface {
	Upload(ctx context.Context, ns, key, filePath string) (*RemoteDrop, error)
	Delete(ctx context.Context, ns, key string) error
	Stat(ctx context.Context, ns, key string) (*RemoteDrop, error)
	List(ctx context.Context, ns string) ([]*RemoteDrop, error)
}

// isTransient reports whether an error is worth retrying with backoff.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRemoteUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
