package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/drp-sh/drpsync/internal/client/sync"
	"github.com/drp-sh/drpsync/internal/drpsdk"
)

// remoteStore adapts the drp SDK to the engine's RemoteStore capability,
// mapping SDK errors onto the engine's failure taxonomy.
type remoteStore struct {
	drops *drpsdk.DropsAPI
}

func newRemoteStore(sdk *drpsdk.SDK) *remoteStore {
	return &remoteStore{drops: sdk.Drops}
}

var _ sync.RemoteStore = (*remoteStore)(nil)

func (r *remoteStore) Upload(ctx context.Context, ns, key, filePath string) (*sync.RemoteDrop, error) {
	info, err := r.drops.Upload(ctx, &drpsdk.UploadParams{
		Namespace: ns,
		Key:       key,
		FilePath:  filePath,
	})
	if err != nil {
		return nil, mapRemoteErr(err)
	}
	return &sync.RemoteDrop{Key: info.Key, Size: info.Size, Hash: info.Hash}, nil
}

func (r *remoteStore) Delete(ctx context.Context, ns, key string) error {
	if err := r.drops.Delete(ctx, ns, key); err != nil {
		return mapRemoteErr(err)
	}
	return nil
}

func (r *remoteStore) Stat(ctx context.Context, ns, key string) (*sync.RemoteDrop, error) {
	info, err := r.drops.Stat(ctx, ns, key)
	if err != nil {
		return nil, mapRemoteErr(err)
	}
	return &sync.RemoteDrop{Key: info.Key, Size: info.Size, Hash: info.Hash}, nil
}

func (r *remoteStore) List(ctx context.Context, ns string) ([]*sync.RemoteDrop, error) {
	infos, err := r.drops.List(ctx, ns)
	if err != nil {
		return nil, mapRemoteErr(err)
	}
	drops := make([]*sync.RemoteDrop, 0, len(infos))
	for _, info := range infos {
		drops = append(drops, &sync.RemoteDrop{Key: info.Key, Size: info.Size, Hash: info.Hash})
	}
	return drops, nil
}

func mapRemoteErr(err error) error {
	switch {
	case errors.Is(err, drpsdk.ErrKeyNotFound):
		return fmt.Errorf("%w: %v", sync.ErrRemoteNotFound, err)
	case errors.Is(err, drpsdk.ErrKeyConflict):
		return fmt.Errorf("%w: %v", sync.ErrRemoteConflict, err)
	case errors.Is(err, drpsdk.ErrInvalidCredentials), errors.Is(err, drpsdk.ErrNoRefreshToken):
		return fmt.Errorf("%w: %v", sync.ErrRemoteAuth, err)
	case errors.Is(err, drpsdk.ErrServerUnavailable):
		return fmt.Errorf("%w: %v", sync.ErrRemoteUnavailable, err)
	default:
		return err
	}
}
