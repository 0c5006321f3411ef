package drpsdk

import (
	"context"

	"github.com/drp-sh/drpsync/internal/utils"
	"github.com/imroc/req/v3"
)

const (
	v1Drops     = "/api/v1/drops"
	v1DropByKey = "/api/v1/drops/{key}"
	v1DropMeta  = "/api/v1/drops/{key}/meta"
)

// DropInfo describes one drop as the server sees it.
type DropInfo struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
	Hash string `json:"hash"`
}

type listResponse struct {
	Drops []*DropInfo `json:"drops"`
}

// UploadParams are the parameters for uploading a drop.
type UploadParams struct {
	Namespace string
	Key       string
	FilePath  string
}

// DropsAPI talks to the key-addressed drop store.
type DropsAPI struct {
	client *req.Client
}

func newDropsAPI(client *req.Client) *DropsAPI {
	return &DropsAPI{client: client}
}

// Upload upserts a file under the given key. The operation is idempotent:
// re-uploading the same content to the same key is a no-op server-side.
func (d *DropsAPI) Upload(ctx context.Context, params *UploadParams) (*DropInfo, error) {
	if !utils.FileExists(params.FilePath) {
		return nil, ErrFileNotFound
	}

	var info DropInfo
	resp, err := d.client.R().
		SetContext(ctx).
		SetPathParam("key", params.Key).
		SetQueryParam("ns", params.Namespace).
		SetFile("file", params.FilePath).
		SetSuccessResult(&info).
		SetErrorResult(&APIError{}).
		Put(v1DropByKey)

	if err := handleAPIError(resp, err, "drop upload"); err != nil {
		return nil, err
	}
	return &info, nil
}

// Delete removes a drop. A missing key surfaces as ErrKeyNotFound; callers
// that treat it as already-satisfied check for that sentinel.
func (d *DropsAPI) Delete(ctx context.Context, ns, key string) error {
	resp, err := d.client.R().
		SetContext(ctx).
		SetPathParam("key", key).
		SetQueryParam("ns", ns).
		SetErrorResult(&APIError{}).
		Delete(v1DropByKey)

	return handleAPIError(resp, err, "drop delete")
}

// Stat fetches existence and content hash for a key.
func (d *DropsAPI) Stat(ctx context.Context, ns, key string) (*DropInfo, error) {
	var info DropInfo
	resp, err := d.client.R().
		SetContext(ctx).
		SetPathParam("key", key).
		SetQueryParam("ns", ns).
		SetSuccessResult(&info).
		SetErrorResult(&APIError{}).
		Get(v1DropMeta)

	if err := handleAPIError(resp, err, "drop stat"); err != nil {
		return nil, err
	}
	return &info, nil
}

// List returns all drops owned by the authenticated account in a namespace.
func (d *DropsAPI) List(ctx context.Context, ns string) ([]*DropInfo, error) {
	var result listResponse
	resp, err := d.client.R().
		SetContext(ctx).
		SetQueryParam("ns", ns).
		SetSuccessResult(&result).
		SetErrorResult(&APIError{}).
		Get(v1Drops)

	if err := handleAPIError(resp, err, "drop list"); err != nil {
		return nil, err
	}
	return result.Drops, nil
}
