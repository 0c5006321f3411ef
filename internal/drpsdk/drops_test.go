package drpsdk

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSDK(t *testing.T, handler http.Handler) *SDK {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sdk, err := New(srv.URL, nil)
	require.NoError(t, err)
	t.Cleanup(sdk.Close)
	return sdk
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "drop.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDrops_Upload(t *testing.T) {
	sdk := newTestSDK(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/drops/notes", r.URL.Path)
		assert.Equal(t, "f", r.URL.Query().Get("ns"))

		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"key":"notes","size":%d,"hash":"abc"}`, len(data))
	}))

	info, err := sdk.Drops.Upload(context.Background(), &UploadParams{
		Namespace: NamespaceFile,
		Key:       "notes",
		FilePath:  writeTempFile(t, "hello"),
	})
	require.NoError(t, err)
	assert.Equal(t, "notes", info.Key)
	assert.Equal(t, int64(5), info.Size)
	assert.Equal(t, "abc", info.Hash)
}

func TestDrops_UploadMissingFile(t *testing.T) {
	sdk := newTestSDK(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))

	_, err := sdk.Drops.Upload(context.Background(), &UploadParams{
		Namespace: NamespaceFile,
		Key:       "notes",
		FilePath:  filepath.Join(t.TempDir(), "nope.txt"),
	})
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestDrops_Delete(t *testing.T) {
	sdk := newTestSDK(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/drops/notes", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, sdk.Drops.Delete(context.Background(), NamespaceFile, "notes"))
}

func TestDrops_Stat(t *testing.T) {
	sdk := newTestSDK(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/drops/notes/meta", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"key":"notes","size":5,"hash":"abc"}`)
	}))

	info, err := sdk.Drops.Stat(context.Background(), NamespaceFile, "notes")
	require.NoError(t, err)
	assert.Equal(t, "abc", info.Hash)
}

func TestDrops_List(t *testing.T) {
	sdk := newTestSDK(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/drops", r.URL.Path)
		assert.Equal(t, "f", r.URL.Query().Get("ns"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"drops":[{"key":"a","size":1,"hash":"h1"},{"key":"b","size":2,"hash":"h2"}]}`)
	}))

	drops, err := sdk.Drops.List(context.Background(), NamespaceFile)
	require.NoError(t, err)
	require.Len(t, drops, 2)
	assert.Equal(t, "a", drops[0].Key)
	assert.Equal(t, "b", drops[1].Key)
}

func TestDrops_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"not found", http.StatusNotFound, `{"code":"not_found","error":"no such key"}`, ErrKeyNotFound},
		{"conflict", http.StatusConflict, `{"code":"conflict","error":"key taken"}`, ErrKeyConflict},
		{"unauthorized", http.StatusUnauthorized, `{"code":"unauthorized","error":"bad token"}`, ErrInvalidCredentials},
		{"forbidden", http.StatusForbidden, `{"code":"forbidden","error":"not yours"}`, ErrInvalidCredentials},
		{"rate limited", http.StatusTooManyRequests, `{"code":"slow_down","error":"too fast"}`, ErrServerUnavailable},
		{"server error", http.StatusInternalServerError, `{"code":"oops","error":"boom"}`, ErrServerUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sdk := newTestSDK(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))

			_, err := sdk.Drops.Stat(context.Background(), NamespaceFile, "notes")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDrops_ConnectionRefusedIsUnavailable(t *testing.T) {
	sdk, err := New("http://127.0.0.1:1", nil)
	require.NoError(t, err)
	defer sdk.Close()

	_, err = sdk.Drops.List(context.Background(), NamespaceFile)
	assert.ErrorIs(t, err, ErrServerUnavailable)
}
