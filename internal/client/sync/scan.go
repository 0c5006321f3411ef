package sync

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/drp-sh/drpsync/internal/utils"
	lru "github.com/hashicorp/golang-lru/v2"
)

const hashCacheSize = 4096

// LocalFile is one filesystem entry as seen by a scan.
type LocalFile struct {
	Path    string // relative to the scan root
	Size    int64
	ModTime time.Time
	Hash    string
}

// Scanner walks the watch root and builds the filesystem view for
// reconciliation. Content hashes are cached by path+size+mtime so unchanged
// files are not re-read on every pass.
type Scanner struct {
	root   string
	ignore *IgnoreList
	hashes *lru.Cache[string, string]
}

func NewScanner(root string, ignore *IgnoreList) *Scanner {
	cache, _ := lru.New[string, string](hashCacheSize)
	return &Scanner{
		root:   root,
		ignore: ignore,
		hashes: cache,
	}
}

// Scan returns the current local state keyed by relative path. Per-file read
// errors are logged and skipped; the file is retried on the next cycle.
func (s *Scanner) Scan(ctx context.Context) (map[string]*LocalFile, error) {
	state := make(map[string]*LocalFile)

	walkFn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.root {
				return fmt.Errorf("walk root: %w", err)
			}
			slog.Warn("scan skipping entry", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		relPath, err := filepath.Rel(s.root, path)
		if err != nil {
			return nil
		}

		if d.IsDir() {
			if relPath != "." && s.ignore.ShouldIgnore(relPath+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if s.ignore.ShouldIgnore(relPath) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			slog.Warn("scan stat failed", "path", relPath, "error", err)
			return nil
		}

		hash, err := s.hashFor(path, info.Size(), info.ModTime())
		if err != nil {
			slog.Warn("scan hash failed, will retry next cycle", "path", relPath, "error", err)
			return nil
		}

		state[relPath] = &LocalFile{
			Path:    relPath,
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Hash:    hash,
		}
		return nil
	}

	if err := filepath.WalkDir(s.root, walkFn); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *Scanner) hashFor(absPath string, size int64, modTime time.Time) (string, error) {
	cacheKey := fmt.Sprintf("%s|%d|%d", absPath, size, modTime.UnixNano())
	if hash, ok := s.hashes.Get(cacheKey); ok {
		return hash, nil
	}

	hash, err := utils.FileHash(absPath)
	if err != nil {
		return "", err
	}
	s.hashes.Add(cacheKey, hash)
	return hash, nil
}
