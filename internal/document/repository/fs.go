package repository

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/gogotex/docstore/pkg/logger"
)

const (
	recordExt  = ".doc"
	tempPrefix = ".tmp-"
)

// FileRepo stores each document as <dir>/<key>.doc on an afero filesystem.
// Writes land in a temp file in the same directory and are renamed into
// place after an fsync, so a crash never leaves a half-written record under
// a record name.
type FileRepo struct {
	fs  afero.Fs
	dir string
}

// NewFileRepo prepares dir on fsys and removes temp files left behind by an
// interrupted write.
func NewFileRepo(fsys afero.Fs, dir string) (*FileRepo, error) {
	exists, err := afero.DirExists(fsys, dir)
	if err != nil {
		return nil, fault("open", 0, err)
	}
	if !exists {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return nil, fault("open", 0, err)
		}
	}
	r := &FileRepo{fs: fsys, dir: dir}
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, fault("open", 0, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		logger.Warnf("removing stale temp file %s", e.Name())
		if err := fsys.Remove(filepath.Join(dir, e.Name())); err != nil {
			return nil, fault("open", 0, err)
		}
	}
	return r, nil
}

func (r *FileRepo) path(id uint64) string {
	return filepath.Join(r.dir, Key(id)+recordExt)
}

func (r *FileRepo) Put(ctx context.Context, id uint64, data []byte) error {
	if err := ctx.Err(); err != nil {
		return fault("put", id, err)
	}
	tmp, err := afero.TempFile(r.fs, r.dir, tempPrefix)
	if err != nil {
		return fault("put", id, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = r.fs.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fault("put", id, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fault("put", id, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fault("put", id, err)
	}
	if err := r.fs.Rename(tmpName, r.path(id)); err != nil {
		cleanup()
		return fault("put", id, err)
	}
	r.syncDir()
	return nil
}

// syncDir flushes the directory entry so a rename survives a crash. Not all
// filesystems support syncing a directory; failures are ignored.
func (r *FileRepo) syncDir() {
	d, err := r.fs.Open(r.dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

func (r *FileRepo) Get(ctx context.Context, id uint64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fault("get", id, err)
	}
	b, err := afero.ReadFile(r.fs, r.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(id)
		}
		return nil, fault("get", id, err)
	}
	return b, nil
}

func (r *FileRepo) Delete(ctx context.Context, id uint64) error {
	if err := ctx.Err(); err != nil {
		return fault("delete", id, err)
	}
	if err := r.fs.Remove(r.path(id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return notFound(id)
		}
		return fault("delete", id, err)
	}
	r.syncDir()
	return nil
}

// Keys lists record ids in ascending order. Files that do not look like
// records are ignored.
func (r *FileRepo) Keys(ctx context.Context) ([]uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, fault("keys", 0, err)
	}
	entries, err := afero.ReadDir(r.fs, r.dir)
	if err != nil {
		return nil, fault("keys", 0, err)
	}
	ids := make([]uint64, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, recordExt) {
			continue
		}
		id, ok := ParseKey(strings.TrimSuffix(name, recordExt))
		if !ok {
			logger.Debugf("ignoring unexpected file %s in %s", name, r.dir)
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *FileRepo) Clear(ctx context.Context) (int, error) {
	ids, err := r.Keys(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, id := range ids {
		if err := r.fs.Remove(r.path(id)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return removed, fault("clear", id, err)
		}
		removed++
	}
	r.syncDir()
	return removed, nil
}

func (r *FileRepo) Close() error { return nil }

var _ Repository = (*FileRepo)(nil)
