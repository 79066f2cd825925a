package repository

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/gogotex/docstore/internal/storage"
)

// ObjectStore is the slice of an object storage client the minio backend
// needs. *storage.MinIOStorage satisfies it.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Remove(ctx context.Context, key string) error
	List(ctx context.Context) ([]string, error)
}

var _ ObjectStore = (*storage.MinIOStorage)(nil)

// ObjectRepo stores one object per document named "<key>.doc".
type ObjectRepo struct {
	store ObjectStore
}

func NewObjectRepo(store ObjectStore) *ObjectRepo {
	return &ObjectRepo{store: store}
}

func objectName(id uint64) string {
	return Key(id) + recordExt
}

func (r *ObjectRepo) Put(ctx context.Context, id uint64, data []byte) error {
	if err := r.store.Put(ctx, objectName(id), data); err != nil {
		return fault("put", id, err)
	}
	return nil
}

func (r *ObjectRepo) Get(ctx context.Context, id uint64) ([]byte, error) {
	b, err := r.store.Get(ctx, objectName(id))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, notFound(id)
		}
		return nil, fault("get", id, err)
	}
	return b, nil
}

// Delete checks existence first because object stores report success when
// removing a missing key.
func (r *ObjectRepo) Delete(ctx context.Context, id uint64) error {
	ok, err := r.store.Exists(ctx, objectName(id))
	if err != nil {
		return fault("delete", id, err)
	}
	if !ok {
		return notFound(id)
	}
	if err := r.store.Remove(ctx, objectName(id)); err != nil {
		return fault("delete", id, err)
	}
	return nil
}

func (r *ObjectRepo) Keys(ctx context.Context) ([]uint64, error) {
	names, err := r.store.List(ctx)
	if err != nil {
		return nil, fault("keys", 0, err)
	}
	ids := make([]uint64, 0, len(names))
	for _, name := range names {
		if !strings.HasSuffix(name, recordExt) {
			continue
		}
		if id, ok := ParseKey(strings.TrimSuffix(name, recordExt)); ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *ObjectRepo) Clear(ctx context.Context) (int, error) {
	ids, err := r.Keys(ctx)
	if err != nil {
		return 0, err
	}
	for i, id := range ids {
		if err := r.store.Remove(ctx, objectName(id)); err != nil {
			return i, fault("clear", id, err)
		}
	}
	return len(ids), nil
}

func (r *ObjectRepo) Close() error { return nil }

var _ Repository = (*ObjectRepo)(nil)
