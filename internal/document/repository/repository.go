// Package repository holds the persistence backends for documents. Every
// backend stores one opaque record per document id and can enumerate the
// stored ids without reading record bodies.
package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gogotex/docstore/internal/document"
)

// Repository is the persistence contract used by the document store.
//
// Put replaces the record for id atomically: a concurrent or later Get sees
// either the old bytes or the new bytes, never a mix. Get and Delete return
// an error wrapping document.ErrNotFound for unknown ids. I/O failures are
// returned as *document.StorageError.
type Repository interface {
	Put(ctx context.Context, id uint64, data []byte) error
	Get(ctx context.Context, id uint64) ([]byte, error)
	Delete(ctx context.Context, id uint64) error
	Keys(ctx context.Context) ([]uint64, error)
	Clear(ctx context.Context) (int, error)
	Close() error
}

// keyWidth fits the largest uint64 so that lexical order equals id order.
const keyWidth = 20

// Key renders id as the storage key used by the fs, redis and minio backends.
func Key(id uint64) string {
	return fmt.Sprintf("%0*d", keyWidth, id)
}

// ParseKey is the inverse of Key. It rejects anything Key would not produce.
func ParseKey(s string) (uint64, bool) {
	if len(s) != keyWidth || strings.TrimLeft(s, "0123456789") != "" {
		return 0, false
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func fault(op string, id uint64, err error) error {
	return &document.StorageError{Op: op, ID: id, Err: err}
}

func notFound(id uint64) error {
	return &document.NotFoundError{ID: id}
}
