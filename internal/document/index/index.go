// Package index is the in-memory view of the stored documents: metadata for
// every document plus a bounded LRU cache of payloads.
//
// An Index is not safe for concurrent mutation; the document store guards it
// with its own lock. Concurrent readers are fine.
package index

import (
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gogotex/docstore/internal/document"
)

// Index maps document ids to their metadata and caches recently read payloads.
type Index struct {
	docs     map[uint64]*document.Document
	order    []uint64 // ascending ids, which is creation order
	payloads *lru.Cache[uint64, string]
}

// New returns an empty index caching up to cacheSize payloads. A cacheSize
// of zero disables payload caching.
func New(cacheSize int) (*Index, error) {
	idx := &Index{docs: make(map[uint64]*document.Document)}
	if cacheSize > 0 {
		c, err := lru.New[uint64, string](cacheSize)
		if err != nil {
			return nil, err
		}
		idx.payloads = c
	}
	return idx, nil
}

// Len returns the number of documents.
func (x *Index) Len() int { return len(x.docs) }

// MaxID returns the largest id held, or 0 for an empty index.
func (x *Index) MaxID() uint64 {
	if len(x.order) == 0 {
		return 0
	}
	return x.order[len(x.order)-1]
}

// Put inserts or replaces d. The metadata is stored without payload; a
// non-nil payload goes to the cache.
func (x *Index) Put(d document.Document) {
	if _, ok := x.docs[d.ID]; !ok {
		x.insertOrder(d.ID)
	}
	if d.Payload != nil {
		x.CachePayload(d.ID, *d.Payload)
	}
	meta := d.WithoutPayload()
	x.docs[d.ID] = &meta
}

func (x *Index) insertOrder(id uint64) {
	n := len(x.order)
	if n == 0 || x.order[n-1] < id {
		x.order = append(x.order, id)
		return
	}
	i := sort.Search(n, func(i int) bool { return x.order[i] >= id })
	x.order = append(x.order, 0)
	copy(x.order[i+1:], x.order[i:])
	x.order[i] = id
}

// Get returns the metadata of id without payload.
func (x *Index) Get(id uint64) (document.Document, bool) {
	d, ok := x.docs[id]
	if !ok {
		return document.Document{}, false
	}
	return *d, true
}

// Remove drops id and its cached payload, returning the removed metadata.
func (x *Index) Remove(id uint64) (document.Document, bool) {
	d, ok := x.docs[id]
	if !ok {
		return document.Document{}, false
	}
	delete(x.docs, id)
	i := sort.Search(len(x.order), func(i int) bool { return x.order[i] >= id })
	if i < len(x.order) && x.order[i] == id {
		x.order = append(x.order[:i], x.order[i+1:]...)
	}
	if x.payloads != nil {
		x.payloads.Remove(id)
	}
	return *d, true
}

// List returns every document's metadata in creation order. The result is
// never nil.
func (x *Index) List() []document.Document {
	out := make([]document.Document, 0, len(x.order))
	for _, id := range x.order {
		out = append(out, *x.docs[id])
	}
	return out
}

// Payload returns the cached payload of id.
func (x *Index) Payload(id uint64) (string, bool) {
	if x.payloads == nil {
		return "", false
	}
	return x.payloads.Get(id)
}

// CachePayload stores p as the payload of id in the cache.
func (x *Index) CachePayload(id uint64, p string) {
	if x.payloads == nil {
		return
	}
	x.payloads.Add(id, p)
}
