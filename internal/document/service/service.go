package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gogotex/docstore/internal/document"
	"github.com/gogotex/docstore/internal/document/allocator"
	"github.com/gogotex/docstore/internal/document/codec"
	"github.com/gogotex/docstore/internal/document/index"
	"github.com/gogotex/docstore/internal/document/repository"
	"github.com/gogotex/docstore/pkg/logger"
	"github.com/gogotex/docstore/pkg/metrics"
)

// ComponentName is the name the store registers under with test control.
const ComponentName = "storage"

// Service defines the document operations used by the handler layer.
type Service interface {
	Create(ctx context.Context, in document.Input) (document.Document, error)
	Get(ctx context.Context, id uint64) (document.Document, error)
	List(ctx context.Context) ([]document.Document, error)
	Update(ctx context.Context, id uint64, p document.Patch) (document.Document, error)
	Delete(ctx context.Context, id uint64) (document.Document, error)
	Clear(ctx context.Context) (int, error)
}

// Options tunes a Store. Zero values pick the defaults.
type Options struct {
	PayloadCacheSize int
	RecoveryWorkers  int
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

const defaultRecoveryWorkers = 8

// Stats is a point-in-time summary of a Store.
type Stats struct {
	Documents int    `json:"documents"`
	NextID    uint64 `json:"next_id"`
}

// Store is the document store engine. All mutations and reloads hold the
// write lock for their full duration, persistence I/O included.
type Store struct {
	mu   sync.RWMutex
	repo repository.Repository
	idx  *index.Index
	ids  *allocator.Allocator

	cacheSize int
	workers   int
	clock     func() time.Time
}

var _ Service = (*Store)(nil)

// New opens a Store over repo and recovers its state. The returned report
// lists records that were skipped during recovery.
func New(ctx context.Context, repo repository.Repository, opts Options) (*Store, *RecoveryReport, error) {
	s := &Store{
		repo:      repo,
		ids:       allocator.New(),
		cacheSize: opts.PayloadCacheSize,
		workers:   opts.RecoveryWorkers,
		clock:     opts.Clock,
	}
	if s.workers <= 0 {
		s.workers = defaultRecoveryWorkers
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	report, err := s.Reload(ctx)
	if err != nil {
		return nil, nil, err
	}
	return s, report, nil
}

func (s *Store) now() time.Time {
	return s.clock().UTC()
}

// Create stores a new document and returns it without payload.
func (s *Store) Create(ctx context.Context, in document.Input) (doc document.Document, err error) {
	defer observe("create", time.Now(), &err)
	if in.Payload == nil {
		return document.Document{}, &document.ValidationError{Field: "payload"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	payload := *in.Payload
	d := document.Document{
		ID:        s.ids.Next(),
		Name:      in.Name,
		Owner:     in.Owner,
		Namespace: in.Namespace,
		Payload:   &payload,
		Created:   now,
		Updated:   now,
	}
	if err := s.persist(ctx, d); err != nil {
		return document.Document{}, err
	}
	s.idx.Put(d)
	metrics.Documents.Set(float64(s.idx.Len()))
	logger.Debugf("created document %d", d.ID)
	return d.WithoutPayload(), nil
}

// Get returns the full document, payload included.
func (s *Store) Get(ctx context.Context, id uint64) (doc document.Document, err error) {
	defer observe("get", time.Now(), &err)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(ctx, id)
}

// List returns every document without payload, in ascending id order.
func (s *Store) List(ctx context.Context) (docs []document.Document, err error) {
	defer observe("list", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idx.List(), nil
}

// Update applies p to document id, refreshes its updated time and returns it
// without payload.
func (s *Store) Update(ctx context.Context, id uint64, p document.Patch) (doc document.Document, err error) {
	defer observe("update", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.load(ctx, id)
	if err != nil {
		return document.Document{}, err
	}
	p.Apply(&d)
	d.Updated = s.now()
	if d.Updated.Before(d.Created) {
		d.Updated = d.Created
	}
	if err := s.persist(ctx, d); err != nil {
		return document.Document{}, err
	}
	s.idx.Put(d)
	return d.WithoutPayload(), nil
}

// Delete removes document id and returns it without payload.
func (s *Store) Delete(ctx context.Context, id uint64) (doc document.Document, err error) {
	defer observe("delete", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.idx.Get(id)
	if !ok {
		return document.Document{}, &document.NotFoundError{ID: id}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if !document.IsNotFound(err) {
			return document.Document{}, err
		}
		logger.Warnf("document %d was indexed but missing from storage", id)
	}
	s.idx.Remove(id)
	metrics.Documents.Set(float64(s.idx.Len()))
	return d, nil
}

// Clear removes every document and returns how many records storage dropped.
// Ids already issued stay burnt.
func (s *Store) Clear(ctx context.Context) (n int, err error) {
	defer observe("clear", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err = s.repo.Clear(ctx)
	if err != nil {
		s.resync(ctx)
		return 0, err
	}
	idx, err := index.New(s.cacheSize)
	if err != nil {
		return 0, err
	}
	s.idx = idx
	metrics.Documents.Set(0)
	logger.Infof("cleared %d documents", n)
	return n, nil
}

// Reload rebuilds the index and allocator from storage. On error the previous
// state is kept.
func (s *Store) Reload(ctx context.Context) (report *RecoveryReport, err error) {
	defer observe("reload", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reload(ctx)
}

// reload is Reload without locking. Callers hold s.mu for writing.
func (s *Store) reload(ctx context.Context) (*RecoveryReport, error) {
	idx, report, err := recoverIndex(ctx, s.repo, s.cacheSize, s.workers)
	if err != nil {
		return nil, err
	}
	// Ids issued earlier in this process stay burnt even if their records
	// are gone.
	seed := idx.MaxID()
	if issued := s.ids.Peek() - 1; issued > seed {
		seed = issued
	}
	s.ids.Seed(seed)
	s.idx = idx
	report.NextID = s.ids.Peek()
	metrics.Documents.Set(float64(idx.Len()))
	logger.Infof("recovered %d documents (%d skipped), next id %d", report.Documents, len(report.Skipped), report.NextID)
	return report, nil
}

// resync brings the index back in line with storage after a mutation failed
// partway. A full reload is tried first; if storage cannot be read in full,
// ids storage no longer lists are dropped. Callers hold s.mu for writing.
func (s *Store) resync(ctx context.Context) {
	_, err := s.reload(ctx)
	if err == nil {
		return
	}
	logger.Warnf("resync: reload failed, pruning index by key: %v", err)
	keys, err := s.repo.Keys(ctx)
	if err != nil {
		logger.Errorf("resync: list keys: %v", err)
		return
	}
	present := make(map[uint64]struct{}, len(keys))
	for _, id := range keys {
		present[id] = struct{}{}
	}
	for _, d := range s.idx.List() {
		if _, ok := present[d.ID]; !ok {
			s.idx.Remove(d.ID)
		}
	}
	metrics.Documents.Set(float64(s.idx.Len()))
}

// Stats reports the document count and the next id to be issued.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{Documents: s.idx.Len(), NextID: s.ids.Peek()}
}

// Name implements control.Component.
func (s *Store) Name() string { return ComponentName }

// Reset implements control.Component by reloading from storage.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.Reload(ctx)
	return err
}

// Close releases the underlying repository.
func (s *Store) Close() error {
	return s.repo.Close()
}

// load returns document id with its payload. Callers hold s.mu.
func (s *Store) load(ctx context.Context, id uint64) (document.Document, error) {
	d, ok := s.idx.Get(id)
	if !ok {
		return document.Document{}, &document.NotFoundError{ID: id}
	}
	if p, ok := s.idx.Payload(id); ok {
		d.Payload = &p
		return d, nil
	}
	data, err := s.repo.Get(ctx, id)
	if err != nil {
		return document.Document{}, err
	}
	stored, err := codec.Decode(repository.Key(id), data)
	if err != nil {
		return document.Document{}, err
	}
	s.idx.CachePayload(id, *stored.Payload)
	d.Payload = stored.Payload
	return d, nil
}

func (s *Store) persist(ctx context.Context, d document.Document) error {
	data, err := codec.Encode(d)
	if err != nil {
		return fmt.Errorf("persist document %d: %w", d.ID, err)
	}
	return s.repo.Put(ctx, d.ID, data)
}

func observe(op string, start time.Time, err *error) {
	metrics.ObserveOperation(op, start, *err)
}
