package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/gogotex/docstore/internal/document"
	"github.com/gogotex/docstore/internal/document/codec"
	"github.com/gogotex/docstore/internal/document/repository"
)

// stepClock advances by one millisecond on every call.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func newFileRepo(t *testing.T, fsys afero.Fs) repository.Repository {
	t.Helper()
	r, err := repository.NewFileRepo(fsys, "/data")
	require.NoError(t, err)
	return r
}

func newStore(t *testing.T, repo repository.Repository, cacheSize int) *Store {
	t.Helper()
	s, _, err := New(context.Background(), repo, Options{PayloadCacheSize: cacheSize, RecoveryWorkers: 4, Clock: newStepClock().Now})
	require.NoError(t, err)
	return s
}

func input(name, payload string) document.Input {
	return document.Input{Name: name, Owner: "alice", Namespace: "ns", Payload: document.StringPtr(payload)}
}

func TestCreateIDsStrictlyIncrease(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, newFileRepo(t, afero.NewMemMapFs()), 16)

	var last uint64
	for i := 0; i < 5; i++ {
		d, err := s.Create(ctx, input("same", "same"))
		require.NoError(t, err)
		require.Greater(t, d.ID, last)
		require.Nil(t, d.Payload)
		last = d.ID
	}
	require.Equal(t, uint64(5), last)
}

func TestCreateRequiresPayload(t *testing.T) {
	s := newStore(t, newFileRepo(t, afero.NewMemMapFs()), 16)
	_, err := s.Create(context.Background(), document.Input{Name: "a"})
	var verr *document.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "payload", verr.Field)
	require.Equal(t, "Missing required argument 'payload'", err.Error())
}

func TestGetAfterCreate(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, newFileRepo(t, afero.NewMemMapFs()), 16)

	created, err := s.Create(ctx, input("doc", "hello"))
	require.NoError(t, err)
	require.Equal(t, created.Created, created.Updated)

	want := created
	want.Payload = document.StringPtr("hello")
	for i := 0; i < 3; i++ {
		got, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		require.Equal(t, want, got)
		_, err = s.List(ctx)
		require.NoError(t, err)
	}
}

func TestGetUnknownIsNotFound(t *testing.T) {
	s := newStore(t, newFileRepo(t, afero.NewMemMapFs()), 16)
	_, err := s.Get(context.Background(), 42)
	require.True(t, document.IsNotFound(err))
	require.Equal(t, "Document with id='42' not found", err.Error())
}

func TestEmptyUpdateOnlyRefreshesUpdated(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, newFileRepo(t, afero.NewMemMapFs()), 16)

	created, err := s.Create(ctx, input("doc", "body"))
	require.NoError(t, err)
	before, err := s.Get(ctx, created.ID)
	require.NoError(t, err)

	updated, err := s.Update(ctx, created.ID, document.Patch{})
	require.NoError(t, err)
	require.Nil(t, updated.Payload)
	require.True(t, updated.Updated.After(before.Updated))

	after, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	after.Updated = before.Updated
	require.Equal(t, before, after)
}

func TestPayloadOnlyUpdate(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, newFileRepo(t, afero.NewMemMapFs()), 16)

	created, err := s.Create(ctx, input("doc", "old"))
	require.NoError(t, err)
	_, err = s.Update(ctx, created.ID, document.Patch{Payload: document.StringPtr("new")})
	require.NoError(t, err)

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "new", *got.Payload)
	require.Equal(t, created.Name, got.Name)
	require.Equal(t, created.Owner, got.Owner)
	require.Equal(t, created.Namespace, got.Namespace)
	require.Equal(t, created.Created, got.Created)
	require.True(t, got.Updated.After(created.Updated))
}

func TestUpdateFieldsAndUnknownID(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, newFileRepo(t, afero.NewMemMapFs()), 16)

	created, err := s.Create(ctx, input("doc", "p"))
	require.NoError(t, err)
	got, err := s.Update(ctx, created.ID, document.Patch{Name: document.StringPtr("renamed"), Owner: document.StringPtr("bob")})
	require.NoError(t, err)
	require.Equal(t, "renamed", got.Name)
	require.Equal(t, "bob", got.Owner)
	require.Equal(t, "ns", got.Namespace)

	_, err = s.Update(ctx, 99, document.Patch{})
	require.True(t, document.IsNotFound(err))
}

func TestDeleteThenNoReuse(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, newFileRepo(t, afero.NewMemMapFs()), 16)

	d, err := s.Create(ctx, input("doc", "p"))
	require.NoError(t, err)
	deleted, err := s.Delete(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, d.ID, deleted.ID)
	require.Nil(t, deleted.Payload)

	_, err = s.Get(ctx, d.ID)
	require.True(t, document.IsNotFound(err))
	_, err = s.Delete(ctx, d.ID)
	require.True(t, document.IsNotFound(err))

	next, err := s.Create(ctx, input("doc", "p"))
	require.NoError(t, err)
	require.Greater(t, next.ID, d.ID)
}

func TestListAndDeleteScenario(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, newFileRepo(t, afero.NewMemMapFs()), 16)

	ids := make([]uint64, 3)
	for i := range ids {
		d, err := s.Create(ctx, input(fmt.Sprintf("doc%d", i), "p"))
		require.NoError(t, err)
		ids[i] = d.ID
	}

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, d := range list {
		require.Equal(t, fmt.Sprintf("doc%d", i), d.Name)
		require.Nil(t, d.Payload)
	}

	_, err = s.Delete(ctx, ids[1])
	require.NoError(t, err)
	list, err = s.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"doc0", "doc2"}, []string{list[0].Name, list[1].Name})

	d, err := s.Create(ctx, input("doc3", "p"))
	require.NoError(t, err)
	require.Equal(t, ids[2]+1, d.ID)
}

func TestClearScenario(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, newFileRepo(t, afero.NewMemMapFs()), 16)

	for i := 0; i < 3; i++ {
		_, err := s.Create(ctx, input("doc", "p"))
		require.NoError(t, err)
	}
	n, err := s.Clear(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.NotNil(t, list)
	require.Empty(t, list)

	d, err := s.Create(ctx, input("doc", "p"))
	require.NoError(t, err)
	require.Equal(t, uint64(4), d.ID)
}

func snapshot(t *testing.T, s *Store) []document.Document {
	t.Helper()
	ctx := context.Background()
	list, err := s.List(ctx)
	require.NoError(t, err)
	out := make([]document.Document, 0, len(list))
	for _, d := range list {
		full, err := s.Get(ctx, d.ID)
		require.NoError(t, err)
		out = append(out, full)
	}
	return out
}

func TestReloadPreservesState(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, newFileRepo(t, afero.NewMemMapFs()), 2)

	var last uint64
	for i := 0; i < 6; i++ {
		d, err := s.Create(ctx, input(fmt.Sprintf("doc%d", i), fmt.Sprintf("payload-%d", i)))
		require.NoError(t, err)
		last = d.ID
	}
	_, err := s.Update(ctx, 2, document.Patch{Payload: document.StringPtr("changed"), Namespace: document.StringPtr("other")})
	require.NoError(t, err)
	_, err = s.Delete(ctx, 4)
	require.NoError(t, err)
	// dropping the highest id must not let reload hand it out again
	_, err = s.Delete(ctx, last)
	require.NoError(t, err)

	before := snapshot(t, s)
	report, err := s.Reload(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, report.Documents)
	require.Empty(t, report.Skipped)
	require.Equal(t, before, snapshot(t, s))

	d, err := s.Create(ctx, input("after", "p"))
	require.NoError(t, err)
	require.Greater(t, d.ID, last)
}

func TestNewStoreResumesFromPersistedState(t *testing.T) {
	ctx := context.Background()
	fsys := afero.NewMemMapFs()
	first := newStore(t, newFileRepo(t, fsys), 16)
	for i := 0; i < 3; i++ {
		_, err := first.Create(ctx, input(fmt.Sprintf("doc%d", i), "p"))
		require.NoError(t, err)
	}
	before := snapshot(t, first)

	second, report, err := New(ctx, newFileRepo(t, fsys), Options{})
	require.NoError(t, err)
	require.Equal(t, uint64(4), report.NextID)
	require.Equal(t, int64(3), report.PayloadBytes)
	require.Equal(t, before, snapshot(t, second))
	require.Equal(t, Stats{Documents: 3, NextID: 4}, second.Stats())
}

func TestRecoverySkipsCorruptRecords(t *testing.T) {
	ctx := context.Background()
	fsys := afero.NewMemMapFs()
	repo := newFileRepo(t, fsys)
	s := newStore(t, repo, 16)
	for i := 0; i < 3; i++ {
		_, err := s.Create(ctx, input(fmt.Sprintf("doc%d", i), "p"))
		require.NoError(t, err)
	}

	// garbage under id 2, and a valid record for id 1 filed under id 7
	require.NoError(t, repo.Put(ctx, 2, []byte("not bson")))
	misplaced, err := codec.Encode(document.Document{ID: 1, Payload: document.StringPtr("x"), Created: time.Now(), Updated: time.Now()})
	require.NoError(t, err)
	require.NoError(t, repo.Put(ctx, 7, misplaced))

	report, err := s.Reload(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, report.Documents)
	require.Len(t, report.Skipped, 2)
	require.Equal(t, repository.Key(2), report.Skipped[0].Key)
	require.Equal(t, repository.Key(7), report.Skipped[1].Key)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"doc0", "doc2"}, []string{list[0].Name, list[1].Name})
	require.Equal(t, uint64(4), s.Stats().NextID)
}

// faultyRepo fails the operations switched on in its flags.
type faultyRepo struct {
	repository.Repository
	failPut    bool
	failGet    bool
	failDelete bool
	// failClear deletes the lowest record, then fails
	failClear bool
}

var errDisk = errors.New("disk on fire")

func (r *faultyRepo) Put(ctx context.Context, id uint64, data []byte) error {
	if r.failPut {
		return &document.StorageError{Op: "put", ID: id, Err: errDisk}
	}
	return r.Repository.Put(ctx, id, data)
}

func (r *faultyRepo) Get(ctx context.Context, id uint64) ([]byte, error) {
	if r.failGet {
		return nil, &document.StorageError{Op: "get", ID: id, Err: errDisk}
	}
	return r.Repository.Get(ctx, id)
}

func (r *faultyRepo) Delete(ctx context.Context, id uint64) error {
	if r.failDelete {
		return &document.StorageError{Op: "delete", ID: id, Err: errDisk}
	}
	return r.Repository.Delete(ctx, id)
}

func (r *faultyRepo) Clear(ctx context.Context) (int, error) {
	if !r.failClear {
		return r.Repository.Clear(ctx)
	}
	keys, err := r.Repository.Keys(ctx)
	if err != nil {
		return 0, err
	}
	if len(keys) > 0 {
		if err := r.Repository.Delete(ctx, keys[0]); err != nil {
			return 0, err
		}
	}
	return 0, &document.StorageError{Op: "clear", Err: errDisk}
}

func TestCreateStorageFailureLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	repo := &faultyRepo{Repository: newFileRepo(t, afero.NewMemMapFs())}
	s := newStore(t, repo, 16)

	repo.failPut = true
	_, err := s.Create(ctx, input("doc", "p"))
	var serr *document.StorageError
	require.ErrorAs(t, err, &serr)
	require.ErrorIs(t, err, errDisk)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Empty(t, list)

	repo.failPut = false
	d, err := s.Create(ctx, input("doc", "p"))
	require.NoError(t, err)
	require.Equal(t, uint64(2), d.ID, "the failed create burns its id")
}

func TestUpdateStorageFailureKeepsOldValues(t *testing.T) {
	ctx := context.Background()
	repo := &faultyRepo{Repository: newFileRepo(t, afero.NewMemMapFs())}
	s := newStore(t, repo, 16)
	d, err := s.Create(ctx, input("doc", "p"))
	require.NoError(t, err)

	repo.failPut = true
	_, err = s.Update(ctx, d.ID, document.Patch{Name: document.StringPtr("new")})
	require.Error(t, err)

	got, err := s.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, "doc", got.Name)
}

func TestReloadReadFailureKeepsPreviousState(t *testing.T) {
	ctx := context.Background()
	repo := &faultyRepo{Repository: newFileRepo(t, afero.NewMemMapFs())}
	s := newStore(t, repo, 16)
	for i := 0; i < 3; i++ {
		_, err := s.Create(ctx, input("doc", "p"))
		require.NoError(t, err)
	}

	repo.failGet = true
	_, err := s.Reload(ctx)
	require.ErrorIs(t, err, errDisk)
	require.Equal(t, Stats{Documents: 3, NextID: 4}, s.Stats())
}

func TestDeleteStorageFailureKeepsDocument(t *testing.T) {
	ctx := context.Background()
	repo := &faultyRepo{Repository: newFileRepo(t, afero.NewMemMapFs())}
	s := newStore(t, repo, 16)
	d, err := s.Create(ctx, input("doc", "p"))
	require.NoError(t, err)

	repo.failDelete = true
	_, err = s.Delete(ctx, d.ID)
	var serr *document.StorageError
	require.ErrorAs(t, err, &serr)
	require.ErrorIs(t, err, errDisk)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	got, err := s.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, "p", *got.Payload)
}

func TestPartialClearFailureMatchesStorage(t *testing.T) {
	ctx := context.Background()
	repo := &faultyRepo{Repository: newFileRepo(t, afero.NewMemMapFs())}
	s := newStore(t, repo, 16)
	for i := 0; i < 3; i++ {
		_, err := s.Create(ctx, input(fmt.Sprintf("doc%d", i), "p"))
		require.NoError(t, err)
	}

	repo.failClear = true
	_, err := s.Clear(ctx)
	var serr *document.StorageError
	require.ErrorAs(t, err, &serr)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, []string{"doc1", "doc2"}, []string{list[0].Name, list[1].Name})
	_, err = s.Get(ctx, 1)
	require.True(t, document.IsNotFound(err))

	report, err := s.Reload(ctx)
	require.NoError(t, err)
	require.Equal(t, len(list), report.Documents)

	d, err := s.Create(ctx, input("after", "p"))
	require.NoError(t, err)
	require.Equal(t, uint64(4), d.ID)
}

func TestPartialClearPrunesWhenStorageUnreadable(t *testing.T) {
	ctx := context.Background()
	repo := &faultyRepo{Repository: newFileRepo(t, afero.NewMemMapFs())}
	s := newStore(t, repo, 0)
	for i := 0; i < 3; i++ {
		_, err := s.Create(ctx, input(fmt.Sprintf("doc%d", i), "p"))
		require.NoError(t, err)
	}

	// reads fail too, so the index can only be pruned by key
	repo.failClear = true
	repo.failGet = true
	_, err := s.Clear(ctx)
	require.Error(t, err)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, uint64(2), list[0].ID)
	require.Equal(t, uint64(4), s.Stats().NextID)
}

func TestGetWithoutCacheReadsStorage(t *testing.T) {
	ctx := context.Background()
	repo := &faultyRepo{Repository: newFileRepo(t, afero.NewMemMapFs())}
	s := newStore(t, repo, 0)
	d, err := s.Create(ctx, input("doc", "stored"))
	require.NoError(t, err)

	got, err := s.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, "stored", *got.Payload)

	repo.failGet = true
	_, err = s.Get(ctx, d.ID)
	var serr *document.StorageError
	require.ErrorAs(t, err, &serr)
}

func TestResetReloadsFromStorage(t *testing.T) {
	ctx := context.Background()
	repo := newFileRepo(t, afero.NewMemMapFs())
	s := newStore(t, repo, 16)
	require.Equal(t, "storage", s.Name())

	_, err := s.Create(ctx, input("doc", "p"))
	require.NoError(t, err)
	// a record removed behind the store's back disappears after reset
	require.NoError(t, repo.Delete(ctx, 1))
	require.NoError(t, s.Reset(ctx))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Empty(t, list)
	require.Equal(t, uint64(2), s.Stats().NextID)
}

func TestConcurrentCreatesAndReads(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, newFileRepo(t, afero.NewMemMapFs()), 8)
	const workers, each = 8, 25

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[uint64]bool{}
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				d, err := s.Create(ctx, input("c", "p"))
				if err != nil {
					t.Error(err)
					return
				}
				if _, err := s.Get(ctx, d.ID); err != nil {
					t.Error(err)
					return
				}
				if _, err := s.List(ctx); err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				seen[d.ID] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, workers*each)
	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, workers*each)
	for i := 1; i < len(list); i++ {
		require.Less(t, list[i-1].ID, list[i].ID)
	}
}
