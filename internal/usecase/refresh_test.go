package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OmniSpectrum/internal/domain/models"
	"OmniSpectrum/internal/repository"
	"OmniSpectrum/internal/testutil"
	"OmniSpectrum/pkg/cache"
)

var errInference = errors.New("exit status 1")

type fakeGenerator struct {
	mu      sync.Mutex
	doc     *models.Document
	err     error
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (g *fakeGenerator) set(doc *models.Document, err error) {
	g.mu.Lock()
	g.doc, g.err = doc, err
	g.mu.Unlock()
}

func (g *fakeGenerator) Generate(ctx context.Context) (*models.Document, error) {
	g.calls.Add(1)
	if g.started != nil {
		g.started <- struct{}{}
	}
	if g.release != nil {
		<-g.release
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.doc, g.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.SnapshotEvent
}

func (p *fakePublisher) Publish(_ context.Context, ev models.SnapshotEvent) error {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type recordingListener struct {
	got []*models.Document
}

func (l *recordingListener) OnSnapshot(doc *models.Document) { l.got = append(l.got, doc) }

type heldLocker struct{}

func (heldLocker) TryLock(context.Context, string, time.Duration) (bool, error) { return false, nil }
func (heldLocker) Unlock(context.Context, string) error                         { return nil }

type failingWriteStore struct {
	*repository.CacheStore
}

func (failingWriteStore) Write(context.Context, *models.Document) error {
	return errors.New("disk full")
}

func doc(t *testing.T, close float64) *models.Document {
	t.Helper()
	d, err := models.ParseDocument(testutil.SnapshotJSON(close))
	require.NoError(t, err)
	return d
}

func memoryStore(t *testing.T) *repository.CacheStore {
	t.Helper()
	s := repository.NewCacheStore(cache.NewMemoryCache())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRefresh_SuccessWritesStore(t *testing.T) {
	ctx := context.Background()
	store := repository.NewFileStore(filepath.Join(t.TempDir(), "omnispectrum.json"))
	gen := &fakeGenerator{}
	gen.set(doc(t, 105), nil)
	pub := &fakePublisher{}
	listener := &recordingListener{}

	r := NewRefresher(gen, store, pub, nil, nil, nil, RefreshOptions{})
	r.AddListener(listener)

	res, err := r.Refresh(ctx)
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.NotEmpty(t, res.ID)

	stored, err := store.Read(ctx)
	require.NoError(t, err)
	assert.True(t, res.Document.Equal(stored))

	require.Len(t, listener.got, 1)
	require.Len(t, pub.events, 1)
	assert.Equal(t, models.EventSnapshotRefreshed, pub.events[0].Type)
	assert.Equal(t, 105.0, pub.events[0].Close)
}

func TestRefresh_FailureFallsBackAndRecovers(t *testing.T) {
	ctx := context.Background()
	store := memoryStore(t)
	prior := doc(t, 100)
	require.NoError(t, store.Write(ctx, prior))

	gen := &fakeGenerator{}
	gen.set(nil, errInference)
	listener := &recordingListener{}
	r := NewRefresher(gen, store, nil, nil, nil, nil, RefreshOptions{})
	r.AddListener(listener)

	res, err := r.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.ErrorIs(t, res.Cause, errInference)
	assert.Equal(t, string(prior.Raw), string(res.Document.Raw))
	assert.Empty(t, listener.got)

	gen.set(doc(t, 105), nil)
	res, err = r.Refresh(ctx)
	require.NoError(t, err)
	assert.False(t, res.Degraded)

	stored, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 105.0, stored.Snapshot.Close)
}

func TestRefresh_NoDataLeavesStoreEmpty(t *testing.T) {
	ctx := context.Background()
	store := memoryStore(t)
	gen := &fakeGenerator{}
	gen.set(nil, context.DeadlineExceeded)
	r := NewRefresher(gen, store, nil, nil, nil, nil, RefreshOptions{})

	_, err := r.Refresh(ctx)
	require.ErrorIs(t, err, models.ErrNoDataAvailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	ok, err := store.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRefresh_StoreWriteErrorIsNotReturned(t *testing.T) {
	gen := &fakeGenerator{}
	gen.set(doc(t, 105), nil)
	r := NewRefresher(gen, failingWriteStore{memoryStore(t)}, nil, nil, nil, nil, RefreshOptions{})

	res, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 105.0, res.Document.Snapshot.Close)
}

func TestRefresh_RejectWhileRunning(t *testing.T) {
	gen := &fakeGenerator{started: make(chan struct{}, 1), release: make(chan struct{})}
	gen.set(doc(t, 105), nil)
	r := NewRefresher(gen, memoryStore(t), nil, nil, nil, nil, RefreshOptions{Overlap: OverlapReject})

	done := make(chan error, 1)
	go func() {
		_, err := r.Refresh(context.Background())
		done <- err
	}()
	<-gen.started

	_, err := r.Refresh(context.Background())
	assert.ErrorIs(t, err, models.ErrRefreshBusy)

	close(gen.release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestRefresh_CoalesceSharesResult(t *testing.T) {
	gen := &fakeGenerator{started: make(chan struct{}, 2), release: make(chan struct{})}
	gen.set(doc(t, 105), nil)
	r := NewRefresher(gen, memoryStore(t), nil, nil, nil, nil, RefreshOptions{Overlap: OverlapCoalesce})

	results := make(chan *models.RefreshResult, 2)
	go func() {
		res, _ := r.Refresh(context.Background())
		results <- res
	}()
	<-gen.started
	go func() {
		res, _ := r.Refresh(context.Background())
		results <- res
	}()
	time.Sleep(100 * time.Millisecond)
	close(gen.release)

	a, b := <-results, <-results
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestRefresh_LockHeldElsewhereDegrades(t *testing.T) {
	ctx := context.Background()
	store := memoryStore(t)
	require.NoError(t, store.Write(ctx, doc(t, 100)))
	gen := &fakeGenerator{}
	gen.set(doc(t, 105), nil)
	r := NewRefresher(gen, store, nil, heldLocker{}, nil, nil, RefreshOptions{LockTTL: time.Minute})

	res, err := r.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.ErrorIs(t, res.Cause, models.ErrRefreshBusy)
	assert.Equal(t, int32(0), gen.calls.Load())
}

func TestRefreshTriggerHandler(t *testing.T) {
	gen := &fakeGenerator{}
	gen.set(nil, errInference)
	r := NewRefresher(gen, memoryStore(t), nil, nil, nil, nil, RefreshOptions{})
	h := NewRefreshTriggerHandler("omnispectrum.refresh", r, nil)

	assert.Equal(t, "omnispectrum.refresh", h.Topic())
	assert.NoError(t, h.Handle(context.Background(), []byte(`{}`)))
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestSnapshotReader(t *testing.T) {
	ctx := context.Background()
	store := memoryStore(t)
	reader := NewSnapshotReader(store, time.Minute)

	_, err := reader.Get(ctx)
	require.ErrorIs(t, err, models.ErrSnapshotNotFound)
	has, err := reader.HasData(ctx)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, store.Write(ctx, doc(t, 100)))
	first, err := reader.Get(ctx)
	require.NoError(t, err)
	second, err := reader.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Raw, second.Raw)

	reader.OnSnapshot(doc(t, 105))
	got, err := reader.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 105.0, got.Snapshot.Close)
}
