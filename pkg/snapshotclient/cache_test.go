package snapshotclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OmniSpectrum/internal/testutil"
)

type fakeServer struct {
	gets    atomic.Int32
	posts   atomic.Int32
	broken  atomic.Bool
	delay   time.Duration
	hold    chan struct{}
	mu      sync.Mutex
	price   float64
	refresh string
}

func (s *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.broken.Load() {
		hj, ok := w.(http.Hijacker)
		if ok {
			conn, _, _ := hj.Hijack()
			_ = conn.Close()
			return
		}
	}
	s.mu.Lock()
	price := s.price
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == snapshotPath:
		s.gets.Add(1)
		time.Sleep(s.delay)
		if s.hold != nil {
			<-s.hold
		}
		_, _ = w.Write(testutil.SnapshotJSON(price))
	case r.Method == http.MethodPost && r.URL.Path == refreshPath:
		s.posts.Add(1)
		if s.hold != nil {
			<-s.hold
		}
		_, _ = w.Write([]byte(s.refresh))
	case r.URL.Path == healthPath:
		_, _ = w.Write([]byte(`{"status":"ok","hasData":true}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newFake(price float64, setup ...func(*fakeServer)) (*fakeServer, *httptest.Server) {
	fs := &fakeServer{price: price}
	for _, f := range setup {
		f(fs)
	}
	return fs, httptest.NewServer(fs)
}

func TestGet_DedupesWithinInterval(t *testing.T) {
	fs, srv := newFake(100)
	defer srv.Close()

	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	c := New(srv.URL)
	defer c.Close()
	c.now = func() time.Time { return now }

	s, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100.0, s.Close)

	now = now.Add(30 * time.Second)
	_, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), fs.gets.Load())

	now = now.Add(31 * time.Second)
	_, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), fs.gets.Load())
}

func TestGet_ConcurrentCallersShareFetch(t *testing.T) {
	fs, srv := newFake(100, func(fs *fakeServer) { fs.delay = 100 * time.Millisecond })
	defer srv.Close()
	c := New(srv.URL)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Get(context.Background())
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), fs.gets.Load())
	assert.Equal(t, 100.0, c.State().Snapshot.Close)
}

func TestGet_CancelledCallerDoesNotFailSharedFetch(t *testing.T) {
	hold := make(chan struct{})
	release := sync.OnceFunc(func() { close(hold) })
	fs, srv := newFake(100, func(fs *fakeServer) { fs.hold = hold })
	defer srv.Close()
	defer release()

	c := New(srv.URL)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx)
		first <- err
	}()
	require.Eventually(t, func() bool { return fs.gets.Load() == 1 }, time.Second, 5*time.Millisecond)

	second := make(chan float64, 1)
	go func() {
		s, err := c.Get(context.Background())
		if err != nil {
			second <- 0
			return
		}
		second <- s.Close
	}()

	cancel()
	require.ErrorIs(t, <-first, context.Canceled)
	release()

	assert.Equal(t, 100.0, <-second)
	assert.Equal(t, int32(1), fs.gets.Load())
	assert.False(t, c.State().Offline)
	assert.NoError(t, c.State().Err)
}

func TestRefresh_StateShowsRequestInFlight(t *testing.T) {
	hold := make(chan struct{})
	release := sync.OnceFunc(func() { close(hold) })
	fs, srv := newFake(100, func(fs *fakeServer) {
		fs.hold = hold
		fs.refresh = `{"success":true,"message":"Inference completed","data":` + string(testutil.SnapshotJSON(105)) + `}`
	})
	defer srv.Close()
	defer release()

	c := New(srv.URL)
	defer c.Close()

	done := make(chan error, 1)
	go func() {
		_, err := c.Refresh(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return fs.posts.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, c.State().Refreshing)

	release()
	require.NoError(t, <-done)
	st := c.State()
	assert.False(t, st.Refreshing)
	assert.Equal(t, 105.0, st.Snapshot.Close)
}

func TestRefresh_FailureClearsRefreshing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"Refresh busy","message":"A refresh is already running"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	defer c.Close()
	_, err := c.Refresh(context.Background())
	require.Error(t, err)
	assert.False(t, c.State().Refreshing)
}

func TestRefresh_OverwritesOptimistically(t *testing.T) {
	fs, srv := newFake(100, func(fs *fakeServer) {
		fs.refresh = `{"success":true,"message":"Inference completed","data":` + string(testutil.SnapshotJSON(105)) + `}`
	})
	defer srv.Close()

	c := New(srv.URL)
	defer c.Close()
	updates, stop := c.Subscribe()
	defer stop()
	<-updates

	res, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Inference completed", res.Message)
	assert.Equal(t, 105.0, res.Snapshot.Close)

	st := <-updates
	assert.Equal(t, 105.0, st.Snapshot.Close)

	s, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 105.0, s.Close)
	assert.Equal(t, int32(0), fs.gets.Load())
}

func TestRefresh_NoDataError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"No data available","message":"Backend inference failed and no cached data found"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	defer c.Close()
	_, err := c.Refresh(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "No data available", apiErr.Title)
	assert.False(t, c.State().Offline)
}

func TestOffline_RevalidatesOnReconnect(t *testing.T) {
	fs, srv := newFake(100)
	defer srv.Close()
	fs.broken.Store(true)

	c := New(srv.URL, WithReconnectBackoff(10*time.Millisecond, 50*time.Millisecond))
	defer c.Close()

	_, err := c.Get(context.Background())
	require.Error(t, err)
	assert.True(t, c.State().Offline)

	fs.broken.Store(false)
	require.Eventually(t, func() bool {
		st := c.State()
		return !st.Offline && st.Snapshot != nil && st.Snapshot.Close == 100
	}, 3*time.Second, 10*time.Millisecond)
}

func TestWatch_AppliesPushedSnapshots(t *testing.T) {
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"hello"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"snapshot","data":`+string(testutil.SnapshotJSON(107))+`}`))
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	c := New(srv.URL)
	defer c.Close()
	assert.True(t, strings.HasPrefix(c.streamURL(), "ws://"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx) }()

	require.Eventually(t, func() bool {
		st := c.State()
		return st.Snapshot != nil && st.Snapshot.Close == 107
	}, 3*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
