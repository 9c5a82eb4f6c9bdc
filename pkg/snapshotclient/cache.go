// Package snapshotclient is a client-side cache of the OmniSpectrum snapshot.
// It deduplicates reads, refreshes on an interval and recovers after the
// server becomes reachable again.
package snapshotclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"OmniSpectrum/internal/domain/models"
	xhttp "OmniSpectrum/pkg/http"
	"OmniSpectrum/pkg/logger"
	"OmniSpectrum/pkg/retrier"
)

const (
	DefaultRefreshInterval = 30 * time.Minute
	DefaultDedupeInterval  = 60 * time.Second

	snapshotPath = "/api/omnispectrum"
	refreshPath  = "/api/omnispectrum/refresh"
	healthPath   = "/api/health"
	streamPath   = "/snapshot/stream"
)

// State is what a consumer can render at any moment.
type State struct {
	Snapshot *models.Snapshot
	Raw      json.RawMessage
	Loading  bool
	// Refreshing is set while a server-side refresh request is in flight.
	Refreshing bool
	Err        error
	Offline    bool
	UpdatedAt  time.Time
}

// RefreshResult mirrors the refresh endpoint response.
type RefreshResult struct {
	Success  bool
	Message  string
	Snapshot *models.Snapshot
}

// APIError is a non-2xx response carrying the server's {error, message} body.
type APIError struct {
	Status  int
	Title   string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%d %s", e.Status, e.Title)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Title, e.Message)
}

type Option func(*Cache)

func WithRefreshInterval(d time.Duration) Option {
	return func(c *Cache) { c.refreshInterval = d }
}

func WithDedupeInterval(d time.Duration) Option {
	return func(c *Cache) { c.dedupe = d }
}

// WithRequestTimeout bounds each request. Refresh requests wait for every
// inference strategy, so keep this above the server's inference budget.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Cache) { c.timeout = d }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Cache) { c.httpClient = hc }
}

// WithReconnectBackoff sets the probe backoff used while offline.
func WithReconnectBackoff(initial, max time.Duration) Option {
	return func(c *Cache) {
		c.retry = retrier.New(
			retrier.WithInitialInterval(initial),
			retrier.WithMaxInterval(max),
			retrier.WithMaxRetries(-1),
		)
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Cache) { c.log = l }
}

type Cache struct {
	baseURL         string
	refreshInterval time.Duration
	dedupe          time.Duration
	timeout         time.Duration
	httpClient      *http.Client
	client          *xhttp.Client
	retry           *retrier.Retrier
	log             *logger.Logger
	now             func() time.Time

	group   singleflight.Group
	probing atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc

	mu        sync.RWMutex
	state     State
	lastFetch time.Time
	subs      map[chan State]struct{}
}

func New(baseURL string, opts ...Option) *Cache {
	c := &Cache{
		baseURL:         strings.TrimRight(baseURL, "/"),
		refreshInterval: DefaultRefreshInterval,
		dedupe:          DefaultDedupeInterval,
		timeout:         420 * time.Second,
		log:             logger.NewNop(),
		now:             time.Now,
		subs:            make(map[chan State]struct{}),
	}
	WithReconnectBackoff(time.Second, time.Minute)(c)
	for _, opt := range opts {
		opt(c)
	}
	clientOpts := []xhttp.ClientOption{xhttp.WithTimeout(c.timeout)}
	if c.httpClient != nil {
		clientOpts = append(clientOpts, xhttp.WithHTTPClient(c.httpClient))
	}
	c.client = xhttp.NewClient(clientOpts...)
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// State returns a copy of the current state.
func (c *Cache) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Subscribe returns a channel holding the latest state. Intermediate states
// may be skipped by slow readers. Call the returned func to stop.
func (c *Cache) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	c.mu.Lock()
	c.subs[ch] = struct{}{}
	ch <- c.state
	c.mu.Unlock()
	return ch, func() {
		c.mu.Lock()
		delete(c.subs, ch)
		c.mu.Unlock()
	}
}

// Start runs the background refresh loop until ctx is done or Close is called.
func (c *Cache) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Cache) run(ctx context.Context) {
	ticker := time.NewTicker(c.refreshInterval)
	defer ticker.Stop()
	_, _ = c.revalidate(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.revalidate(ctx); err != nil {
				c.log.Warn("background refresh failed", logger.Error(err))
			}
		}
	}
}

// Close stops background work started by the cache.
func (c *Cache) Close() {
	c.cancel()
}

// Get returns the cached snapshot, fetching only when the last fetch is
// older than the dedupe interval. A stale snapshot is returned without error
// when the fetch fails; State().Err carries the failure.
func (c *Cache) Get(ctx context.Context) (*models.Snapshot, error) {
	c.mu.RLock()
	st, last := c.state, c.lastFetch
	c.mu.RUnlock()
	if !st.Loading && !last.IsZero() && c.now().Sub(last) < c.dedupe {
		if st.Snapshot != nil {
			return st.Snapshot, nil
		}
		if st.Err != nil {
			return nil, st.Err
		}
	}
	return c.revalidate(ctx)
}

// revalidate joins the shared fetch. The fetch runs on the cache's own
// context so one caller giving up does not fail the others.
func (c *Cache) revalidate(ctx context.Context) (*models.Snapshot, error) {
	ch := c.group.DoChan("snapshot", func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(c.ctx, c.timeout)
		defer cancel()
		return c.fetch(fctx)
	})
	var (
		v   interface{}
		err error
	)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		v, err = r.Val, r.Err
	}
	if err != nil {
		if st := c.State(); st.Snapshot != nil {
			return st.Snapshot, nil
		}
		return nil, err
	}
	return v.(*models.Snapshot), nil
}

func (c *Cache) fetch(ctx context.Context) (*models.Snapshot, error) {
	c.update(func(s *State) { s.Loading = true }, true)

	body, err := c.client.Do(ctx, &xhttp.RequestOptions{Method: http.MethodGet, URL: c.baseURL + snapshotPath})
	if err != nil {
		err = c.fail(err)
		return nil, err
	}
	doc, err := models.ParseDocument(body)
	if err != nil {
		c.update(func(s *State) { s.Loading, s.Err = false, err }, false)
		return nil, err
	}
	c.accept(doc)
	return doc.Snapshot, nil
}

// Refresh asks the server to run inference. When the response carries data
// the local copy is replaced immediately.
func (c *Cache) Refresh(ctx context.Context) (*RefreshResult, error) {
	c.update(func(s *State) { s.Refreshing = true }, false)
	defer c.update(func(s *State) { s.Refreshing = false }, false)

	body, err := c.client.Do(ctx, &xhttp.RequestOptions{Method: http.MethodPost, URL: c.baseURL + refreshPath})
	if err != nil {
		return nil, c.fail(err)
	}
	var resp struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode refresh response: %w", err)
	}
	res := &RefreshResult{Success: resp.Success, Message: resp.Message}
	if len(resp.Data) > 0 && string(resp.Data) != "null" {
		doc, err := models.ParseDocument(resp.Data)
		if err != nil {
			return res, err
		}
		c.accept(doc)
		res.Snapshot = doc.Snapshot
	}
	return res, nil
}

func (c *Cache) accept(doc *models.Document) {
	c.update(func(s *State) {
		s.Snapshot = doc.Snapshot
		s.Raw = doc.Raw
		s.Loading = false
		s.Err = nil
		s.Offline = false
		s.UpdatedAt = c.now()
	}, true)
}

// fail records err and starts the reconnect probe for transport failures.
func (c *Cache) fail(err error) error {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		apiErr := &APIError{Status: se.Code}
		if json.Unmarshal(se.Body, apiErr) != nil || apiErr.Title == "" {
			apiErr.Title = http.StatusText(se.Code)
		}
		err = apiErr
	}
	offline := se == nil && !errors.Is(err, context.Canceled)
	c.update(func(s *State) {
		s.Loading = false
		s.Err = err
		if offline {
			s.Offline = true
		}
	}, false)
	if offline {
		go c.probe()
	}
	return err
}

// probe polls the health endpoint until it answers, then revalidates.
func (c *Cache) probe() {
	if !c.probing.CompareAndSwap(false, true) {
		return
	}
	defer c.probing.Store(false)

	err := c.retry.Do(c.ctx, func(ctx context.Context) error {
		_, err := c.client.Do(ctx, &xhttp.RequestOptions{Method: http.MethodGet, URL: c.baseURL + healthPath})
		return err
	})
	if err != nil {
		return
	}
	c.log.Info("server reachable again, revalidating")
	if _, err := c.revalidate(c.ctx); err != nil {
		c.log.Warn("revalidate after reconnect", logger.Error(err))
	}
}

// update mutates state under lock. touch marks a fetch start for dedupe.
func (c *Cache) update(fn func(*State), touch bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.state)
	if touch {
		c.lastFetch = c.now()
	}
	for ch := range c.subs {
		select {
		case ch <- c.state:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- c.state
		}
	}
}
