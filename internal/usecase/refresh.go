package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"OmniSpectrum/internal/domain/models"
	drepo "OmniSpectrum/internal/domain/repository"
	dservice "OmniSpectrum/internal/domain/service"
	"OmniSpectrum/pkg/logger"
)

const (
	OverlapCoalesce = "coalesce"
	OverlapReject   = "reject"

	refreshLockKey = "refresh-lock"
)

// RefreshOptions tunes the refresh orchestrator.
type RefreshOptions struct {
	Overlap        string
	LockTTL        time.Duration
	PublishTimeout time.Duration
}

// Refresher runs the generator and keeps the store current. It is the only
// writer of the snapshot store.
type Refresher struct {
	gen     dservice.ForecastGenerator
	store   drepo.SnapshotStore
	pub     drepo.EventPublisher
	lock    drepo.Locker
	metrics drepo.Metrics
	log     *logger.Logger
	opts    RefreshOptions

	group   singleflight.Group
	running atomic.Bool

	mu        sync.RWMutex
	listeners []drepo.SnapshotListener
}

// NewRefresher creates a Refresher. pub, lock and metrics may be nil.
func NewRefresher(
	gen dservice.ForecastGenerator,
	store drepo.SnapshotStore,
	pub drepo.EventPublisher,
	lock drepo.Locker,
	metrics drepo.Metrics,
	log *logger.Logger,
	opts RefreshOptions,
) *Refresher {
	if opts.Overlap == "" {
		opts.Overlap = OverlapCoalesce
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 5 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Refresher{
		gen:     gen,
		store:   store,
		pub:     pub,
		lock:    lock,
		metrics: metrics,
		log:     log.With(logger.String("component", "refresher")),
		opts:    opts,
	}
}

// AddListener registers l to receive every newly generated snapshot.
func (r *Refresher) AddListener(l drepo.SnapshotListener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, l)
	r.mu.Unlock()
}

// Refresh runs one refresh. On generator failure it returns the stored
// snapshot marked Degraded, or ErrNoDataAvailable when there is none.
// Cancelling ctx does not abort an in-flight invocation.
func (r *Refresher) Refresh(ctx context.Context) (*models.RefreshResult, error) {
	ctx = context.WithoutCancel(ctx)

	if r.opts.Overlap == OverlapReject {
		if !r.running.CompareAndSwap(false, true) {
			r.recordRefresh("busy", 0)
			return nil, models.ErrRefreshBusy
		}
		defer r.running.Store(false)
		return r.run(ctx)
	}

	v, err, shared := r.group.Do("refresh", func() (interface{}, error) {
		return r.run(ctx)
	})
	if shared {
		r.log.Debug("refresh coalesced")
	}
	if err != nil {
		return nil, err
	}
	return v.(*models.RefreshResult), nil
}

func (r *Refresher) run(ctx context.Context) (*models.RefreshResult, error) {
	res := &models.RefreshResult{ID: uuid.NewString(), StartedAt: time.Now().UTC()}
	log := r.log.With(logger.String("refresh_id", res.ID))

	doc, genErr := r.generate(ctx)
	if genErr == nil {
		res.Document = doc
		res.Duration = time.Since(res.StartedAt)
		if err := r.store.Write(ctx, doc); err != nil {
			log.Error("store write failed", logger.Error(err))
			r.recordStoreError("write")
		}
		r.notify(doc)
		r.publish(ctx, res, log)
		r.recordRefresh("success", res.Duration.Seconds())
		log.Info("refresh completed",
			logger.Float64("close", doc.Snapshot.Close),
			logger.Duration("duration", res.Duration))
		return res, nil
	}

	log.Warn("generator failed, falling back to stored snapshot", logger.Error(genErr))
	prior, err := r.store.Read(ctx)
	res.Duration = time.Since(res.StartedAt)
	if err != nil {
		if !errors.Is(err, models.ErrSnapshotNotFound) {
			log.Error("store read failed", logger.Error(err))
			r.recordStoreError("read")
		}
		r.recordRefresh("no_data", res.Duration.Seconds())
		return nil, fmt.Errorf("%w: %w", models.ErrNoDataAvailable, genErr)
	}

	res.Degraded = true
	res.Document = prior
	res.Cause = genErr
	r.publish(ctx, res, log)
	r.recordRefresh("degraded", res.Duration.Seconds())
	return res, nil
}

func (r *Refresher) generate(ctx context.Context) (*models.Document, error) {
	if r.lock == nil {
		return r.gen.Generate(ctx)
	}
	ok, err := r.lock.TryLock(ctx, refreshLockKey, r.opts.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire refresh lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("refresh lock held by another instance: %w", models.ErrRefreshBusy)
	}
	defer func() {
		if err := r.lock.Unlock(ctx, refreshLockKey); err != nil {
			r.log.Warn("release refresh lock", logger.Error(err))
		}
	}()
	return r.gen.Generate(ctx)
}

func (r *Refresher) notify(doc *models.Document) {
	r.mu.RLock()
	ls := append([]drepo.SnapshotListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, l := range ls {
		l.OnSnapshot(doc)
	}
}

func (r *Refresher) publish(ctx context.Context, res *models.RefreshResult, log *logger.Logger) {
	if r.pub == nil {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, r.opts.PublishTimeout)
	defer cancel()
	if err := r.pub.Publish(pctx, models.NewSnapshotEvent(res)); err != nil {
		log.Warn("publish refresh event", logger.Error(err))
		if r.metrics != nil {
			r.metrics.RecordPublishError()
		}
	}
}

func (r *Refresher) recordRefresh(outcome string, seconds float64) {
	if r.metrics != nil {
		r.metrics.RecordRefresh(outcome, seconds)
	}
}

func (r *Refresher) recordStoreError(op string) {
	if r.metrics != nil {
		r.metrics.RecordStoreError(op)
	}
}
