package retrier

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

const (
	defaultInitialInterval = time.Second
	defaultMaxInterval     = 30 * time.Second
	defaultMultiplier      = 2.0
	defaultMaxRetries      = 5
	defaultJitter          = 0.1
)

// Retrier implements exponential backoff with jitter.
type Retrier struct {
	initialInterval time.Duration
	maxInterval     time.Duration
	multiplier      float64
	maxRetries      int // negative retries until ctx is done
	jitter          float64
	onRetry         func(attempt int, err error, wait time.Duration)
}

type Option func(*Retrier)

func WithInitialInterval(d time.Duration) Option {
	return func(r *Retrier) { r.initialInterval = d }
}

func WithMaxInterval(d time.Duration) Option {
	return func(r *Retrier) { r.maxInterval = d }
}

func WithMultiplier(m float64) Option {
	return func(r *Retrier) { r.multiplier = m }
}

// WithMaxRetries sets the retry count. A negative value retries until the
// context is cancelled.
func WithMaxRetries(n int) Option {
	return func(r *Retrier) { r.maxRetries = n }
}

// WithJitter sets the jitter factor (0.0 to 1.0).
func WithJitter(j float64) Option {
	return func(r *Retrier) { r.jitter = j }
}

// WithOnRetry registers a callback invoked before each wait.
func WithOnRetry(fn func(attempt int, err error, wait time.Duration)) Option {
	return func(r *Retrier) { r.onRetry = fn }
}

func New(opts ...Option) *Retrier {
	r := &Retrier{
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
		multiplier:      defaultMultiplier,
		maxRetries:      defaultMaxRetries,
		jitter:          defaultJitter,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Backoff returns the wait before the given retry (1-based), jitter included.
func (r *Retrier) Backoff(attempt int) time.Duration {
	interval := float64(r.initialInterval)
	for i := 1; i < attempt; i++ {
		interval *= r.multiplier
		if interval > float64(r.maxInterval) {
			interval = float64(r.maxInterval)
			break
		}
	}
	if interval > float64(r.maxInterval) {
		interval = float64(r.maxInterval)
	}
	wait := time.Duration(interval + (rand.Float64()*2-1)*r.jitter*interval)
	if wait < 0 {
		return 0
	}
	return wait
}

// Do executes fn until it succeeds, returns a Permanent error, the retries
// are exhausted or ctx is done.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; r.maxRetries < 0 || attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			wait := r.Backoff(attempt)
			if r.onRetry != nil {
				r.onRetry(attempt, err, wait)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
	}
	return err
}

// DoWithData executes fn with retries and returns its value.
func DoWithData[T any](r *Retrier, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		var e error
		result, e = fn(ctx)
		return e
	})
	return result, err
}
