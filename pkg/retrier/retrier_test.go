package retrier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetrier_Do(t *testing.T) {
	t.Run("success after retries", func(t *testing.T) {
		r := New(WithMaxRetries(3), WithInitialInterval(time.Millisecond))
		attempts := 0
		err := r.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return errors.New("fail")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("fail after max retries", func(t *testing.T) {
		var waits []int
		r := New(WithMaxRetries(2), WithInitialInterval(time.Millisecond),
			WithOnRetry(func(attempt int, _ error, _ time.Duration) { waits = append(waits, attempt) }))
		attempts := 0
		err := r.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return errors.New("fail")
		})
		assert.Error(t, err)
		assert.Equal(t, 3, attempts)
		assert.Equal(t, []int{1, 2}, waits)
	})

	t.Run("permanent stops immediately", func(t *testing.T) {
		sentinel := errors.New("bad request")
		r := New(WithMaxRetries(5), WithInitialInterval(time.Millisecond))
		attempts := 0
		err := r.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return Permanent(sentinel)
		})
		assert.ErrorIs(t, err, sentinel)
		assert.Equal(t, 1, attempts)
	})

	t.Run("unlimited until cancelled", func(t *testing.T) {
		r := New(WithMaxRetries(-1), WithInitialInterval(time.Millisecond), WithMaxInterval(2*time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())
		attempts := 0
		err := r.Do(ctx, func(ctx context.Context) error {
			attempts++
			if attempts == 10 {
				cancel()
			}
			return errors.New("offline")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 10, attempts)
	})
}

func TestRetrier_Backoff(t *testing.T) {
	r := New(WithInitialInterval(100*time.Millisecond), WithMaxInterval(time.Second), WithJitter(0))
	assert.Equal(t, 100*time.Millisecond, r.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, r.Backoff(2))
	assert.Equal(t, 400*time.Millisecond, r.Backoff(3))
	assert.Equal(t, time.Second, r.Backoff(10))
}

func TestDoWithData(t *testing.T) {
	r := New()
	val, err := DoWithData(r, context.Background(), func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	assert.NoError(t, err)
	assert.Equal(t, "ok", val)
}
