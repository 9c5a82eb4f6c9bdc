package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_GetSet(t *testing.T) {
	t.Parallel()
	db, mock := redismock.NewClientMock()
	c := NewRedisCacheWithClient(db, "omni")
	ctx := context.Background()

	mock.ExpectSet("omni:snapshot", []byte(`{"close":1}`), 0).SetVal("OK")
	mock.ExpectGet("omni:snapshot").SetVal(`{"close":1}`)
	mock.ExpectGet("omni:missing").RedisNil()
	mock.ExpectExists("omni:snapshot").SetVal(1)

	require.NoError(t, c.SetBytes(ctx, "snapshot", []byte(`{"close":1}`), 0))
	b, err := c.GetBytes(ctx, "snapshot")
	require.NoError(t, err)
	assert.Equal(t, `{"close":1}`, string(b))

	_, err = c.GetBytes(ctx, "missing")
	assert.True(t, errors.Is(err, ErrCacheMiss))

	ok, err := c.Exists(ctx, "snapshot")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_TryLockHeldElsewhere(t *testing.T) {
	t.Parallel()
	db, mock := redismock.NewClientMock()
	c := NewRedisCacheWithClient(db, "omni")
	ctx := context.Background()

	mock.CustomMatch(func(expected, actual []interface{}) error { return nil }).
		ExpectSetNX("omni:refresh-lock", "token", time.Minute).SetVal(false)

	ok, err := c.TryLock(ctx, "refresh-lock", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	// Not ours, so no command is sent.
	require.NoError(t, c.Unlock(ctx, "refresh-lock"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryCache(t *testing.T) {
	t.Parallel()
	mc := NewMemoryCache(WithMemoryCleanup(time.Hour))
	defer mc.Close()
	ctx := context.Background()

	_, err := mc.GetBytes(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	src := []byte("v1")
	require.NoError(t, mc.SetBytes(ctx, "k", src, 0))
	src[0] = 'x'
	got, err := mc.GetBytes(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))

	require.NoError(t, mc.SetBytes(ctx, "short", []byte("v"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	ok, _ := mc.Exists(ctx, "short")
	assert.False(t, ok)

	locked, _ := mc.TryLock(ctx, "lock", time.Minute)
	assert.True(t, locked)
	locked, _ = mc.TryLock(ctx, "lock", time.Minute)
	assert.False(t, locked)
	require.NoError(t, mc.Unlock(ctx, "lock"))
	locked, _ = mc.TryLock(ctx, "lock", time.Minute)
	assert.True(t, locked)
}
