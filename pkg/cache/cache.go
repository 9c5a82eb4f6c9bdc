package cache

import (
	"context"
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache: key not found")

// Service is the key/value surface shared by the Redis and in-memory caches.
type Service interface {
	SetBytes(ctx context.Context, key string, value []byte, expiration time.Duration) error
	GetBytes(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, keys ...string) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
	Close() error
}
