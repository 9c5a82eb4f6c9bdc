package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockScript deletes the lock only while it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisCache implements Service using Redis.
type RedisCache struct {
	client redis.UniversalClient
	prefix string

	mu     sync.Mutex
	tokens map[string]string
}

func NewRedisCache(opts ...RedisOption) (*RedisCache, error) {
	cfg := &RedisConfig{
		Addr:         "localhost:6379",
		PoolSize:     10,
		PoolTimeout:  30 * time.Second,
		MinIdleConns: 2,
		Prefix:       "omnispectrum",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		PoolTimeout:  cfg.PoolTimeout,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedisCacheWithClient(client, cfg.Prefix), nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client redis.UniversalClient, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, tokens: make(map[string]string)}
}

func (c *RedisCache) Client() redis.UniversalClient { return c.client }

func (c *RedisCache) Close() error { return c.client.Close() }

func (c *RedisCache) SetBytes(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return c.client.Set(ctx, c.wrapKey(key), value, expiration).Err()
}

func (c *RedisCache) GetBytes(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, c.wrapKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	return data, nil
}

func (c *RedisCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	n, err := c.client.Exists(ctx, c.wrapKeys(keys...)...).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	return c.client.Unlink(ctx, c.wrapKeys(keys...)...).Err()
}

// TryLock sets key with a random token if it is absent.
func (c *RedisCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, c.wrapKey(key), token, ttl).Result()
	if err != nil || !ok {
		return false, err
	}
	c.mu.Lock()
	c.tokens[key] = token
	c.mu.Unlock()
	return true, nil
}

// Unlock releases a lock taken by this instance. Locks held by other
// instances are left alone.
func (c *RedisCache) Unlock(ctx context.Context, key string) error {
	c.mu.Lock()
	token, ok := c.tokens[key]
	delete(c.tokens, key)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return unlockScript.Run(ctx, c.client, []string{c.wrapKey(key)}, token).Err()
}

func (c *RedisCache) wrapKey(key string) string {
	return GenerateKey(c.prefix, key)
}

func (c *RedisCache) wrapKeys(keys ...string) []string {
	wrapped := make([]string, len(keys))
	for i, key := range keys {
		wrapped[i] = c.wrapKey(key)
	}
	return wrapped
}
