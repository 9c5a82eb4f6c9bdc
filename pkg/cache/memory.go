package cache

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	value    []byte
	expireAt time.Time // zero means no expiry
}

func (m *memoryItem) expired(now time.Time) bool {
	return !m.expireAt.IsZero() && now.After(m.expireAt)
}

// MemoryCache implements Service in process.
type MemoryCache struct {
	mu      sync.RWMutex
	data    map[string]*memoryItem
	ticker  *time.Ticker
	done    chan struct{}
	closeMu sync.Once
}

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{CleanupInterval: 5 * time.Minute}
	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		data:   make(map[string]*memoryItem),
		ticker: time.NewTicker(cfg.CleanupInterval),
		done:   make(chan struct{}),
	}
	go mc.cleanupExpired()
	return mc
}

func (mc *MemoryCache) SetBytes(_ context.Context, key string, value []byte, expiration time.Duration) error {
	item := &memoryItem{value: append([]byte(nil), value...)}
	if expiration > 0 {
		item.expireAt = time.Now().Add(expiration)
	}
	mc.mu.Lock()
	mc.data[key] = item
	mc.mu.Unlock()
	return nil
}

func (mc *MemoryCache) GetBytes(_ context.Context, key string) ([]byte, error) {
	mc.mu.RLock()
	item, ok := mc.data[key]
	mc.mu.RUnlock()
	if !ok || item.expired(time.Now()) {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), item.value...), nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	now := time.Now()
	for _, key := range keys {
		if item, ok := mc.data[key]; ok && !item.expired(now) {
			return true, nil
		}
	}
	return false, nil
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, key := range keys {
		delete(mc.data, key)
	}
	return nil
}

func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if item, ok := mc.data[key]; ok && !item.expired(time.Now()) {
		return false, nil
	}
	mc.data[key] = &memoryItem{value: []byte("locked"), expireAt: time.Now().Add(ttl)}
	return true, nil
}

func (mc *MemoryCache) Unlock(ctx context.Context, key string) error {
	return mc.Delete(ctx, key)
}

func (mc *MemoryCache) cleanupExpired() {
	for {
		select {
		case <-mc.done:
			return
		case now := <-mc.ticker.C:
			mc.mu.Lock()
			for key, item := range mc.data {
				if item.expired(now) {
					delete(mc.data, key)
				}
			}
			mc.mu.Unlock()
		}
	}
}

func (mc *MemoryCache) Close() error {
	mc.closeMu.Do(func() {
		mc.ticker.Stop()
		close(mc.done)
	})
	return nil
}
