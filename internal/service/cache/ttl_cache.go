package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	v   V
	exp time.Time
}

// TTLCache is an in-process map whose entries expire after a per-entry TTL.
// A zero TTL never expires.
type TTLCache[V any] struct {
	mu  sync.RWMutex
	m   map[string]entry[V]
	now func() time.Time
}

func NewTTLCache[V any]() *TTLCache[V] {
	return &TTLCache[V]{m: make(map[string]entry[V]), now: time.Now}
}

func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		var zero V
		return zero, false
	}
	if !e.exp.IsZero() && c.now().After(e.exp) {
		c.mu.Lock()
		if cur, ok := c.m[key]; ok && cur.exp.Equal(e.exp) {
			delete(c.m, key)
		}
		c.mu.Unlock()
		var zero V
		return zero, false
	}
	return e.v, true
}

func (c *TTLCache[V]) Set(key string, v V, ttl time.Duration) {
	var exp time.Time
	if ttl > 0 {
		exp = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.m[key] = entry[V]{v: v, exp: exp}
	c.mu.Unlock()
}

func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
}
