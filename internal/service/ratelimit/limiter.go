package ratelimit

import (
	"sync"
	"time"
)

// sweepInterval is how often Allow drops buckets that have refilled to
// capacity. A full bucket behaves exactly like a missing one.
const sweepInterval = time.Minute

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter is a per-key token bucket.
type Limiter struct {
	mu         sync.Mutex
	m          map[string]*bucket
	capacity   float64
	refillRate float64 // tokens per second
	now        func() time.Time
	lastSweep  time.Time
}

// New returns a limiter allowing bursts of capacity and refilling at
// refillPerSec. A non-positive refill rate disables limiting.
func New(capacity int, refillPerSec float64) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	return &Limiter{
		m:          make(map[string]*bucket),
		capacity:   float64(capacity),
		refillRate: refillPerSec,
		now:        time.Now,
	}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	if l == nil || l.refillRate <= 0 {
		return true
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= sweepInterval {
		l.sweep(now)
	}

	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.m[key] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * l.refillRate
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

func (l *Limiter) sweep(now time.Time) {
	for k, b := range l.m {
		if b.tokens+now.Sub(b.last).Seconds()*l.refillRate >= l.capacity {
			delete(l.m, k)
		}
	}
	l.lastSweep = now
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
