package ratelimit

import (
	"testing"
	"time"
)

func TestLimiter_BurstAndRefill(t *testing.T) {
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	l := New(2, 0.5)
	l.now = func() time.Time { return now }

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("burst of two should be allowed")
	}
	if l.Allow("a") {
		t.Fatal("third request should be limited")
	}
	if !l.Allow("b") {
		t.Fatal("keys are independent")
	}

	now = now.Add(2 * time.Second)
	if !l.Allow("a") {
		t.Fatal("one token should have refilled")
	}
	if l.Allow("a") {
		t.Fatal("only one token refilled")
	}
}

func TestLimiter_DropsIdleFullBuckets(t *testing.T) {
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	l := New(2, 0.5)
	l.now = func() time.Time { return now }

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		l.Allow(ip)
	}
	l.Allow("10.0.0.3")
	if got := l.Len(); got != 3 {
		t.Fatalf("tracked keys = %d, want 3", got)
	}

	// 10.0.0.3 is used a second before the sweep, so its bucket is not full.
	now = now.Add(sweepInterval - time.Second)
	l.Allow("10.0.0.3")
	now = now.Add(time.Second)
	l.Allow("10.0.0.4")
	if got := l.Len(); got != 2 {
		t.Fatalf("tracked keys after sweep = %d, want 2", got)
	}
	if l.Allow("10.0.0.3") && l.Allow("10.0.0.3") {
		t.Fatal("drained bucket must survive the sweep")
	}
}

func TestLimiter_Disabled(t *testing.T) {
	l := New(1, 0)
	for i := 0; i < 10; i++ {
		if !l.Allow("a") {
			t.Fatal("zero refill rate disables limiting")
		}
	}
}
