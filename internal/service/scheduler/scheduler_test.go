package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestRunner_AddAndRun(t *testing.T) {
	r := New(context.Background(), nil)
	ran := make(chan struct{}, 1)
	if _, err := r.Add("@every 1s", func(context.Context) {
		select {
		case ran <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := r.Add("*/5 * * * *", func(context.Context) {}); err != nil {
		t.Fatalf("five-field schedule: %v", err)
	}
	if _, err := r.Add("not a schedule", func(context.Context) {}); err == nil {
		t.Fatal("expected parse error")
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 jobs, got %d", r.Len())
	}

	r.Start()
	defer r.Stop()
	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}
