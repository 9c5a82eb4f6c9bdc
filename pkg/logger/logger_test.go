package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

type capturePublisher struct {
	mu    sync.Mutex
	topic string
	logs  []AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.logs = append(p.logs, payload.([]AggregatedLogEntry)...)
	return nil
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf).With(String("component", "refresh"))
	l.Info("done", Float64("close", 105.5), Duration("took", 1500*time.Millisecond), Error(errors.New("boom")))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry["component"] != "refresh" {
		t.Fatalf("component = %v", entry["component"])
	}
	if entry["close"] != 105.5 {
		t.Fatalf("close = %v", entry["close"])
	}
	if entry["took"] != float64(1500) {
		t.Fatalf("took = %v", entry["took"])
	}
	if entry["error"] != "boom" {
		t.Fatalf("error = %v", entry["error"])
	}
}

func TestCollectorFoldsDuplicates(t *testing.T) {
	pub := &capturePublisher{}
	l := NewNop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 10, Topic: "logs", Publisher: pub})

	for i := 0; i < 3; i++ {
		l.Error("store write failed", String("op", "write"))
	}
	l.Error("publish failed")
	if got := l.collector.Pending(); got != 2 {
		t.Fatalf("pending = %d, want 2", got)
	}

	l.RemoveCollector()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if pub.topic != "logs" {
		t.Fatalf("topic = %q", pub.topic)
	}
	if len(pub.logs) != 2 {
		t.Fatalf("published %d entries, want 2", len(pub.logs))
	}
	counts := map[string]int{}
	for _, e := range pub.logs {
		counts[e.Message] = e.Count
	}
	if counts["store write failed"] != 3 || counts["publish failed"] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}
