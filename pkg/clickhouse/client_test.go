package clickhouse

import (
	"testing"
	"time"
)

func TestBuildDSN(t *testing.T) {
	got := BuildDSN(ClientConfig{
		Host: "ch", Port: 9000, Database: "omnispectrum", User: "default", Password: "p@ss",
		DialTimeout: 5 * time.Second, ReadTimeout: 30 * time.Second,
	})
	want := "clickhouse://default:p%40ss@ch:9000/omnispectrum?dial_timeout=5s&read_timeout=30s"
	if got != want {
		t.Fatalf("dsn = %q, want %q", got, want)
	}
}

func TestNewClientRequiresHost(t *testing.T) {
	if _, err := NewClient(); err == nil {
		t.Fatalf("expected error without host")
	}
}
