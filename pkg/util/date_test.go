package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeIsoformat(t *testing.T) {
	got, ok := ParseTime("2025-01-10T15:30:00.123456")
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Hour() != 15 || got.Nanosecond() != 123456000 {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeInvalid(t *testing.T) {
	if _, ok := ParseTime("not a time"); ok {
		t.Fatalf("expected failure")
	}
}

func TestTail(t *testing.T) {
	if got := Tail("  short \n", 10); got != "short" {
		t.Fatalf("Tail short = %q", got)
	}
	if got := Tail("0123456789", 4); got != "...6789" {
		t.Fatalf("Tail long = %q", got)
	}
}
