package metrics

import (
	"testing"
	"time"
)

func TestCollectorSnapshot(t *testing.T) {
	c := New()
	c.Record(200, 10*time.Millisecond)
	c.Record(500, 30*time.Millisecond)
	c.Record(429, 0)
	c.RecordJob(false)
	c.RecordJob(true)

	snap := c.Snapshot()
	if snap["requestsTotal"] != uint64(3) {
		t.Fatalf("expected 3 requests, got %v", snap["requestsTotal"])
	}
	if snap["errorsTotal"] != uint64(1) {
		t.Fatalf("expected 1 error, got %v", snap["errorsTotal"])
	}
	if snap["rateLimitedTotal"] != uint64(1) {
		t.Fatalf("expected 1 rate limited, got %v", snap["rateLimitedTotal"])
	}
	if snap["jobRunsTotal"] != uint64(2) || snap["jobFailuresTotal"] != uint64(1) {
		t.Fatalf("unexpected job counters: %v / %v", snap["jobRunsTotal"], snap["jobFailuresTotal"])
	}
}

func TestCollectorAverageOnEmpty(t *testing.T) {
	snap := New().Snapshot()
	if snap["avgDurationMs"] != float64(0) {
		t.Fatalf("expected zero average with no requests, got %v", snap["avgDurationMs"])
	}
}
