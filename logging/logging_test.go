package logging

import (
	"context"
	"testing"
	"time"
)

func TestRouterDeliversToSink(t *testing.T) {
	mem := NewMemorySink()
	r := NewRouter(DefaultConfig(), []NamedSink{{Name: "mem", Sink: mem}})
	defer r.Close(context.Background())

	r.Log(SeverityInfo, CategoryStore, "hello", map[string]any{"frame": 1})

	deadline := time.Now().Add(time.Second)
	for len(mem.Snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	events := mem.Snapshot()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Message != "hello" {
		t.Fatalf("unexpected message %q", events[0].Message)
	}
}

func TestRouterFiltersBelowMinimumSeverity(t *testing.T) {
	mem := NewMemorySink()
	cfg := DefaultConfig()
	cfg.MinimumSeverity = SeverityWarn
	r := NewRouter(cfg, []NamedSink{{Name: "mem", Sink: mem}})
	defer r.Close(context.Background())

	r.Log(SeverityInfo, CategoryStore, "should be filtered", nil)
	time.Sleep(20 * time.Millisecond)
	if len(mem.Snapshot()) != 0 {
		t.Fatalf("expected event below MinimumSeverity to be filtered")
	}
}

func TestNilRouterIsNoOp(t *testing.T) {
	var r *Router
	r.Log(SeverityInfo, CategoryStore, "noop", nil)
	if r.Stats() != (Stats{}) {
		t.Fatal("nil router Stats should be zero value")
	}
	if err := r.Close(context.Background()); err != nil {
		t.Fatalf("nil router Close should be no-op, got %v", err)
	}
}

func TestRouterCloseIsIdempotent(t *testing.T) {
	mem := NewMemorySink()
	r := NewRouter(DefaultConfig(), []NamedSink{{Name: "mem", Sink: mem}})
	if err := r.Close(context.Background()); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := r.Close(context.Background()); err != nil {
		t.Fatalf("second close should be no-op, got %v", err)
	}
}
