package cron

import (
	"context"
	"testing"
	"time"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryStoresEntries(t *testing.T) {
	registry := NewRegistry()
	jobA := &stubJob{name: "a"}
	jobB := &stubJob{name: "b"}
	registry.Register(Entry{Job: jobA, Interval: time.Hour})
	registry.Register(Entry{Job: jobB, Interval: 24 * time.Hour})
	registry.Register(Entry{Job: nil})
	entries := registry.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Job != jobA || entries[1].Job != jobB {
		t.Fatalf("entries returned out of order")
	}
	// ensure caller cannot mutate internal slice
	entries[0].Job = nil
	if registry.Entries()[0].Job == nil {
		t.Fatalf("internal slice leaked")
	}
}
