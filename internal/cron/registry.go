package cron

import (
	"context"
	"time"
)

// Job represents a scheduled task that runs inside the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Entry pairs a job with its own cadence and distributed lock. Jobs tick
// independently so a long daily sweep never delays an hourly one.
type Entry struct {
	Job      Job
	Interval time.Duration
	Lock     Lock
}

// Registry tracks scheduled job entries.
type Registry struct {
	entries []Entry
}

// NewRegistry builds a registry preloaded with the provided entries.
func NewRegistry(entries ...Entry) *Registry {
	registry := &Registry{}
	for _, entry := range entries {
		registry.Register(entry)
	}
	return registry
}

// Register adds an entry to the registry.
func (r *Registry) Register(entry Entry) {
	if entry.Job == nil {
		return
	}
	r.entries = append(r.entries, entry)
}

// Entries returns the registered entries in the order they were added.
func (r *Registry) Entries() []Entry {
	entries := make([]Entry, len(r.entries))
	copy(entries, r.entries)
	return entries
}
