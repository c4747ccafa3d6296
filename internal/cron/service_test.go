package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/homevia/homevia-backend/pkg/logger"
)

type fakeLock struct {
	held     bool
	acquires int
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	f.acquires++
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func newTestService(t *testing.T, registry *Registry) *Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	service, err := NewService(ServiceParams{Logger: logg, Registry: registry})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return service
}

func TestRunOnceReleasesLockAfterFailure(t *testing.T) {
	lock := &fakeLock{}
	job := &testJob{name: "fail", err: errors.New("boom")}
	service := newTestService(t, NewRegistry())

	service.runOnce(context.Background(), Entry{Job: job, Lock: lock})

	if job.runs != 1 {
		t.Fatalf("expected job to run once, ran %d", job.runs)
	}
	if lock.releases != 1 {
		t.Fatalf("expected lock released once, released %d", lock.releases)
	}
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	lock := &fakeLock{held: true}
	job := &testJob{name: "skipped"}
	service := newTestService(t, NewRegistry())

	service.runOnce(context.Background(), Entry{Job: job, Lock: lock})

	if job.runs != 0 {
		t.Fatalf("expected job not to run, ran %d", job.runs)
	}
	if lock.releases != 0 {
		t.Fatalf("lock must not be released by the instance that failed to acquire it")
	}
}

func TestRunOnceWithoutLock(t *testing.T) {
	job := &testJob{name: "unlocked"}
	service := newTestService(t, NewRegistry())

	service.runOnce(context.Background(), Entry{Job: job})

	if job.runs != 1 {
		t.Fatalf("expected job to run once, ran %d", job.runs)
	}
}

func TestRunTicksEachEntryIndependently(t *testing.T) {
	fast := &testJob{name: "fast"}
	slow := &testJob{name: "slow"}
	registry := NewRegistry(
		Entry{Job: fast, Interval: 10 * time.Millisecond, Lock: &fakeLock{}},
		Entry{Job: slow, Interval: time.Hour, Lock: &fakeLock{}},
	)
	service := newTestService(t, registry)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_ = service.Run(ctx)

	if fast.runs < 2 {
		t.Fatalf("expected fast job to tick more than once, ran %d", fast.runs)
	}
	if slow.runs != 1 {
		t.Fatalf("expected slow job to run only the immediate pass, ran %d", slow.runs)
	}
}

func TestVisitJobsReportCounts(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})

	expiry, err := NewVisitExpiryJob(expireFunc(func(context.Context, time.Time) (int, error) { return 3, nil }), logg)
	if err != nil {
		t.Fatalf("construct expiry job: %v", err)
	}
	if err := expiry.Run(context.Background()); err != nil {
		t.Fatalf("expiry run: %v", err)
	}

	reminder, err := NewVisitReminderJob(remindFunc(func(context.Context, time.Time) (int, error) { return 0, errors.New("smtp down") }), logg)
	if err != nil {
		t.Fatalf("construct reminder job: %v", err)
	}
	if err := reminder.Run(context.Background()); err == nil {
		t.Fatalf("expected reminder sweep error to surface")
	}
}

type expireFunc func(ctx context.Context, now time.Time) (int, error)

func (f expireFunc) ExpireStale(ctx context.Context, now time.Time) (int, error) { return f(ctx, now) }

type remindFunc func(ctx context.Context, now time.Time) (int, error)

func (f remindFunc) SendDueReminders(ctx context.Context, now time.Time) (int, error) {
	return f(ctx, now)
}
