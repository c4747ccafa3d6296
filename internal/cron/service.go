package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/homevia/homevia-backend/pkg/logger"
	"github.com/homevia/homevia-backend/pkg/metrics"
)

const defaultInterval = 24 * time.Hour

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Metrics  *metrics.CronJobMetrics
}

// Service runs each registered entry on its own ticker. A failing tick is
// logged and the next tick fires regardless.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	metrics  *metrics.CronJobMetrics
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		metrics:  params.Metrics,
	}, nil
}

// Run starts one loop per entry and blocks until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var wg sync.WaitGroup
	for _, entry := range s.registry.Entries() {
		wg.Add(1)
		go func(entry Entry) {
			defer wg.Done()
			s.runLoop(ctx, entry)
		}(entry)
	}
	wg.Wait()
	s.logg.Info(ctx, "cron service context canceled")
	return ctx.Err()
}

func (s *Service) runLoop(ctx context.Context, entry Entry) {
	interval := entry.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	s.runOnce(ctx, entry)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, entry)
		}
	}
}

// runOnce takes the entry's lock so only one worker instance sweeps at a
// time, then runs the job and records the outcome.
func (s *Service) runOnce(ctx context.Context, entry Entry) {
	jobCtx := s.logg.WithField(ctx, "job", entry.Job.Name())
	jobCtx = s.logg.WithField(jobCtx, "event", "cron.job")

	if entry.Lock != nil {
		locked, err := entry.Lock.Acquire(jobCtx)
		if err != nil {
			s.logg.Error(jobCtx, "lock acquire failed", err)
			s.recordFailure(entry.Job.Name())
			return
		}
		if !locked {
			s.logg.Info(jobCtx, "another instance holds the lock; skipping this tick")
			return
		}
		defer func() {
			if relErr := entry.Lock.Release(jobCtx); relErr != nil {
				s.logg.Error(jobCtx, "failed to release job lock", relErr)
			}
		}()
	}

	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	err := entry.Job.Run(jobCtx)
	duration := time.Since(start)
	s.observeDuration(entry.Job.Name(), duration)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.recordFailure(entry.Job.Name())
		return
	}
	s.logg.Info(jobCtx, "job completed")
	s.recordSuccess(entry.Job.Name())
}

func (s *Service) observeDuration(job string, duration time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveDuration(job, duration)
}

func (s *Service) recordSuccess(job string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncSuccess(job)
}

func (s *Service) recordFailure(job string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncFailure(job)
}
