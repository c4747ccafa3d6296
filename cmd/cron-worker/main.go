package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/homevia/homevia-backend/internal/cron"
	"github.com/homevia/homevia-backend/internal/notifications"
	"github.com/homevia/homevia-backend/internal/visits"
	"github.com/homevia/homevia-backend/pkg/config"
	"github.com/homevia/homevia-backend/pkg/db"
	"github.com/homevia/homevia-backend/pkg/logger"
	"github.com/homevia/homevia-backend/pkg/metrics"
	"github.com/homevia/homevia-backend/pkg/migrate"
	"github.com/homevia/homevia-backend/pkg/outbox"
	"github.com/homevia/homevia-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	dispatcher, err := notifications.NewService(notifications.NewRepository(dbClient.DB()), outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification dispatcher", err)
		os.Exit(1)
	}

	visitService, err := visits.NewService(dbClient, visits.NewRepository(dbClient.DB()), dispatcher, outboxService, cfg.Visits, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create visits service", err)
		os.Exit(1)
	}

	expiryJob, err := cron.NewVisitExpiryJob(visitService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create visit expiry job", err)
		os.Exit(1)
	}
	reminderJob, err := cron.NewVisitReminderJob(visitService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create visit reminder job", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry()
	for _, job := range []struct {
		job      cron.Job
		interval time.Duration
	}{
		{job: expiryJob, interval: cfg.Scheduler.VisitExpiryInterval},
		{job: reminderJob, interval: cfg.Scheduler.VisitReminderInterval},
	} {
		lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName(job.job.Name(), cfg.App.Env)), cfg.Scheduler.LockTTL)
		if err != nil {
			logg.Error(context.Background(), "failed to create job lock", err)
			os.Exit(1)
		}
		registry.Register(cron.Entry{Job: job.job, Interval: job.interval, Lock: lock})
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Metrics:  metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockName(job, env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("cron:%s:%s", env, job)
}
