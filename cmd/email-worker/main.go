package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/homevia/homevia-backend/internal/notifications"
	"github.com/homevia/homevia-backend/internal/users"
	"github.com/homevia/homevia-backend/pkg/config"
	"github.com/homevia/homevia-backend/pkg/db"
	"github.com/homevia/homevia-backend/pkg/email"
	"github.com/homevia/homevia-backend/pkg/logger"
	"github.com/homevia/homevia-backend/pkg/migrate"
	"github.com/homevia/homevia-backend/pkg/pubsub"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "email-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "email-worker"

	logg = logger.New(logger.Options{
		ServiceName: "email-worker",
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

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	// without SMTP credentials the worker still drains the queue; failed
	// deliveries are recorded on the notification rows
	var sender email.Sender
	if cfg.SMTP.IsConfigured() {
		smtpSender, err := email.NewSMTPSender(cfg.SMTP)
		if err != nil {
			logg.Error(context.Background(), "failed to configure smtp sender", err)
			os.Exit(1)
		}
		sender = smtpSender
	} else {
		logg.Warn(context.Background(), "smtp is not configured; email deliveries will be marked failed")
	}

	deliverer, err := notifications.NewDeliverer(
		notifications.NewRepository(dbClient.DB()),
		users.NewRepository(dbClient.DB()),
		sender,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create email deliverer", err)
		os.Exit(1)
	}

	consumer, err := notifications.NewConsumer(deliverer, pubsubClient.NotificationSubscription(), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification consumer", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting email worker")

	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "email worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "email worker shutting down gracefully")
}
