package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/homevia/homevia-backend/api/controllers"
	"github.com/homevia/homevia-backend/api/routes"
	"github.com/homevia/homevia-backend/internal/commission"
	"github.com/homevia/homevia-backend/internal/deals"
	"github.com/homevia/homevia-backend/internal/documents"
	"github.com/homevia/homevia-backend/internal/notifications"
	"github.com/homevia/homevia-backend/internal/users"
	"github.com/homevia/homevia-backend/internal/visits"
	"github.com/homevia/homevia-backend/pkg/config"
	"github.com/homevia/homevia-backend/pkg/db"
	"github.com/homevia/homevia-backend/pkg/logger"
	"github.com/homevia/homevia-backend/pkg/migrate"
	"github.com/homevia/homevia-backend/pkg/outbox"
	"github.com/homevia/homevia-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	visitService, err := visits.NewService(dbClient, visits.NewRepository(dbClient.DB()), dispatcher, outboxService, cfg.Visits, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create visits service", err)
		os.Exit(1)
	}

	calculator, err := commission.NewCalculator(cfg.Commission)
	if err != nil {
		logg.Error(context.Background(), "failed to create commission calculator", err)
		os.Exit(1)
	}
	documentsClient, err := documents.NewClient(cfg.Documents)
	if err != nil {
		logg.Error(context.Background(), "failed to create documents client", err)
		os.Exit(1)
	}

	dealService, err := deals.NewService(
		dbClient,
		deals.NewRepository(dbClient.DB()),
		users.NewRepository(dbClient.DB()),
		documentsClient,
		calculator,
		dispatcher,
		outboxService,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create deals service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	readiness := map[string]controllers.Pinger{
		"database": dbClient,
		"redis":    redisClient,
	}

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, readiness, visitService, dealService, dispatcher),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
