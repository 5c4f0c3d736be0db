package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quake-risk-service/internal/adapter/postgres"
	"github.com/couchcryptid/quake-risk-service/internal/adapter/usgs"
	"github.com/couchcryptid/quake-risk-service/internal/config"
	"github.com/couchcryptid/quake-risk-service/internal/ingest"
	"github.com/couchcryptid/quake-risk-service/internal/observability"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	store, err := postgres.Connect(connectCtx, cfg.DatabaseURL(), logger)
	cancel()
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	feed := usgs.NewClient(cfg.FeedURL, cfg.FeedTimeout, logger)
	job := ingest.New(feed, store, clockwork.NewRealClock(), logger, metrics, cfg.IngestWindowDays)

	if err := job.Run(ctx); err != nil {
		logger.Error("ingestion failed", "error", err)
		os.Exit(1)
	}
}
