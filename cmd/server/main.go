package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/quake-risk-service/internal/adapter/http"
	"github.com/couchcryptid/quake-risk-service/internal/adapter/nominatim"
	"github.com/couchcryptid/quake-risk-service/internal/adapter/postgres"
	"github.com/couchcryptid/quake-risk-service/internal/config"
	"github.com/couchcryptid/quake-risk-service/internal/observability"
	"github.com/couchcryptid/quake-risk-service/internal/risk"
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

	geocoder := nominatim.NewCachedGeocoder(
		nominatim.NewClient(cfg.GeocoderURL, cfg.GeocoderTimeout, logger),
		cfg.GeocodeCacheTTL, metrics,
	)
	defer geocoder.Stop()

	snapshots := risk.NewSnapshots(cfg.GridPath, cfg.MagnitudePath, cfg.CountPath, cfg.SnapshotTTL, logger)
	defer snapshots.Stop()

	resolver := risk.NewResolver(store, geocoder, store, snapshots,
		clockwork.NewRealClock(), logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, resolver, store, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
