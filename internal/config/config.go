package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds all service settings, populated from environment variables.
// Both binaries share one config; each reads the subset it needs.
type Config struct {
	// Postgres connection (variable names match the deployment's .env).
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Earthquake feed.
	FeedURL          string
	FeedTimeout      time.Duration
	IngestWindowDays int

	// Geocoder.
	GeocoderURL     string
	GeocoderTimeout time.Duration
	GeocodeCacheTTL time.Duration

	// CSV snapshots exported by the modelling pipeline.
	GridPath          string
	MagnitudePath     string
	CountPath         string
	SnapshotTTL       time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	feedTimeout, err := parseDuration("FEED_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	geocoderTimeout, err := parseDuration("GEOCODER_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	geocodeCacheTTL, err := parseDuration("GEOCODE_CACHE_TTL", "1h")
	if err != nil {
		return nil, err
	}
	snapshotTTL, err := parseDuration("SNAPSHOT_TTL", "5m")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	windowDays, err := parsePositiveInt("INGEST_WINDOW_DAYS", 10)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DBHost:     envOrDefault("DB_HOST", "localhost"),
		DBPort:     envOrDefault("DB_PORT", "5432"),
		DBName:     envOrDefault("DB_NAME", "quake_risk"),
		DBUser:     envOrDefault("DB_USER", "postgres"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBSSLMode:  envOrDefault("DB_SSLMODE", "disable"),

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		FeedURL:          envOrDefault("FEED_URL", "https://earthquake.usgs.gov/fdsnws/event/1/query"),
		FeedTimeout:      feedTimeout,
		IngestWindowDays: windowDays,

		GeocoderURL:     envOrDefault("GEOCODER_URL", "https://nominatim.openstreetmap.org/search"),
		GeocoderTimeout: geocoderTimeout,
		GeocodeCacheTTL: geocodeCacheTTL,

		GridPath:      envOrDefault("GRID_CSV", "datos/bounding_boxs.csv"),
		MagnitudePath: envOrDefault("MAGNITUDE_FORECAST_CSV", "datos/predicciones_magnitud.csv"),
		CountPath:     envOrDefault("COUNT_FORECAST_CSV", "datos/predicciones_terremotos.csv"),
		SnapshotTTL:   snapshotTTL,
	}

	if cfg.DBName == "" {
		return nil, errors.New("DB_NAME is required")
	}

	return cfg, nil
}

// DatabaseURL assembles the pgx connection string.
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   c.DBHost + ":" + c.DBPort,
		Path:   "/" + c.DBName,
	}
	if c.DBPassword != "" {
		u.User = url.UserPassword(c.DBUser, c.DBPassword)
	} else {
		u.User = url.User(c.DBUser)
	}
	q := url.Values{"sslmode": {c.DBSSLMode}}
	u.RawQuery = q.Encode()
	return u.String()
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	s := envOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}
