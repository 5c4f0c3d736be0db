// Package postgres implements earthquake and user-address storage on a
// PostGIS-enabled Postgres database.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/quake-risk-service/internal/domain"
)

// Store wraps a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Connect builds the connection pool, verifies connectivity, and runs the
// schema bootstrap.
func Connect(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{pool: pool, logger: logger}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("connected to postgres")
	return s, nil
}

// migrate bootstraps the schema. The users table is owned by the profile
// subsystem; it is created here only so local and test databases work
// standalone, and is never written by this service.
func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS postgis`,
		`CREATE TABLE IF NOT EXISTS earthquakes (
			id             TEXT PRIMARY KEY,
			title          TEXT NOT NULL,
			event_time     TIMESTAMPTZ NOT NULL,
			magnitude      DOUBLE PRECISION NOT NULL,
			mag_type       TEXT,
			alert          TEXT,
			tsunami        BOOLEAN NOT NULL DEFAULT FALSE,
			min_distance   DOUBLE PRECISION NOT NULL DEFAULT 0,
			azimuthal_gap  DOUBLE PRECISION NOT NULL DEFAULT 0,
			significance   INTEGER NOT NULL DEFAULT 0,
			coordinates    geometry(PointZ, 4326) NOT NULL,
			coordinates_2d geometry(Point, 4326) NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS earthquakes_coordinates_2d_idx
			ON earthquakes USING GIST (coordinates_2d)`,
		`CREATE TABLE IF NOT EXISTS users (
			id          TEXT PRIMARY KEY,
			street      TEXT,
			number      TEXT,
			postal_code TEXT,
			city        TEXT,
			province    TEXT,
			country     TEXT
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

const upsertSQL = `
INSERT INTO earthquakes (
	id, title, event_time, magnitude, mag_type, alert, tsunami,
	min_distance, azimuthal_gap, significance, coordinates, coordinates_2d
) VALUES (
	$1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9, $10,
	ST_SetSRID(ST_MakePoint($11, $12, $13), 4326),
	ST_SetSRID(ST_MakePoint($11, $12), 4326)
)
ON CONFLICT (id) DO NOTHING`

// UpsertIgnore inserts the earthquake if its id is not already present.
// The primary-key constraint is the authoritative dedup guard; the insert
// is a single atomic statement, safe under concurrent ingestion. Returns
// true when a row was written.
func (s *Store) UpsertIgnore(ctx context.Context, q domain.Earthquake) (bool, error) {
	tag, err := s.pool.Exec(ctx, upsertSQL,
		q.ID, q.Title, q.Time, q.Magnitude, q.MagType, q.Alert, q.Tsunami,
		q.MinDistance, q.AzimuthalGap, q.Significance,
		q.Geo.Lon, q.Geo.Lat, q.Depth,
	)
	if err != nil {
		return false, fmt.Errorf("insert earthquake %s: %w", q.ID, err)
	}
	return tag.RowsAffected() > 0, nil
}

const nearestSQL = `
SELECT id, title, event_time, magnitude,
	ST_Y(coordinates_2d) AS lat, ST_X(coordinates_2d) AS lon
FROM earthquakes
ORDER BY ST_DistanceSphere(coordinates_2d, ST_SetSRID(ST_MakePoint($1, $2), 4326))
LIMIT $3`

// Nearest returns up to limit earthquakes ordered by ascending spherical
// distance from the coordinate, computed database-side over the 2D point.
func (s *Store) Nearest(ctx context.Context, lat, lon float64, limit int) ([]domain.Earthquake, error) {
	rows, err := s.pool.Query(ctx, nearestSQL, lon, lat, limit)
	if err != nil {
		return nil, fmt.Errorf("query nearest earthquakes: %w", err)
	}
	defer rows.Close()

	var quakes []domain.Earthquake
	for rows.Next() {
		var q domain.Earthquake
		if err := rows.Scan(&q.ID, &q.Title, &q.Time, &q.Magnitude, &q.Geo.Lat, &q.Geo.Lon); err != nil {
			return nil, fmt.Errorf("scan earthquake row: %w", err)
		}
		quakes = append(quakes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read nearest earthquakes: %w", err)
	}
	return quakes, nil
}

const addressSQL = `
SELECT COALESCE(street, ''), COALESCE(number, ''), COALESCE(postal_code, ''),
	COALESCE(city, ''), COALESCE(province, ''), COALESCE(country, '')
FROM users WHERE id = $1`

// AddressByUserID reads a user's stored address. Returns
// domain.ErrUserNotFound when the id does not exist.
func (s *Store) AddressByUserID(ctx context.Context, userID string) (domain.Address, error) {
	var a domain.Address
	err := s.pool.QueryRow(ctx, addressSQL, userID).Scan(
		&a.Street, &a.Number, &a.PostalCode, &a.City, &a.Province, &a.Country,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Address{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.Address{}, fmt.Errorf("query user address: %w", err)
	}
	return a, nil
}

// CheckReadiness reports whether the database is reachable.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
