//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/couchcryptid/quake-risk-service/internal/adapter/postgres"
	"github.com/couchcryptid/quake-risk-service/internal/domain"
)

func startStore(t *testing.T) *postgres.Store {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgis/postgis:16-3.4",
		tcpostgres.WithDatabase("quake_risk_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2*time.Minute),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := postgres.Connect(ctx, dsn, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(store.Close)

	return store
}

func testQuake(id string, lat, lon float64, at time.Time) domain.Earthquake {
	return domain.Earthquake{
		ID:           id,
		Title:        "M 4.0 - " + id,
		Time:         at,
		Magnitude:    4.0,
		MagType:      "mb",
		Tsunami:      false,
		MinDistance:  0.5,
		AzimuthalGap: 90,
		Significance: 240,
		Geo:          domain.Geo{Lat: lat, Lon: lon},
		Depth:        10,
	}
}

func TestStore_UpsertIgnoreIsIdempotent(t *testing.T) {
	store := startStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	written, err := store.UpsertIgnore(ctx, testQuake("ev1", 40.0, -3.7, now))
	require.NoError(t, err)
	assert.True(t, written)

	written, err = store.UpsertIgnore(ctx, testQuake("ev1", 40.0, -3.7, now))
	require.NoError(t, err)
	assert.False(t, written)

	quakes, err := store.Nearest(ctx, 40.0, -3.7, 10)
	require.NoError(t, err)
	assert.Len(t, quakes, 1)
}

func TestStore_NearestOrdersBySphericalDistance(t *testing.T) {
	store := startStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	// Distances from Madrid (40.4, -3.7), increasing.
	require.NoError(t, upsert(t, store, testQuake("madrid", 40.4, -3.7, now)))
	require.NoError(t, upsert(t, store, testQuake("seville", 37.39, -5.98, now)))
	require.NoError(t, upsert(t, store, testQuake("tokyo", 35.68, 139.65, now)))

	quakes, err := store.Nearest(ctx, 40.4, -3.7, 10)
	require.NoError(t, err)
	require.Len(t, quakes, 3)
	assert.Equal(t, "madrid", quakes[0].ID)
	assert.Equal(t, "seville", quakes[1].ID)
	assert.Equal(t, "tokyo", quakes[2].ID)
}

func TestStore_NearestRespectsLimit(t *testing.T) {
	store := startStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		require.NoError(t, upsert(t, store, testQuake(
			time.Duration(i).String(), 40.0+float64(i), -3.7, now)))
	}

	quakes, err := store.Nearest(ctx, 40.0, -3.7, 3)
	require.NoError(t, err)
	assert.Len(t, quakes, 3)
}

func TestStore_AddressByUserID_NotFound(t *testing.T) {
	store := startStore(t)

	_, err := store.AddressByUserID(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestStore_CheckReadiness(t *testing.T) {
	store := startStore(t)
	assert.NoError(t, store.CheckReadiness(context.Background()))
}

func upsert(t *testing.T, store *postgres.Store, q domain.Earthquake) error {
	t.Helper()
	_, err := store.UpsertIgnore(context.Background(), q)
	return err
}
