package risk

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/quake-risk-service/internal/domain"
	"github.com/couchcryptid/quake-risk-service/internal/observability"
)

// The test grid holds one clustered cell over [-10..0]x[35..40] (cluster 3)
// and one unclustered cell over [0..10]x[35..40].
const testGridCSV = `new_cluster_id,coordinates
3,"[[[-10,35],[0,35],[0,40],[-10,40],[-10,35]]]"
,"[[[0,35],[10,35],[10,40],[0,40],[0,35]]]"
`

const testMagCSV = `fecha,bbox3,bbox7
2024-03-14,4.118,5.0
2024-03-15,4.236,5.1
`

const testCountCSV = `fecha,bbox3,bbox7
2024-03-14,2.2,9.0
2024-03-15,3.4,9.9
`

type fakeUsers struct {
	addresses map[string]domain.Address
	calls     int
}

func (f *fakeUsers) AddressByUserID(_ context.Context, userID string) (domain.Address, error) {
	f.calls++
	addr, ok := f.addresses[userID]
	if !ok {
		return domain.Address{}, domain.ErrUserNotFound
	}
	return addr, nil
}

type fakeGeocoder struct {
	geo   domain.Geo
	err   error
	calls int
}

func (f *fakeGeocoder) Geocode(_ context.Context, _ domain.Address) (domain.Geo, error) {
	f.calls++
	return f.geo, f.err
}

type fakeQuakes struct {
	quakes []domain.Earthquake
	err    error
	calls  int
}

func (f *fakeQuakes) Nearest(_ context.Context, _, _ float64, limit int) ([]domain.Earthquake, error) {
	f.calls++
	if len(f.quakes) > limit {
		return f.quakes[:limit], f.err
	}
	return f.quakes, f.err
}

type fixture struct {
	users    *fakeUsers
	geocoder *fakeGeocoder
	quakes   *fakeQuakes
	resolver *Resolver
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newFixture(t *testing.T, gridCSV, magCSV, countCSV string) *fixture {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	snapshots := NewSnapshots(
		writeFile(t, dir, "grid.csv", gridCSV),
		writeFile(t, dir, "mag.csv", magCSV),
		writeFile(t, dir, "count.csv", countCSV),
		time.Minute, logger,
	)
	t.Cleanup(snapshots.Stop)

	users := &fakeUsers{addresses: map[string]domain.Address{
		"u1": {PostalCode: "28013", City: "Madrid", Province: "Madrid", Country: "Spain"},
	}}
	geocoder := &fakeGeocoder{geo: domain.Geo{Lat: 37.5, Lon: -5.0}}
	quakes := &fakeQuakes{quakes: []domain.Earthquake{
		{ID: "near-old", Title: "M 3.0", Time: day("2024-03-01"), Magnitude: 3.0, Geo: domain.Geo{Lat: 37.5, Lon: -4.0}},
		{ID: "far-new", Title: "M 4.2", Time: day("2024-03-10"), Magnitude: 4.2, Geo: domain.Geo{Lat: 38.5, Lon: -2.0}},
	}}

	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC))
	resolver := NewResolver(users, geocoder, quakes, snapshots, clock, logger,
		observability.NewMetricsForTesting())

	return &fixture{users: users, geocoder: geocoder, quakes: quakes, resolver: resolver}
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestResolve_FullEstimate(t *testing.T) {
	f := newFixture(t, testGridCSV, testMagCSV, testCountCSV)

	result, err := f.resolver.Resolve(context.Background(), "u1")
	require.NoError(t, err)

	require.NotNil(t, result.Magnitude)
	assert.Equal(t, 4.24, *result.Magnitude) // 2024-03-15 row, rounded

	require.NotNil(t, result.Count)
	assert.Equal(t, 4, *result.Count) // ceil(3.4)

	require.Len(t, result.Nearby, 2)
}

func TestResolve_NearbySortedByDateDescending(t *testing.T) {
	f := newFixture(t, testGridCSV, testMagCSV, testCountCSV)

	result, err := f.resolver.Resolve(context.Background(), "u1")
	require.NoError(t, err)

	// Presentation order is most recent first, not nearest first.
	require.Len(t, result.Nearby, 2)
	assert.Equal(t, "far-new", result.Nearby[0].ID)
	assert.Equal(t, "near-old", result.Nearby[1].ID)
}

func TestResolve_AttachesHaversineDistance(t *testing.T) {
	f := newFixture(t, testGridCSV, testMagCSV, testCountCSV)

	result, err := f.resolver.Resolve(context.Background(), "u1")
	require.NoError(t, err)

	user := f.geocoder.geo
	for _, n := range result.Nearby {
		assert.Equal(t, domain.Round2(domain.Haversine(user, n.Geo)), n.DistanceKm)
		assert.Greater(t, n.DistanceKm, 0.0)
	}
}

func TestResolve_UnknownUser(t *testing.T) {
	f := newFixture(t, testGridCSV, testMagCSV, testCountCSV)

	_, err := f.resolver.Resolve(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	// Failing the address lookup short-circuits everything downstream.
	assert.Equal(t, 0, f.geocoder.calls)
	assert.Equal(t, 0, f.quakes.calls)
}

func TestResolve_AddressNotFound(t *testing.T) {
	f := newFixture(t, testGridCSV, testMagCSV, testCountCSV)
	f.geocoder.err = domain.ErrAddressNotFound

	_, err := f.resolver.Resolve(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrAddressNotFound)
	assert.Equal(t, 0, f.quakes.calls)
}

func TestResolve_OutsideGridIsValidNullEstimate(t *testing.T) {
	f := newFixture(t, testGridCSV, testMagCSV, testCountCSV)
	f.geocoder.geo = domain.Geo{Lat: 55.0, Lon: 20.0}

	result, err := f.resolver.Resolve(context.Background(), "u1")
	require.NoError(t, err)

	assert.Nil(t, result.Magnitude)
	assert.Nil(t, result.Count)
	assert.NotEmpty(t, result.Nearby)
}

func TestResolve_NullClusterIsValidNullEstimate(t *testing.T) {
	f := newFixture(t, testGridCSV, testMagCSV, testCountCSV)
	f.geocoder.geo = domain.Geo{Lat: 37.5, Lon: 5.0} // unclustered cell

	result, err := f.resolver.Resolve(context.Background(), "u1")
	require.NoError(t, err)

	assert.Nil(t, result.Magnitude)
	assert.NotEmpty(t, result.Nearby)
}

func TestResolve_MissingMagnitudeColumnIsFatal(t *testing.T) {
	// Cluster 3 is matched by the grid but absent from the magnitude table.
	magCSV := "fecha,bbox7\n2024-03-15,5.1\n"
	f := newFixture(t, testGridCSV, magCSV, testCountCSV)

	_, err := f.resolver.Resolve(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrPredictionMissing)
}

func TestResolve_MissingCountColumnDegradesToNil(t *testing.T) {
	countCSV := "fecha,bbox7\n2024-03-15,9.9\n"
	f := newFixture(t, testGridCSV, testMagCSV, countCSV)

	result, err := f.resolver.Resolve(context.Background(), "u1")
	require.NoError(t, err)

	require.NotNil(t, result.Magnitude)
	assert.Equal(t, 4.24, *result.Magnitude)
	assert.Nil(t, result.Count)
}

func TestResolve_EmptyForecastTableIsFatal(t *testing.T) {
	f := newFixture(t, testGridCSV, "fecha,bbox3\n", testCountCSV)

	_, err := f.resolver.Resolve(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrPredictionMissing)
}

func TestResolve_FallsBackToMostRecentForecastRow(t *testing.T) {
	// No row for "today" (2024-03-15); the 03-14 row applies.
	magCSV := "fecha,bbox3\n2024-03-10,3.9\n2024-03-14,4.118\n"
	countCSV := "fecha,bbox3\n2024-03-14,2.2\n"
	f := newFixture(t, testGridCSV, magCSV, countCSV)

	result, err := f.resolver.Resolve(context.Background(), "u1")
	require.NoError(t, err)

	require.NotNil(t, result.Magnitude)
	assert.Equal(t, 4.12, *result.Magnitude)
	require.NotNil(t, result.Count)
	assert.Equal(t, 3, *result.Count)
}

func TestSnapshots_CachesAcrossRequests(t *testing.T) {
	f := newFixture(t, testGridCSV, testMagCSV, testCountCSV)

	_, err := f.resolver.Resolve(context.Background(), "u1")
	require.NoError(t, err)

	// Remove the files; cached snapshots must keep serving until the TTL.
	require.NoError(t, os.Remove(f.resolver.snapshots.gridPath))
	require.NoError(t, os.Remove(f.resolver.snapshots.magPath))
	require.NoError(t, os.Remove(f.resolver.snapshots.countPath))

	result, err := f.resolver.Resolve(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotNil(t, result.Magnitude)
}
