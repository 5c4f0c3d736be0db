// Package risk orchestrates the proximity/risk resolution pipeline: stored
// address, geocoded coordinate, nearby earthquakes, grid containment, and
// forecast lookup.
package risk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quake-risk-service/internal/domain"
	"github.com/couchcryptid/quake-risk-service/internal/observability"
)

// nearbyLimit caps the earthquakes considered per request.
const nearbyLimit = 100

// AddressStore reads a user's stored address.
type AddressStore interface {
	AddressByUserID(ctx context.Context, userID string) (domain.Address, error)
}

// QuakeStore queries stored earthquakes by ascending spherical distance.
type QuakeStore interface {
	Nearest(ctx context.Context, lat, lon float64, limit int) ([]domain.Earthquake, error)
}

// Resolver answers risk requests. Strictly sequential per request; the
// only shared state is the read-only snapshot/geocode caches, so concurrent
// invocations need no coordination.
type Resolver struct {
	users     AddressStore
	geocoder  domain.Geocoder
	quakes    QuakeStore
	snapshots *Snapshots
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewResolver wires the resolution pipeline.
func NewResolver(users AddressStore, geocoder domain.Geocoder, quakes QuakeStore, snapshots *Snapshots, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		users:     users,
		geocoder:  geocoder,
		quakes:    quakes,
		snapshots: snapshots,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// Resolve produces the nearby-earthquake list and, when the user's
// coordinate falls in a clustered grid cell, the forecast estimate for
// that cluster.
func (r *Resolver) Resolve(ctx context.Context, userID string) (domain.RiskAssessment, error) {
	start := time.Now()
	result, err := r.resolve(ctx, userID)
	r.metrics.ResolveDuration.Observe(time.Since(start).Seconds())
	r.metrics.RiskRequests.WithLabelValues(outcome(result, err)).Inc()
	return result, err
}

func (r *Resolver) resolve(ctx context.Context, userID string) (domain.RiskAssessment, error) {
	addr, err := r.users.AddressByUserID(ctx, userID)
	if err != nil {
		return domain.RiskAssessment{}, err
	}

	user, err := r.geocoder.Geocode(ctx, addr)
	if err != nil {
		return domain.RiskAssessment{}, err
	}

	quakes, err := r.quakes.Nearest(ctx, user.Lat, user.Lon, nearbyLimit)
	if err != nil {
		return domain.RiskAssessment{}, fmt.Errorf("nearest earthquakes: %w", err)
	}
	nearby := presentNearby(user, quakes)

	g, err := r.snapshots.Grid()
	if err != nil {
		return domain.RiskAssessment{}, err
	}
	cell, found := g.Locate(user.Lat, user.Lon)
	if !found || cell.ClusterID == nil {
		r.logger.Debug("coordinate matches no clustered cell",
			"user_id", userID, "lat", user.Lat, "lon", user.Lon)
		return domain.RiskAssessment{Nearby: nearby}, nil
	}
	cluster := *cell.ClusterID

	magnitude, count, err := r.estimate(cluster)
	if err != nil {
		return domain.RiskAssessment{}, fmt.Errorf("cluster %d: %w", cluster, err)
	}

	return domain.RiskAssessment{
		Magnitude: magnitude,
		Count:     count,
		Nearby:    nearby,
	}, nil
}

// estimate reads the latest row of both forecast tables for the cluster.
// A magnitude table without a usable row or column is fatal for the
// request; a missing count column degrades to a nil count.
func (r *Resolver) estimate(cluster int) (*float64, *int, error) {
	magTable, err := r.snapshots.Magnitude()
	if err != nil {
		return nil, nil, err
	}
	countTable, err := r.snapshots.Count()
	if err != nil {
		return nil, nil, err
	}

	today := r.clock.Now().UTC()
	magRow, ok := magTable.Latest(today)
	if !ok {
		return nil, nil, fmt.Errorf("magnitude table has no dated rows: %w", domain.ErrPredictionMissing)
	}
	countRow, ok := countTable.Latest(today)
	if !ok {
		return nil, nil, fmt.Errorf("count table has no dated rows: %w", domain.ErrPredictionMissing)
	}

	magValue, ok := magRow.Value(cluster)
	if !ok {
		return nil, nil, domain.ErrPredictionMissing
	}
	magnitude := domain.Round2(magValue)

	var count *int
	if countValue, ok := countRow.Value(cluster); ok {
		n := int(math.Ceil(countValue))
		count = &n
	}

	return &magnitude, count, nil
}

// presentNearby attaches the displayed haversine distance to each record
// and re-sorts by event time descending. The distance ordering from the
// storage query determines which records were selected; presentation is
// most-recent-first, with distance kept per record.
func presentNearby(user domain.Geo, quakes []domain.Earthquake) []domain.NearbyEarthquake {
	nearby := make([]domain.NearbyEarthquake, 0, len(quakes))
	for _, q := range quakes {
		nearby = append(nearby, domain.NearbyEarthquake{
			ID:         q.ID,
			Title:      q.Title,
			Time:       q.Time,
			Magnitude:  q.Magnitude,
			Geo:        q.Geo,
			DistanceKm: domain.Round2(domain.Haversine(user, q.Geo)),
		})
	}
	sort.SliceStable(nearby, func(i, j int) bool {
		return nearby[i].Time.After(nearby[j].Time)
	})
	return nearby
}

func outcome(result domain.RiskAssessment, err error) string {
	switch {
	case err == nil && result.Magnitude == nil:
		return "no_cluster"
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, domain.ErrAddressNotFound):
		return "address_not_found"
	default:
		return "error"
	}
}
