package risk

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/couchcryptid/quake-risk-service/internal/forecast"
	"github.com/couchcryptid/quake-risk-service/internal/grid"
)

// Snapshots serves the CSV-derived grid and forecast tables. Each file is
// reloaded at most once per TTL; the exports change at most daily, so
// concurrent requests share one parse instead of rereading per request.
type Snapshots struct {
	gridPath  string
	magPath   string
	countPath string
	logger    *slog.Logger

	grids  *ttlcache.Cache[string, *grid.Grid]
	tables *ttlcache.Cache[string, *forecast.Table]
}

// NewSnapshots creates a snapshot source over the three export files.
func NewSnapshots(gridPath, magPath, countPath string, ttl time.Duration, logger *slog.Logger) *Snapshots {
	s := &Snapshots{
		gridPath:  gridPath,
		magPath:   magPath,
		countPath: countPath,
		logger:    logger,
		grids: ttlcache.New(
			ttlcache.WithTTL[string, *grid.Grid](ttl),
			ttlcache.WithDisableTouchOnHit[string, *grid.Grid](),
		),
		tables: ttlcache.New(
			ttlcache.WithTTL[string, *forecast.Table](ttl),
			ttlcache.WithDisableTouchOnHit[string, *forecast.Table](),
		),
	}
	go s.grids.Start()
	go s.tables.Start()
	return s
}

// Stop halts the caches' expiration workers.
func (s *Snapshots) Stop() {
	s.grids.Stop()
	s.tables.Stop()
}

// Grid returns the current bounding-box grid.
func (s *Snapshots) Grid() (*grid.Grid, error) {
	if item := s.grids.Get(s.gridPath); item != nil {
		return item.Value(), nil
	}

	f, err := os.Open(s.gridPath)
	if err != nil {
		return nil, fmt.Errorf("open grid snapshot: %w", err)
	}
	defer f.Close()

	g, err := grid.Load(f, s.logger)
	if err != nil {
		return nil, fmt.Errorf("load grid snapshot: %w", err)
	}
	s.grids.Set(s.gridPath, g, ttlcache.DefaultTTL)
	return g, nil
}

// Magnitude returns the current magnitude forecast table.
func (s *Snapshots) Magnitude() (*forecast.Table, error) {
	return s.table(s.magPath)
}

// Count returns the current earthquake-count forecast table.
func (s *Snapshots) Count() (*forecast.Table, error) {
	return s.table(s.countPath)
}

func (s *Snapshots) table(path string) (*forecast.Table, error) {
	if item := s.tables.Get(path); item != nil {
		return item.Value(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open forecast snapshot: %w", err)
	}
	defer f.Close()

	t, err := forecast.Load(f, s.logger)
	if err != nil {
		return nil, fmt.Errorf("load forecast snapshot %s: %w", path, err)
	}
	s.tables.Set(path, t, ttlcache.DefaultTTL)
	return t, nil
}
