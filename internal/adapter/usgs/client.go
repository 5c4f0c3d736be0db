// Package usgs implements the earthquake feed client against the USGS FDSN
// event web service.
package usgs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/quake-risk-service/internal/domain"
)

// Client fetches earthquake events from the FDSN event endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a feed client. baseURL is the FDSN query endpoint.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		logger:     logger,
	}
}

// Window fetches all events reported in the inclusive [start, end] date
// range. The feed is queried once, in GeoJSON format, with dates at day
// granularity.
func (c *Client) Window(ctx context.Context, start, end time.Time) ([]domain.Earthquake, error) {
	params := url.Values{
		"format":    {"geojson"},
		"starttime": {start.UTC().Format("2006-01-02")},
		"endtime":   {end.UTC().Format("2006-01-02")},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("feed error: status %d: %s", resp.StatusCode, body)
	}

	var feed response
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode feed response: %w", err)
	}

	quakes := make([]domain.Earthquake, 0, len(feed.Features))
	for _, f := range feed.Features {
		q, err := f.toEarthquake()
		if err != nil {
			c.logger.Warn("skipping malformed feed event", "event_id", f.ID, "error", err)
			continue
		}
		quakes = append(quakes, q)
	}
	return quakes, nil
}

// FDSN GeoJSON response types. Numeric properties are pointers because the
// feed reports null for unmeasured values.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	ID         string     `json:"id"`
	Properties properties `json:"properties"`
	Geometry   geometry   `json:"geometry"`
}

type properties struct {
	Title   string   `json:"title"`
	Time    int64    `json:"time"` // ms since epoch
	Mag     *float64 `json:"mag"`
	MagType string   `json:"magType"`
	Alert   string   `json:"alert"`
	Tsunami int      `json:"tsunami"` // 0 or 1
	Dmin    *float64 `json:"dmin"`
	Gap     *float64 `json:"gap"`
	Sig     *int     `json:"sig"`
}

type geometry struct {
	Coordinates []float64 `json:"coordinates"` // [lon, lat, depth]
}

func (f feature) toEarthquake() (domain.Earthquake, error) {
	if f.ID == "" {
		return domain.Earthquake{}, fmt.Errorf("event has no id")
	}
	if len(f.Geometry.Coordinates) < 3 {
		return domain.Earthquake{}, fmt.Errorf("event has %d coordinates, need 3", len(f.Geometry.Coordinates))
	}

	return domain.Earthquake{
		ID:           f.ID,
		Title:        f.Properties.Title,
		Time:         time.UnixMilli(f.Properties.Time).UTC(),
		Magnitude:    deref(f.Properties.Mag),
		MagType:      f.Properties.MagType,
		Alert:        f.Properties.Alert,
		Tsunami:      f.Properties.Tsunami != 0,
		MinDistance:  deref(f.Properties.Dmin),
		AzimuthalGap: deref(f.Properties.Gap),
		Significance: derefInt(f.Properties.Sig),
		Geo: domain.Geo{
			Lon: f.Geometry.Coordinates[0],
			Lat: f.Geometry.Coordinates[1],
		},
		Depth: f.Geometry.Coordinates[2],
	}, nil
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
