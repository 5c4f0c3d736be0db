// Package nominatim implements domain.Geocoder against a Nominatim-style
// free-text geocoding service.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/quake-risk-service/internal/domain"
)

const userAgent = "quake-risk-service/1.0"

// Client resolves addresses through the Nominatim search endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a geocoding client. baseURL is the search endpoint.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		logger:     logger,
	}
}

// Geocode resolves the address with a single structured query over postal
// code, city, province, and country. The first candidate wins; an empty
// candidate list is domain.ErrAddressNotFound and is not retried.
func (c *Client) Geocode(ctx context.Context, addr domain.Address) (domain.Geo, error) {
	params := url.Values{
		"format":     {"json"},
		"postalcode": {addr.PostalCode},
		"city":       {addr.City},
		"state":      {addr.Province},
		"country":    {addr.Country},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.Geo{}, fmt.Errorf("create request: %w", err)
	}
	// Nominatim's usage policy requires an identifying User-Agent.
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Geo{}, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.Geo{}, fmt.Errorf("geocoder error: status %d: %s", resp.StatusCode, body)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return domain.Geo{}, fmt.Errorf("decode geocoder response: %w", err)
	}

	if len(places) == 0 {
		return domain.Geo{}, domain.ErrAddressNotFound
	}

	first := places[0]
	lat, err := strconv.ParseFloat(first.Lat, 64)
	if err != nil {
		return domain.Geo{}, fmt.Errorf("parse candidate latitude %q: %w", first.Lat, err)
	}
	lon, err := strconv.ParseFloat(first.Lon, 64)
	if err != nil {
		return domain.Geo{}, fmt.Errorf("parse candidate longitude %q: %w", first.Lon, err)
	}

	return domain.Geo{Lat: lat, Lon: lon}, nil
}

// place is one candidate match; coordinates arrive as decimal strings.
type place struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}
