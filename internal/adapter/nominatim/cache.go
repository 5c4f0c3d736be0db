package nominatim

import (
	"context"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/couchcryptid/quake-risk-service/internal/domain"
	"github.com/couchcryptid/quake-risk-service/internal/observability"
)

// CachedGeocoder wraps a Geocoder with a TTL cache. The underlying address
// data changes at most daily, so a short TTL bounds provider traffic
// without meaningful staleness.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *ttlcache.Cache[string, domain.Geo]
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, ttl time.Duration, metrics *observability.Metrics) *CachedGeocoder {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, domain.Geo](ttl),
		ttlcache.WithDisableTouchOnHit[string, domain.Geo](),
	)
	go cache.Start()

	return &CachedGeocoder{
		inner:   inner,
		cache:   cache,
		metrics: metrics,
	}
}

func (c *CachedGeocoder) Geocode(ctx context.Context, addr domain.Address) (domain.Geo, error) {
	key := cacheKey(addr)
	if item := c.cache.Get(key); item != nil {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return item.Value(), nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	geo, err := c.inner.Geocode(ctx, addr)
	if err != nil {
		// Not-found and transient failures are not cached so they can
		// succeed on a later attempt.
		return domain.Geo{}, err
	}

	c.cache.Set(key, geo, ttlcache.DefaultTTL)
	return geo, nil
}

// Stop halts the cache's expiration worker.
func (c *CachedGeocoder) Stop() {
	c.cache.Stop()
}

func cacheKey(addr domain.Address) string {
	return strings.Join([]string{addr.PostalCode, addr.City, addr.Province, addr.Country}, "|")
}
