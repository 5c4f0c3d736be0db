package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for the ingestion
// job and the risk resolver.
type Metrics struct {
	// Ingestion metrics.
	EventsFetched  prometheus.Counter
	EventsInserted prometheus.Counter
	EventsSkipped  prometheus.Counter // already present in storage
	EventErrors    prometheus.Counter // per-record storage failures
	FeedErrors     prometheus.Counter
	IngestDuration prometheus.Histogram

	// Risk resolution metrics.
	RiskRequests    *prometheus.CounterVec // labels: outcome={success,no_cluster,user_not_found,address_not_found,error}
	ResolveDuration prometheus.Histogram
	GeocodeCache    *prometheus.CounterVec // labels: result={hit,miss}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.EventsFetched,
		m.EventsInserted,
		m.EventsSkipped,
		m.EventErrors,
		m.FeedErrors,
		m.IngestDuration,
		m.RiskRequests,
		m.ResolveDuration,
		m.GeocodeCache,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		EventsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_risk",
			Name:      "events_fetched_total",
			Help:      "Total earthquake events returned by the feed.",
		}),
		EventsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_risk",
			Name:      "events_inserted_total",
			Help:      "Total earthquake events written to storage.",
		}),
		EventsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_risk",
			Name:      "events_skipped_total",
			Help:      "Total events skipped because their id was already stored.",
		}),
		EventErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_risk",
			Name:      "event_errors_total",
			Help:      "Total per-record storage failures during ingestion.",
		}),
		FeedErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_risk",
			Name:      "feed_errors_total",
			Help:      "Total feed fetch failures.",
		}),
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quake_risk",
			Name:      "ingest_duration_seconds",
			Help:      "Duration of a complete ingestion run.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		RiskRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_risk",
			Name:      "risk_requests_total",
			Help:      "Risk resolution requests by outcome.",
		}, []string{"outcome"}),
		ResolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quake_risk",
			Name:      "resolve_duration_seconds",
			Help:      "End-to-end risk resolution duration.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_risk",
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
	}
}
