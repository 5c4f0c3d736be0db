// Package ingest implements the one-shot batch job that pulls recent
// earthquake events from the feed and upserts them into storage.
package ingest

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quake-risk-service/internal/domain"
	"github.com/couchcryptid/quake-risk-service/internal/observability"
)

// Feed supplies earthquake events for an inclusive date window.
type Feed interface {
	Window(ctx context.Context, start, end time.Time) ([]domain.Earthquake, error)
}

// Store persists earthquake events, ignoring already-stored ids.
type Store interface {
	UpsertIgnore(ctx context.Context, q domain.Earthquake) (bool, error)
}

// Job is the batch ingestion task. It runs once and returns; the hosting
// process is expected to exit afterwards.
type Job struct {
	feed       Feed
	store      Store
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics
	windowDays int
}

// New creates an ingestion job covering [today − windowDays, today].
func New(feed Feed, store Store, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, windowDays int) *Job {
	return &Job{
		feed:       feed,
		store:      store,
		clock:      clock,
		logger:     logger,
		metrics:    metrics,
		windowDays: windowDays,
	}
}

// Run executes one ingestion batch. A feed failure degrades to "zero events
// found" rather than failing the job; per-record storage failures are
// logged and skipped so one bad record never aborts the rest. Upserts run
// concurrently since records are independent by id, and Run waits for all
// of them.
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()
	end := j.clock.Now().UTC()
	from := end.AddDate(0, 0, -j.windowDays)

	j.logger.Info("fetching earthquake events",
		"start", from.Format("2006-01-02"),
		"end", end.Format("2006-01-02"),
	)

	quakes, err := j.feed.Window(ctx, from, end)
	if err != nil {
		j.metrics.FeedErrors.Inc()
		j.logger.Error("feed fetch failed, no events ingested", "error", err)
		return nil
	}

	j.metrics.EventsFetched.Add(float64(len(quakes)))
	if len(quakes) == 0 {
		j.logger.Info("no earthquake events found")
		return nil
	}
	j.logger.Info("processing earthquake events", "count", len(quakes))

	var inserted, skipped, failed atomic.Int64
	var wg sync.WaitGroup
	for _, q := range quakes {
		wg.Add(1)
		go func(q domain.Earthquake) {
			defer wg.Done()

			written, err := j.store.UpsertIgnore(ctx, q)
			if err != nil {
				failed.Add(1)
				j.metrics.EventErrors.Inc()
				j.logger.Warn("storing event failed, skipping", "event_id", q.ID, "error", err)
				return
			}
			if written {
				inserted.Add(1)
				j.metrics.EventsInserted.Inc()
			} else {
				skipped.Add(1)
				j.metrics.EventsSkipped.Inc()
			}
		}(q)
	}
	wg.Wait()

	j.metrics.IngestDuration.Observe(time.Since(start).Seconds())
	j.logger.Info("ingestion complete",
		"fetched", len(quakes),
		"inserted", inserted.Load(),
		"already_stored", skipped.Load(),
		"failed", failed.Load(),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}
