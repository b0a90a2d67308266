package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cleanbuz/booking-sync/internal/feed"
	"github.com/cleanbuz/booking-sync/internal/storage/models"
)

// Run states for a single feed's sync, in stage order.
const (
	StatePending     = "pending"
	StateFetching    = "fetching"
	StateParsing     = "parsing"
	StateReconciling = "reconciling"
	StatePersisting  = "persisting"
	StateCompleted   = "completed"
	StateErrored     = "errored"
)

// Error reasons recorded on errored runs.
const (
	ReasonFetch          = "fetch_failed"
	ReasonParse          = "parse_failed"
	ReasonPersist        = "persist_failed"
	ReasonPartialFeed    = "suspected_partial_feed"
	ReasonAlreadySyncing = "sync_in_flight"
)

// ErrSuspectedPartialFeed marks a run whose parse shrank so sharply that
// applying absence-cancellations would amount to mass cancellation. The run
// is retried on the next scheduled pass.
var ErrSuspectedPartialFeed = errors.New("suspected partial feed: refusing to apply cancellations by absence")

// ErrSyncInFlight is returned when a run for the same feed is already active.
var ErrSyncInFlight = errors.New("sync already in flight for feed")

// FeedSource supplies feed records and receives sync bookkeeping. Implemented
// by storage.FeedRepository.
type FeedSource interface {
	ListActive(ctx context.Context) ([]models.Feed, error)
	GetByID(ctx context.Context, id string) (*models.Feed, error)
	UpdateSyncStatus(ctx context.Context, id string, status string, syncError *string) error
	RecordSyncOutcome(ctx context.Context, id string, success bool, created, updated int) error
}

// BookingStore reads prior booking state and persists the reconciled set.
// Implemented by storage.BookingRepository.
type BookingStore interface {
	ListByFeed(ctx context.Context, feedID string) ([]models.Booking, error)
	UpsertSet(ctx context.Context, feedID string, bookings []models.Booking) error
}

// Fetcher retrieves raw feed text. Implemented by feed.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Publisher receives the change events of a completed run.
type Publisher interface {
	Publish(f models.Feed, result models.SyncResult, changes []models.BookingChange)
}

// Options configures orchestrator behavior.
type Options struct {
	MaxConcurrent   int
	FetchRetries    int
	RetryBackoff    time.Duration
	DropThreshold   float64
	DefaultTimezone string
}

// Orchestrator drives the full sync pipeline for feeds: fetch, parse,
// reconcile, persist, publish. Each feed's run is isolated; one bad feed
// never aborts a pass.
type Orchestrator struct {
	feeds     FeedSource
	bookings  BookingStore
	fetcher   Fetcher
	publisher Publisher
	logger    *zap.Logger
	opts      Options

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewOrchestrator creates a sync orchestrator.
func NewOrchestrator(feeds FeedSource, bookings BookingStore, fetcher Fetcher, publisher Publisher, logger *zap.Logger, opts Options) *Orchestrator {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	return &Orchestrator{
		feeds:     feeds,
		bookings:  bookings,
		fetcher:   fetcher,
		publisher: publisher,
		logger:    logger,
		opts:      opts,
		inFlight:  make(map[string]bool),
	}
}

// RunAll processes every active feed with bounded concurrency and returns a
// result per feed. Feed failures are captured in their results, never
// propagated as a pass failure.
func (o *Orchestrator) RunAll(ctx context.Context) ([]models.SyncResult, error) {
	feeds, err := o.feeds.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active feeds: %w", err)
	}

	results := make([]models.SyncResult, len(feeds))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.MaxConcurrent)

	for i, f := range feeds {
		i, f := i, f
		g.Go(func() error {
			results[i] = o.syncFeed(ctx, f)
			return nil
		})
	}

	// Workers never return errors; Wait only surfaces context cancellation.
	_ = g.Wait()

	completed, errored := 0, 0
	for _, r := range results {
		if r.State == StateCompleted {
			completed++
		} else {
			errored++
		}
	}
	o.logger.Info("sync pass finished",
		zap.Int("feeds", len(feeds)),
		zap.Int("completed", completed),
		zap.Int("errored", errored),
	)

	return results, nil
}

// SyncFeedByID runs a single feed's sync, typically from a manual trigger.
func (o *Orchestrator) SyncFeedByID(ctx context.Context, feedID string) (*models.SyncResult, error) {
	f, err := o.feeds.GetByID(ctx, feedID)
	if err != nil {
		return nil, fmt.Errorf("getting feed: %w", err)
	}
	if f == nil {
		return nil, fmt.Errorf("feed not found: %s", feedID)
	}

	result := o.syncFeed(ctx, *f)
	return &result, nil
}

// syncFeed runs the per-feed state machine:
// pending -> fetching -> parsing -> reconciling -> persisting -> completed,
// with errored reachable from fetching, parsing, and persisting.
func (o *Orchestrator) syncFeed(ctx context.Context, f models.Feed) models.SyncResult {
	start := time.Now()
	result := models.SyncResult{
		FeedID:   f.ID,
		FeedName: f.Name,
		State:    StatePending,
		SyncedAt: start.UTC(),
	}
	log := o.logger.With(zap.String("feed_id", f.ID), zap.String("property_id", f.PropertyID))

	if !o.acquire(f.ID) {
		result.State = StateErrored
		result.ErrorReason = ReasonAlreadySyncing
		result.Error = ErrSyncInFlight
		result.Duration = time.Since(start)
		return result
	}
	defer o.release(f.ID)

	if err := o.feeds.UpdateSyncStatus(ctx, f.ID, models.SyncStatusSyncing, nil); err != nil {
		log.Warn("failed to mark feed syncing", zap.Error(err))
	}

	// Fetching. Transient failures (network, timeout, 5xx) are retried with
	// exponential backoff inside this run; 4xx is permanent until the feed
	// is reconfigured.
	result.State = StateFetching
	raw, err := o.fetchWithRetry(ctx, log, f.URL)
	if err != nil {
		return o.fail(ctx, log, f, &result, start, ReasonFetch, err)
	}

	// Parsing. Hard format errors are not retried; malformed content will
	// not fix itself within a run.
	result.State = StateParsing
	tz := f.Timezone
	if tz == "" {
		tz = o.opts.DefaultTimezone
	}
	parsed, err := feed.NewParser(f.Platform, tz).Parse(raw)
	if err != nil {
		return o.fail(ctx, log, f, &result, start, ReasonParse, err)
	}
	result.EventsFound = len(parsed.Events)
	result.EventsSkipped = parsed.Skipped

	// Reconciling. Pure computation; an error here would be a programming
	// defect, which is why this stage has no errored transition of its own.
	result.State = StateReconciling
	prior, err := o.bookings.ListByFeed(ctx, f.ID)
	if err != nil {
		return o.fail(ctx, log, f, &result, start, ReasonPersist, fmt.Errorf("loading prior bookings: %w", err))
	}
	outcome := Reconcile(f, parsed.Events, prior, ReconcileOptions{
		DropThreshold: o.opts.DropThreshold,
		Now:           start.UTC(),
	})

	if outcome.SuspectPartialFeed {
		log.Warn("suspected partial feed, withholding cancellations",
			zap.Int("parsed_events", result.EventsFound),
			zap.Int("prior_bookings", len(prior)),
		)
		return o.fail(ctx, log, f, &result, start, ReasonPartialFeed, ErrSuspectedPartialFeed)
	}

	result.Created = outcome.Created
	result.Updated = outcome.Updated
	result.Cancelled = outcome.Cancelled
	result.Unchanged = outcome.Unchanged

	// Persisting. Change events are withheld until the write lands so
	// consumers never observe changes the store does not hold.
	result.State = StatePersisting
	if err := o.bookings.UpsertSet(ctx, f.ID, outcome.Bookings); err != nil {
		return o.fail(ctx, log, f, &result, start, ReasonPersist, err)
	}

	result.State = StateCompleted
	result.Duration = time.Since(start)

	if err := o.feeds.UpdateSyncStatus(ctx, f.ID, models.SyncStatusSuccess, nil); err != nil {
		log.Warn("failed to update sync status", zap.Error(err))
	}
	if err := o.feeds.RecordSyncOutcome(ctx, f.ID, true, result.Created, result.Updated); err != nil {
		log.Warn("failed to record sync outcome", zap.Error(err))
	}

	// Change-free runs are published too; consumers surface sync completion
	// even when nothing moved.
	if o.publisher != nil {
		o.publisher.Publish(f, result, outcome.Changes)
	}

	log.Info("feed sync completed",
		zap.Int("events", result.EventsFound),
		zap.Int("skipped", result.EventsSkipped),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("cancelled", result.Cancelled),
		zap.Int("unchanged", result.Unchanged),
		zap.Duration("duration", result.Duration),
	)

	return result
}

func (o *Orchestrator) fail(ctx context.Context, log *zap.Logger, f models.Feed, result *models.SyncResult, start time.Time, reason string, err error) models.SyncResult {
	result.State = StateErrored
	result.ErrorReason = reason
	result.Error = err
	result.Duration = time.Since(start)

	msg := err.Error()
	if uerr := o.feeds.UpdateSyncStatus(ctx, result.FeedID, models.SyncStatusError, &msg); uerr != nil {
		log.Warn("failed to update sync status", zap.Error(uerr))
	}
	if uerr := o.feeds.RecordSyncOutcome(ctx, result.FeedID, false, 0, 0); uerr != nil {
		log.Warn("failed to record sync outcome", zap.Error(uerr))
	}

	// Errored runs carry no change events, but consumers still get the
	// result so failures are visible downstream.
	if o.publisher != nil {
		o.publisher.Publish(f, *result, nil)
	}

	log.Error("feed sync failed", zap.String("reason", reason), zap.Error(err))
	return *result
}

func (o *Orchestrator) fetchWithRetry(ctx context.Context, log *zap.Logger, url string) (string, error) {
	backoff := o.opts.RetryBackoff

	for attempt := 0; ; attempt++ {
		raw, err := o.fetcher.Fetch(ctx, url)
		if err == nil {
			return raw, nil
		}

		var fe *feed.FetchError
		if !errors.As(err, &fe) || !fe.Retryable() || attempt >= o.opts.FetchRetries {
			return "", err
		}

		log.Warn("transient fetch failure, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// acquire takes the per-feed in-flight guard. Two concurrent runs for one
// feed would race on the same prior-state read and emit conflicting events.
func (o *Orchestrator) acquire(feedID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight[feedID] {
		return false
	}
	o.inFlight[feedID] = true
	return true
}

func (o *Orchestrator) release(feedID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, feedID)
}
