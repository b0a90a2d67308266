package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/cleanbuz/booking-sync/internal/storage/models"
)

// Scheduler manages periodic per-feed sync jobs. It holds no business state
// of its own; each tick just calls into the orchestrator, so sync logic stays
// testable without faking wall-clock scheduling.
type Scheduler struct {
	cron         *cron.Cron
	orchestrator *Orchestrator
	feeds        FeedSource
	logger       *zap.Logger

	jobs   map[string]cron.EntryID
	jobsMu sync.RWMutex

	defaultInterval time.Duration
}

// NewScheduler creates a feed sync scheduler.
func NewScheduler(orchestrator *Orchestrator, feeds FeedSource, logger *zap.Logger, defaultIntervalMin int) *Scheduler {
	if defaultIntervalMin <= 0 {
		defaultIntervalMin = 30
	}

	return &Scheduler{
		cron:            cron.New(),
		orchestrator:    orchestrator,
		feeds:           feeds,
		logger:          logger,
		jobs:            make(map[string]cron.EntryID),
		defaultInterval: time.Duration(defaultIntervalMin) * time.Minute,
	}
}

// Start loads all active feeds, schedules them, and begins ticking. A refresh
// job re-reads the feed list every 5 minutes to pick up added, changed, and
// disabled feeds.
func (s *Scheduler) Start(ctx context.Context) error {
	feeds, err := s.feeds.ListActive(ctx)
	if err != nil {
		return err
	}

	for _, f := range feeds {
		s.ScheduleFeed(f)
	}

	s.cron.AddFunc("@every 5m", func() {
		s.refreshSchedules(context.Background())
	})

	s.cron.Start()
	s.logger.Info("sync scheduler started", zap.Int("feeds", len(feeds)))

	return nil
}

// Stop gracefully shuts down the scheduler, waiting for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("sync scheduler stopped")
}

// ScheduleFeed adds or replaces a feed's sync schedule.
func (s *Scheduler) ScheduleFeed(f models.Feed) {
	if !f.Active || f.Deleted {
		s.UnscheduleFeed(f.ID)
		return
	}

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	if existingID, exists := s.jobs[f.ID]; exists {
		s.cron.Remove(existingID)
		delete(s.jobs, f.ID)
	}

	interval := time.Duration(f.SyncIntervalMin) * time.Minute
	if interval < time.Minute {
		interval = s.defaultInterval
	}

	feedID := f.ID
	entryID, err := s.cron.AddFunc("@every "+interval.String(), func() {
		s.runFeed(feedID)
	})
	if err != nil {
		s.logger.Error("failed to schedule feed", zap.String("feed_id", f.ID), zap.Error(err))
		return
	}

	s.jobs[f.ID] = entryID
	s.logger.Info("feed scheduled",
		zap.String("feed_id", f.ID),
		zap.String("name", f.Name),
		zap.Duration("interval", interval),
	)
}

// UnscheduleFeed removes a feed from the sync schedule.
func (s *Scheduler) UnscheduleFeed(feedID string) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	if entryID, exists := s.jobs[feedID]; exists {
		s.cron.Remove(entryID)
		delete(s.jobs, feedID)
		s.logger.Info("feed unscheduled", zap.String("feed_id", feedID))
	}
}

// TriggerSync runs an immediate out-of-schedule sync for a feed.
func (s *Scheduler) TriggerSync(feedID string) {
	go s.runFeed(feedID)
}

func (s *Scheduler) runFeed(feedID string) {
	if _, err := s.orchestrator.SyncFeedByID(context.Background(), feedID); err != nil {
		s.logger.Error("scheduled sync failed", zap.String("feed_id", feedID), zap.Error(err))
	}
}

// refreshSchedules reconciles the cron entries against the current feed set.
func (s *Scheduler) refreshSchedules(ctx context.Context) {
	feeds, err := s.feeds.ListActive(ctx)
	if err != nil {
		s.logger.Error("failed to refresh feed schedules", zap.Error(err))
		return
	}

	currentIDs := make(map[string]bool, len(feeds))
	for _, f := range feeds {
		currentIDs[f.ID] = true
		s.ScheduleFeed(f)
	}

	s.jobsMu.Lock()
	for feedID, entryID := range s.jobs {
		if !currentIDs[feedID] {
			s.cron.Remove(entryID)
			delete(s.jobs, feedID)
			s.logger.Info("removed schedule for inactive feed", zap.String("feed_id", feedID))
		}
	}
	s.jobsMu.Unlock()
}

// NextRun returns the next scheduled run time for a feed, if scheduled.
func (s *Scheduler) NextRun(feedID string) *time.Time {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	if entryID, exists := s.jobs[feedID]; exists {
		entry := s.cron.Entry(entryID)
		if !entry.Next.IsZero() {
			return &entry.Next
		}
	}
	return nil
}
