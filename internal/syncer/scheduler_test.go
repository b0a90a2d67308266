package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cleanbuz/booking-sync/internal/storage/models"
)

func newTestScheduler(feeds *fakeFeedSource) *Scheduler {
	o := NewOrchestrator(feeds, newFakeBookingStore(), nil, nil, zap.NewNop(), Options{})
	return NewScheduler(o, feeds, zap.NewNop(), 30)
}

func TestScheduler_ScheduleAndUnschedule(t *testing.T) {
	s := newTestScheduler(&fakeFeedSource{})
	s.cron.Start()
	defer s.Stop()

	f := models.Feed{ID: "feed-1", Name: "Test", Active: true, SyncIntervalMin: 30}
	s.ScheduleFeed(f)

	next := s.NextRun("feed-1")
	require.NotNil(t, next)
	assert.True(t, next.After(time.Now()))

	s.UnscheduleFeed("feed-1")
	assert.Nil(t, s.NextRun("feed-1"))
}

func TestScheduler_RescheduleReplacesEntry(t *testing.T) {
	s := newTestScheduler(&fakeFeedSource{})
	s.cron.Start()
	defer s.Stop()

	f := models.Feed{ID: "feed-1", Name: "Test", Active: true, SyncIntervalMin: 60}
	s.ScheduleFeed(f)

	f.SyncIntervalMin = 10
	s.ScheduleFeed(f)

	next := s.NextRun("feed-1")
	require.NotNil(t, next)
	assert.True(t, next.Before(time.Now().Add(11*time.Minute)))
	assert.Len(t, s.jobs, 1)
}

func TestScheduler_InactiveFeedIsUnscheduled(t *testing.T) {
	s := newTestScheduler(&fakeFeedSource{})
	s.cron.Start()
	defer s.Stop()

	f := models.Feed{ID: "feed-1", Name: "Test", Active: true, SyncIntervalMin: 30}
	s.ScheduleFeed(f)
	require.NotNil(t, s.NextRun("feed-1"))

	f.Active = false
	s.ScheduleFeed(f)
	assert.Nil(t, s.NextRun("feed-1"))
}

func TestScheduler_ShortIntervalFallsBackToDefault(t *testing.T) {
	s := newTestScheduler(&fakeFeedSource{})
	s.cron.Start()
	defer s.Stop()

	f := models.Feed{ID: "feed-1", Name: "Test", Active: true, SyncIntervalMin: 0}
	s.ScheduleFeed(f)

	next := s.NextRun("feed-1")
	require.NotNil(t, next)
	// Default interval is 30 minutes, so the next run is well past a minute out.
	assert.True(t, next.After(time.Now().Add(20*time.Minute)))
}

func TestScheduler_StartSchedulesActiveFeeds(t *testing.T) {
	feeds := &fakeFeedSource{feeds: []models.Feed{
		{ID: "feed-1", Name: "A", Active: true, SyncIntervalMin: 30},
		{ID: "feed-2", Name: "B", Active: true, SyncIntervalMin: 60},
	}}
	s := newTestScheduler(feeds)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.NotNil(t, s.NextRun("feed-1"))
	assert.NotNil(t, s.NextRun("feed-2"))
}
