package syncer

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleanbuz/booking-sync/internal/feed"
	"github.com/cleanbuz/booking-sync/internal/storage/models"
)

var (
	testNow  = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	testFeed = models.Feed{
		ID:         "feed-1",
		PropertyID: "prop-1",
		Name:       "Beach House Airbnb",
		Platform:   models.PlatformAirbnb,
	}
)

func testOpts() ReconcileOptions {
	seq := 0
	return ReconcileOptions{
		DropThreshold: 0.5,
		NewID: func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		},
		Now: testNow,
	}
}

func event(uid string, checkIn, checkOut string) feed.ParsedEvent {
	return feed.ParsedEvent{
		ExternalID: uid,
		GuestName:  "Guest",
		CheckIn:    mustDate(checkIn),
		CheckOut:   mustDate(checkOut),
		Status:     models.BookingConfirmed,
	}
}

func booking(uid string, checkIn, checkOut string) models.Booking {
	return models.Booking{
		ID:         "existing-" + uid,
		PropertyID: testFeed.PropertyID,
		FeedID:     testFeed.ID,
		ExternalID: uid,
		GuestName:  "Guest",
		CheckIn:    mustDate(checkIn),
		CheckOut:   mustDate(checkOut),
		Status:     models.BookingConfirmed,
	}
}

func mustDate(value string) time.Time {
	t, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func TestReconcile_FirstSync(t *testing.T) {
	events := []feed.ParsedEvent{
		event("b", "2025-07-10", "2025-07-14"),
		event("a", "2025-07-01", "2025-07-05"),
	}

	out := Reconcile(testFeed, events, nil, testOpts())

	assert.Equal(t, 2, out.Created)
	assert.Zero(t, out.Updated)
	assert.Zero(t, out.Cancelled)
	assert.False(t, out.SuspectPartialFeed)

	require.Len(t, out.Changes, 2)
	assert.Equal(t, models.ChangeCreated, out.Changes[0].Kind)
	assert.Equal(t, "a", out.Changes[0].Booking.ExternalID)
	assert.Equal(t, "b", out.Changes[1].Booking.ExternalID)
	assert.Nil(t, out.Changes[0].Prior)

	for _, b := range out.Bookings {
		assert.NotEmpty(t, b.ID)
		assert.Equal(t, testFeed.ID, b.FeedID)
		assert.Equal(t, testFeed.PropertyID, b.PropertyID)
		assert.True(t, b.LastSyncedAt.Equal(testNow))
	}
}

func TestReconcile_SteadyState(t *testing.T) {
	prior := []models.Booking{
		booking("a", "2025-07-01", "2025-07-05"),
		booking("b", "2025-07-10", "2025-07-14"),
	}
	events := []feed.ParsedEvent{
		event("a", "2025-07-01", "2025-07-05"),
		event("b", "2025-07-10", "2025-07-14"),
	}

	out := Reconcile(testFeed, events, prior, testOpts())

	assert.Empty(t, out.Changes)
	assert.Equal(t, 2, out.Unchanged)
	require.Len(t, out.Bookings, 2)
	// Records keep their identity across syncs.
	assert.Equal(t, "existing-a", out.Bookings[0].ID)
	assert.Equal(t, "existing-b", out.Bookings[1].ID)
}

func TestReconcile_MixedChanges(t *testing.T) {
	prior := []models.Booking{
		booking("stays", "2025-07-01", "2025-07-05"),
		booking("moves", "2025-07-10", "2025-07-14"),
		booking("vanishes", "2025-07-20", "2025-07-24"),
	}
	events := []feed.ParsedEvent{
		event("stays", "2025-07-01", "2025-07-05"),
		event("moves", "2025-07-11", "2025-07-15"),
		event("appears", "2025-08-01", "2025-08-04"),
	}

	out := Reconcile(testFeed, events, prior, testOpts())

	assert.Equal(t, 1, out.Created)
	assert.Equal(t, 1, out.Updated)
	assert.Equal(t, 1, out.Cancelled)
	assert.Equal(t, 1, out.Unchanged)
	assert.False(t, out.SuspectPartialFeed)

	require.Len(t, out.Changes, 3)
	assert.Equal(t, models.ChangeCreated, out.Changes[0].Kind)
	assert.Equal(t, "appears", out.Changes[0].Booking.ExternalID)
	assert.Equal(t, models.ChangeUpdated, out.Changes[1].Kind)
	assert.Equal(t, "moves", out.Changes[1].Booking.ExternalID)
	assert.Equal(t, models.ChangeCancelled, out.Changes[2].Kind)
	assert.Equal(t, "vanishes", out.Changes[2].Booking.ExternalID)

	update := out.Changes[1]
	require.NotNil(t, update.Prior)
	assert.True(t, update.Prior.CheckIn.Equal(mustDate("2025-07-10")))
	assert.True(t, update.Booking.CheckIn.Equal(mustDate("2025-07-11")))
	assert.Equal(t, "existing-moves", update.Booking.ID)

	cancel := out.Changes[2]
	assert.Equal(t, models.BookingCancelled, cancel.Booking.Status)
	require.NotNil(t, cancel.Prior)
	assert.Equal(t, models.BookingConfirmed, cancel.Prior.Status)

	// The canonical set still contains every booking ever seen.
	assert.Len(t, out.Bookings, 4)
}

func TestReconcile_ExplicitCancellation(t *testing.T) {
	prior := []models.Booking{booking("a", "2025-07-01", "2025-07-05")}
	ev := event("a", "2025-07-01", "2025-07-05")
	ev.Status = models.BookingCancelled

	out := Reconcile(testFeed, []feed.ParsedEvent{ev}, prior, testOpts())

	assert.Equal(t, 1, out.Cancelled)
	assert.Zero(t, out.Updated)
	require.Len(t, out.Changes, 1)
	assert.Equal(t, models.ChangeCancelled, out.Changes[0].Kind)
	assert.False(t, out.SuspectPartialFeed, "explicit cancellation is not absence")
}

func TestReconcile_AlreadyCancelledStaysSilent(t *testing.T) {
	gone := booking("gone", "2025-07-01", "2025-07-05")
	gone.Status = models.BookingCancelled
	prior := []models.Booking{
		gone,
		booking("active", "2025-07-10", "2025-07-14"),
	}
	events := []feed.ParsedEvent{event("active", "2025-07-10", "2025-07-14")}

	out := Reconcile(testFeed, events, prior, testOpts())

	assert.Empty(t, out.Changes, "a booking cancelled in a prior run must not re-fire")
	assert.Len(t, out.Bookings, 2)
	assert.False(t, out.SuspectPartialFeed)
}

func TestReconcile_SuspectPartialFeed(t *testing.T) {
	prior := []models.Booking{
		booking("a", "2025-07-01", "2025-07-05"),
		booking("b", "2025-07-10", "2025-07-14"),
		booking("c", "2025-07-20", "2025-07-24"),
		booking("d", "2025-08-01", "2025-08-05"),
	}
	// Only one of four survives the parse.
	events := []feed.ParsedEvent{event("a", "2025-07-01", "2025-07-05")}

	out := Reconcile(testFeed, events, prior, testOpts())

	assert.True(t, out.SuspectPartialFeed)
	// The diff is still fully computed for inspection.
	assert.Equal(t, 3, out.Cancelled)
}

func TestReconcile_DropThresholdBoundary(t *testing.T) {
	prior := []models.Booking{
		booking("a", "2025-07-01", "2025-07-05"),
		booking("b", "2025-07-10", "2025-07-14"),
	}
	events := []feed.ParsedEvent{event("a", "2025-07-01", "2025-07-05")}

	// 1 dropped of 2 active is exactly the 0.5 threshold.
	out := Reconcile(testFeed, events, prior, testOpts())
	assert.True(t, out.SuspectPartialFeed)

	// Raising the threshold lets the same drop through.
	opts := testOpts()
	opts.DropThreshold = 0.6
	out = Reconcile(testFeed, events, prior, opts)
	assert.False(t, out.SuspectPartialFeed)
	assert.Equal(t, 1, out.Cancelled)
}

func TestReconcile_EmptyFeedAgainstEmptyPrior(t *testing.T) {
	out := Reconcile(testFeed, nil, nil, testOpts())
	assert.Empty(t, out.Bookings)
	assert.Empty(t, out.Changes)
	assert.False(t, out.SuspectPartialFeed)
}

func TestReconcile_DuplicateUIDFirstSightingWins(t *testing.T) {
	events := []feed.ParsedEvent{
		event("dup", "2025-07-01", "2025-07-05"),
		event("dup", "2025-08-01", "2025-08-05"),
	}

	out := Reconcile(testFeed, events, nil, testOpts())

	require.Len(t, out.Bookings, 1)
	assert.True(t, out.Bookings[0].CheckIn.Equal(mustDate("2025-07-01")))
	assert.Equal(t, 1, out.Created)
}

func TestReconcile_Idempotent(t *testing.T) {
	events := []feed.ParsedEvent{
		event("a", "2025-07-01", "2025-07-05"),
		event("b", "2025-07-10", "2025-07-14"),
	}

	first := Reconcile(testFeed, events, nil, testOpts())
	second := Reconcile(testFeed, events, first.Bookings, testOpts())

	assert.Empty(t, second.Changes, "reapplying the same parse must be a no-op")
	assert.Equal(t, 2, second.Unchanged)
	assert.Equal(t, first.Bookings[0].ID, second.Bookings[0].ID)
}

func TestReconcile_FirstSightedAlreadyCancelled(t *testing.T) {
	ev := event("a", "2025-07-01", "2025-07-05")
	ev.Status = models.BookingCancelled

	out := Reconcile(testFeed, []feed.ParsedEvent{ev}, nil, testOpts())

	require.Len(t, out.Changes, 1)
	assert.Equal(t, models.ChangeCreated, out.Changes[0].Kind)
	assert.Equal(t, models.BookingCancelled, out.Changes[0].Booking.Status)
}

func TestReconcile_LowConfidenceTransition(t *testing.T) {
	prior := []models.Booking{booking("a", "2025-07-01", "2025-07-01")}
	prior[0].LowConfidence = true

	// A later fetch supplies the missing DTEND.
	events := []feed.ParsedEvent{event("a", "2025-07-01", "2025-07-05")}

	out := Reconcile(testFeed, events, prior, testOpts())

	assert.Equal(t, 1, out.Updated)
	require.Len(t, out.Changes, 1)
	assert.False(t, out.Changes[0].Booking.LowConfidence)
}
