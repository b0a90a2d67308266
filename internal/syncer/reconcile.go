// Package syncer contains the reconciliation engine and the sync
// orchestrator that drives it.
package syncer

import (
	"sort"
	"time"

	"github.com/cleanbuz/booking-sync/internal/feed"
	"github.com/cleanbuz/booking-sync/internal/storage"
	"github.com/cleanbuz/booking-sync/internal/storage/models"
)

// ReconcileOptions tunes a reconciliation run.
type ReconcileOptions struct {
	// DropThreshold is the fraction of prior active bookings that may vanish
	// from a parse before the run is flagged as a suspected partial feed.
	// 0.5 means: flag when half or more of the prior active set is absent
	// and absence-cancellations would be applied.
	DropThreshold float64

	// NewID generates IDs for first-sighted bookings. Defaults to
	// storage.GenerateID; tests inject a deterministic generator.
	NewID func() string

	// Now is the last-synced timestamp stamped on observed records.
	// Zero means time.Now().UTC().
	Now time.Time
}

// ReconcileOutcome is the result of diffing one parsed feed against prior
// state: the new canonical booking set, the ordered change list, and counts.
type ReconcileOutcome struct {
	Bookings []models.Booking
	Changes  []models.BookingChange

	Created   int
	Updated   int
	Cancelled int
	Unchanged int

	// SuspectPartialFeed is set when applying the diff would cancel more of
	// the prior set than DropThreshold allows. The orchestrator must treat
	// the run as errored instead of applying it.
	SuspectPartialFeed bool
}

// Reconcile computes the diff between a freshly parsed event set and the
// previously known booking set for one feed.
//
// Feeds are treated as the full current reservation set, not an append-only
// log: a UID that disappears is inferred to be cancelled. A truncated
// response would read as mass cancellation under that inference, so the
// outcome carries SuspectPartialFeed when the parsed count drops too sharply,
// and the orchestrator refuses to apply the diff.
//
// This function performs no I/O. Change events are ordered created, then
// updated, then cancelled, each group sorted by external ID, so runs are
// deterministic.
func Reconcile(f models.Feed, events []feed.ParsedEvent, prior []models.Booking, opts ReconcileOptions) ReconcileOutcome {
	if opts.NewID == nil {
		opts.NewID = storage.GenerateID
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}

	// Deduplicate the parse by UID; first sighting wins.
	current := make(map[string]feed.ParsedEvent, len(events))
	var order []string
	for _, ev := range events {
		if _, seen := current[ev.ExternalID]; seen {
			continue
		}
		current[ev.ExternalID] = ev
		order = append(order, ev.ExternalID)
	}

	priorByUID := make(map[string]models.Booking, len(prior))
	priorActive := 0
	for _, b := range prior {
		priorByUID[b.ExternalID] = b
		if b.Status != models.BookingCancelled {
			priorActive++
		}
	}

	out := ReconcileOutcome{}
	var created, updated, cancelled []models.BookingChange

	for _, uid := range order {
		ev := current[uid]
		old, known := priorByUID[uid]

		if !known {
			b := bookingFromEvent(f, ev, opts.NewID(), opts.Now)
			out.Bookings = append(out.Bookings, b)
			created = append(created, models.BookingChange{Kind: models.ChangeCreated, Booking: b})
			out.Created++
			continue
		}

		next := old
		next.GuestName = ev.GuestName
		next.CheckIn = ev.CheckIn
		next.CheckOut = ev.CheckOut
		next.Status = ev.Status
		next.LowConfidence = ev.LowConfidence
		next.RawBlock = ev.RawBlock
		next.LastSyncedAt = opts.Now
		out.Bookings = append(out.Bookings, next)

		switch {
		case ev.Status == models.BookingCancelled && old.Status != models.BookingCancelled:
			prev := old
			cancelled = append(cancelled, models.BookingChange{Kind: models.ChangeCancelled, Booking: next, Prior: &prev})
			out.Cancelled++
		case bookingDiffers(old, next):
			prev := old
			updated = append(updated, models.BookingChange{Kind: models.ChangeUpdated, Booking: next, Prior: &prev})
			out.Updated++
		default:
			out.Unchanged++
		}
	}

	// UIDs known before but absent from this parse: cancellation-by-absence.
	absenceCancellations := 0
	for _, b := range prior {
		if _, present := current[b.ExternalID]; present {
			continue
		}

		if b.Status == models.BookingCancelled {
			// Already cancelled; carry the record forward untouched.
			out.Bookings = append(out.Bookings, b)
			continue
		}

		next := b
		next.Status = models.BookingCancelled
		out.Bookings = append(out.Bookings, next)
		prev := b
		cancelled = append(cancelled, models.BookingChange{Kind: models.ChangeCancelled, Booking: next, Prior: &prev})
		out.Cancelled++
		absenceCancellations++
	}

	if absenceCancellations > 0 && priorActive > 0 {
		dropped := priorActive - len(current)
		if dropped > 0 && float64(dropped)/float64(priorActive) >= opts.DropThreshold {
			out.SuspectPartialFeed = true
		}
	}

	sortChanges(created)
	sortChanges(updated)
	sortChanges(cancelled)
	out.Changes = append(out.Changes, created...)
	out.Changes = append(out.Changes, updated...)
	out.Changes = append(out.Changes, cancelled...)

	sort.Slice(out.Bookings, func(i, j int) bool {
		return out.Bookings[i].ExternalID < out.Bookings[j].ExternalID
	})

	return out
}

func bookingFromEvent(f models.Feed, ev feed.ParsedEvent, id string, now time.Time) models.Booking {
	return models.Booking{
		ID:            id,
		PropertyID:    f.PropertyID,
		FeedID:        f.ID,
		ExternalID:    ev.ExternalID,
		GuestName:     ev.GuestName,
		CheckIn:       ev.CheckIn,
		CheckOut:      ev.CheckOut,
		Status:        ev.Status,
		LowConfidence: ev.LowConfidence,
		RawBlock:      ev.RawBlock,
		LastSyncedAt:  now,
	}
}

// bookingDiffers compares the fields a later sync may legitimately change.
func bookingDiffers(a, b models.Booking) bool {
	return !a.CheckIn.Equal(b.CheckIn) ||
		!a.CheckOut.Equal(b.CheckOut) ||
		a.GuestName != b.GuestName ||
		a.Status != b.Status ||
		a.LowConfidence != b.LowConfidence
}

func sortChanges(changes []models.BookingChange) {
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Booking.ExternalID < changes[j].Booking.ExternalID
	})
}
