package models

import (
	"time"
)

// BookingStatus is the lifecycle state of a booking record.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingTentative BookingStatus = "tentative"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking is the canonical representation of one reservation. There is at
// most one record per (feed_id, external_id) pair; that pair is the
// idempotency key for upserts across sync passes.
type Booking struct {
	ID            string        `json:"id"`
	PropertyID    string        `json:"property_id"`
	FeedID        string        `json:"feed_id"`
	ExternalID    string        `json:"external_id"`
	GuestName     string        `json:"guest_name"`
	CheckIn       time.Time     `json:"check_in"`
	CheckOut      time.Time     `json:"check_out"`
	Status        BookingStatus `json:"status"`
	LowConfidence bool          `json:"low_confidence"`
	RawBlock      string        `json:"-"`
	LastSyncedAt  time.Time     `json:"last_synced_at"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Nights returns the stay length in whole nights. Zero-night records come
// from feeds that omitted DTEND and carry the LowConfidence flag.
func (b *Booking) Nights() int {
	return int(b.CheckOut.Sub(b.CheckIn).Hours() / 24)
}

// ChangeKind classifies a booking state transition observed during
// reconciliation.
type ChangeKind string

const (
	ChangeCreated   ChangeKind = "created"
	ChangeUpdated   ChangeKind = "updated"
	ChangeCancelled ChangeKind = "cancelled"
)

// BookingChange is one change event emitted by the reconciliation engine.
// Booking is the post-transition snapshot; Prior is set for updated and
// cancelled changes so consumers can diff individual fields.
type BookingChange struct {
	Kind    ChangeKind `json:"kind"`
	Booking Booking    `json:"booking"`
	Prior   *Booking   `json:"prior,omitempty"`
}

// SyncResult is the ephemeral outcome of one orchestrator run over one feed.
type SyncResult struct {
	FeedID        string        `json:"feed_id"`
	FeedName      string        `json:"feed_name"`
	State         string        `json:"state"`
	EventsFound   int           `json:"events_found"`
	EventsSkipped int           `json:"events_skipped"`
	Created       int           `json:"created"`
	Updated       int           `json:"updated"`
	Cancelled     int           `json:"cancelled"`
	Unchanged     int           `json:"unchanged"`
	ErrorReason   string        `json:"error_reason,omitempty"`
	Error         error         `json:"-"`
	Duration      time.Duration `json:"duration_ms"`
	SyncedAt      time.Time     `json:"synced_at"`
}
