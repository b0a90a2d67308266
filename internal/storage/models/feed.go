// Package models contains the domain models for the booking sync engine.
package models

import (
	"time"
)

// Platform identifies the booking platform a feed originates from.
// It selects quirk handling in the parser.
type Platform string

const (
	PlatformAirbnb     Platform = "airbnb"
	PlatformVRBO       Platform = "vrbo"
	PlatformBookingCom Platform = "bookingcom"
	PlatformOther      Platform = "other"
)

// ValidPlatform reports whether p is one of the known platform tags.
func ValidPlatform(p Platform) bool {
	switch p {
	case PlatformAirbnb, PlatformVRBO, PlatformBookingCom, PlatformOther:
		return true
	}
	return false
}

// Feed represents one subscribed external calendar source for a property.
type Feed struct {
	ID              string     `json:"id"`
	PropertyID      string     `json:"property_id"`
	Name            string     `json:"name"`
	URL             string     `json:"url"`
	Platform        Platform   `json:"platform"`
	Timezone        string     `json:"timezone"`
	SyncIntervalMin int        `json:"sync_interval_min"`
	Active          bool       `json:"active"`
	Deleted         bool       `json:"-"`
	LastSyncAt      *time.Time `json:"last_sync_at,omitempty"`
	LastSyncStatus  string     `json:"last_sync_status"`
	LastSyncError   *string    `json:"last_sync_error,omitempty"`
	Stats           FeedStats  `json:"stats"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// FeedStats holds cumulative sync statistics for a feed.
type FeedStats struct {
	TotalSyncs      int `json:"total_syncs"`
	SuccessfulSyncs int `json:"successful_syncs"`
	FailedSyncs     int `json:"failed_syncs"`
	BookingsCreated int `json:"bookings_created"`
	BookingsUpdated int `json:"bookings_updated"`
}

// Sync status constants stored on the feed.
const (
	SyncStatusPending = "pending"
	SyncStatusSyncing = "syncing"
	SyncStatusSuccess = "success"
	SyncStatusError   = "error"
)
