package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cleanbuz/booking-sync/internal/storage/models"
)

// FeedRepository provides data access for calendar feed subscriptions.
type FeedRepository struct {
	BaseRepository
}

// NewFeedRepository creates a new feed repository.
func NewFeedRepository(db *DB) *FeedRepository {
	return &FeedRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const feedColumns = `
	id, property_id, name, url, platform, timezone, sync_interval_min,
	active, deleted, last_sync_at, last_sync_status, last_sync_error,
	total_syncs, successful_syncs, failed_syncs, bookings_created, bookings_updated,
	created_at, updated_at`

func scanFeed(row interface{ Scan(...any) error }) (*models.Feed, error) {
	f := &models.Feed{}
	err := row.Scan(
		&f.ID, &f.PropertyID, &f.Name, &f.URL, &f.Platform, &f.Timezone,
		&f.SyncIntervalMin, &f.Active, &f.Deleted, &f.LastSyncAt,
		&f.LastSyncStatus, &f.LastSyncError,
		&f.Stats.TotalSyncs, &f.Stats.SuccessfulSyncs, &f.Stats.FailedSyncs,
		&f.Stats.BookingsCreated, &f.Stats.BookingsUpdated,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Create inserts a new feed subscription.
func (r *FeedRepository) Create(ctx context.Context, f *models.Feed) error {
	f.ID = GenerateID()
	f.CreatedAt = r.Now()
	f.UpdatedAt = f.CreatedAt
	f.LastSyncStatus = models.SyncStatusPending

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO feeds (
			id, property_id, name, url, platform, timezone, sync_interval_min,
			active, last_sync_status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		f.ID, f.PropertyID, f.Name, f.URL, f.Platform, f.Timezone,
		f.SyncIntervalMin, f.Active, f.LastSyncStatus, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting feed: %w", err)
	}

	return nil
}

// GetByID retrieves a feed by its ID. Returns nil without error when the feed
// does not exist or has been soft-deleted.
func (r *FeedRepository) GetByID(ctx context.Context, id string) (*models.Feed, error) {
	row := r.DB().QueryRowContext(ctx,
		`SELECT `+feedColumns+` FROM feeds WHERE id = ? AND deleted = 0`, id)

	f, err := scanFeed(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying feed: %w", err)
	}
	return f, nil
}

// List retrieves all feeds that have not been soft-deleted.
func (r *FeedRepository) List(ctx context.Context) ([]models.Feed, error) {
	return r.queryFeeds(ctx,
		`SELECT `+feedColumns+` FROM feeds WHERE deleted = 0 ORDER BY name`)
}

// ListActive retrieves all feeds eligible for scheduled sync passes.
// Only active, non-deleted feeds are included.
func (r *FeedRepository) ListActive(ctx context.Context) ([]models.Feed, error) {
	return r.queryFeeds(ctx,
		`SELECT `+feedColumns+` FROM feeds
		 WHERE active = 1 AND deleted = 0
		 ORDER BY last_sync_at ASC NULLS FIRST`)
}

func (r *FeedRepository) queryFeeds(ctx context.Context, query string, args ...any) ([]models.Feed, error) {
	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying feeds: %w", err)
	}
	defer rows.Close()

	var feeds []models.Feed
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning feed: %w", err)
		}
		feeds = append(feeds, *f)
	}

	return feeds, rows.Err()
}

// Update updates a feed's owner-editable fields.
func (r *FeedRepository) Update(ctx context.Context, f *models.Feed) error {
	f.UpdatedAt = r.Now()

	result, err := r.DB().ExecContext(ctx, `
		UPDATE feeds SET
			name = ?, url = ?, platform = ?, timezone = ?,
			sync_interval_min = ?, active = ?, updated_at = ?
		WHERE id = ? AND deleted = 0
	`,
		f.Name, f.URL, f.Platform, f.Timezone,
		f.SyncIntervalMin, f.Active, f.UpdatedAt, f.ID,
	)
	if err != nil {
		return fmt.Errorf("updating feed: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("feed not found: %s", f.ID)
	}

	return nil
}

// SoftDelete marks a feed deleted and inactive. Historical bookings keep
// referencing it, so rows are never removed.
func (r *FeedRepository) SoftDelete(ctx context.Context, id string) error {
	result, err := r.DB().ExecContext(ctx, `
		UPDATE feeds SET deleted = 1, active = 0, updated_at = ?
		WHERE id = ? AND deleted = 0
	`, r.Now(), id)
	if err != nil {
		return fmt.Errorf("deleting feed: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("feed not found: %s", id)
	}

	return nil
}

// UpdateSyncStatus updates transient sync state on a feed. last_sync_at is
// only advanced on success.
func (r *FeedRepository) UpdateSyncStatus(ctx context.Context, id string, status string, syncError *string) error {
	now := time.Now().UTC()
	var lastSyncAt *time.Time
	if status == models.SyncStatusSuccess {
		lastSyncAt = &now
	}

	_, err := r.DB().ExecContext(ctx, `
		UPDATE feeds SET
			last_sync_status = ?, last_sync_error = ?,
			last_sync_at = COALESCE(?, last_sync_at), updated_at = ?
		WHERE id = ?
	`, status, syncError, lastSyncAt, now, id)
	if err != nil {
		return fmt.Errorf("updating sync status: %w", err)
	}

	return nil
}

// RecordSyncOutcome accumulates per-run counters into the feed's cumulative
// statistics.
func (r *FeedRepository) RecordSyncOutcome(ctx context.Context, id string, success bool, created, updated int) error {
	successInc := 0
	failureInc := 0
	if success {
		successInc = 1
	} else {
		failureInc = 1
	}

	_, err := r.DB().ExecContext(ctx, `
		UPDATE feeds SET
			total_syncs = total_syncs + 1,
			successful_syncs = successful_syncs + ?,
			failed_syncs = failed_syncs + ?,
			bookings_created = bookings_created + ?,
			bookings_updated = bookings_updated + ?,
			updated_at = ?
		WHERE id = ?
	`, successInc, failureInc, created, updated, r.Now(), id)
	if err != nil {
		return fmt.Errorf("recording sync outcome: %w", err)
	}

	return nil
}
