package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cleanbuz/booking-sync/internal/storage/models"
)

// BookingRepository provides data access for canonical booking records.
type BookingRepository struct {
	BaseRepository
}

// NewBookingRepository creates a new booking repository.
func NewBookingRepository(db *DB) *BookingRepository {
	return &BookingRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const bookingColumns = `
	id, property_id, feed_id, external_id, guest_name, check_in, check_out,
	status, low_confidence, raw_block, last_synced_at, created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (*models.Booking, error) {
	b := &models.Booking{}
	err := row.Scan(
		&b.ID, &b.PropertyID, &b.FeedID, &b.ExternalID, &b.GuestName,
		&b.CheckIn, &b.CheckOut, &b.Status, &b.LowConfidence, &b.RawBlock,
		&b.LastSyncedAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ListByFeed retrieves the full booking set for one feed, cancelled records
// included. This is the prior state handed to the reconciliation engine.
func (r *BookingRepository) ListByFeed(ctx context.Context, feedID string) ([]models.Booking, error) {
	return r.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE feed_id = ? ORDER BY check_in, external_id`,
		feedID)
}

// ListByProperty retrieves bookings for a property across all of its feeds,
// ordered so date overlaps between feeds are adjacent in the output.
func (r *BookingRepository) ListByProperty(ctx context.Context, propertyID string) ([]models.Booking, error) {
	return r.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE property_id = ? ORDER BY check_in, feed_id`,
		propertyID)
}

// List retrieves all bookings ordered by property and check-in date.
func (r *BookingRepository) List(ctx context.Context) ([]models.Booking, error) {
	return r.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings ORDER BY property_id, check_in`)
}

// GetByExternalID retrieves one booking by its idempotency key.
func (r *BookingRepository) GetByExternalID(ctx context.Context, feedID, externalID string) (*models.Booking, error) {
	row := r.DB().QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE feed_id = ? AND external_id = ?`,
		feedID, externalID)

	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying booking: %w", err)
	}
	return b, nil
}

func (r *BookingRepository) queryBookings(ctx context.Context, query string, args ...any) ([]models.Booking, error) {
	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning booking: %w", err)
		}
		bookings = append(bookings, *b)
	}

	return bookings, rows.Err()
}

// UpsertSet writes the post-reconciliation canonical set for a feed in one
// transaction, keyed by (feed_id, external_id). Records are updated in place;
// nothing is ever deleted here, cancellation is just a status value.
func (r *BookingRepository) UpsertSet(ctx context.Context, feedID string, bookings []models.Booking) error {
	now := r.Now()

	return r.Transaction(func(tx *sql.Tx) error {
		for i := range bookings {
			b := &bookings[i]
			if b.ID == "" {
				b.ID = GenerateID()
			}

			_, err := tx.ExecContext(ctx, `
				INSERT INTO bookings (
					id, property_id, feed_id, external_id, guest_name,
					check_in, check_out, status, low_confidence, raw_block,
					last_synced_at, created_at, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (feed_id, external_id) DO UPDATE SET
					guest_name = excluded.guest_name,
					check_in = excluded.check_in,
					check_out = excluded.check_out,
					status = excluded.status,
					low_confidence = excluded.low_confidence,
					raw_block = excluded.raw_block,
					last_synced_at = excluded.last_synced_at,
					updated_at = excluded.updated_at
			`,
				b.ID, b.PropertyID, feedID, b.ExternalID, b.GuestName,
				b.CheckIn, b.CheckOut, b.Status, b.LowConfidence, b.RawBlock,
				b.LastSyncedAt, now, now,
			)
			if err != nil {
				return fmt.Errorf("upserting booking %s: %w", b.ExternalID, err)
			}
		}

		return nil
	})
}
