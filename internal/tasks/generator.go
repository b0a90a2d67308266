// Package tasks turns booking change events into turnover cleaning tasks.
package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cleanbuz/booking-sync/internal/storage"
	"github.com/cleanbuz/booking-sync/internal/storage/models"
)

// Generator is a change-event consumer that maintains one cleaning task per
// booking, due on checkout day. Task templates and assignment rules live in
// the surrounding application; this only keeps the task set consistent with
// the booking set.
type Generator struct {
	repo    *storage.TaskRepository
	logger  *zap.Logger
	timeout time.Duration
}

// NewGenerator creates the task generation consumer.
func NewGenerator(repo *storage.TaskRepository, logger *zap.Logger) *Generator {
	return &Generator{
		repo:    repo,
		logger:  logger,
		timeout: 30 * time.Second,
	}
}

// Name implements events.Consumer.
func (g *Generator) Name() string {
	return "task-generator"
}

// HandleSync implements events.Consumer.
func (g *Generator) HandleSync(f models.Feed, _ models.SyncResult, changes []models.BookingChange) {
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	for _, change := range changes {
		if err := g.apply(ctx, change); err != nil {
			g.logger.Error("failed to apply booking change to tasks",
				zap.String("feed_id", f.ID),
				zap.String("booking_id", change.Booking.ID),
				zap.String("kind", string(change.Kind)),
				zap.Error(err),
			)
		}
	}
}

func (g *Generator) apply(ctx context.Context, change models.BookingChange) error {
	b := change.Booking

	if change.Kind == models.ChangeCancelled || b.Status == models.BookingCancelled {
		return g.repo.CancelByBooking(ctx, b.ID)
	}

	// Zero-night placeholders are surfaced for manual review, not turned
	// into scheduled work.
	if b.LowConfidence {
		return nil
	}

	return g.repo.Upsert(ctx, &models.CleaningTask{
		PropertyID: b.PropertyID,
		FeedID:     b.FeedID,
		BookingID:  b.ID,
		DueDate:    b.CheckOut,
		Status:     models.TaskStatusPending,
	})
}
