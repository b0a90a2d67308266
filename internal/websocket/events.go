package websocket

import (
	"go.uber.org/zap"

	"github.com/cleanbuz/booking-sync/internal/storage/models"
)

// Broadcaster translates sync activity into hub messages. It is registered
// as a change-event consumer and can also be invoked directly for sync
// status notifications.
type Broadcaster struct {
	hub    *Hub
	logger *zap.Logger
}

// NewBroadcaster creates a new event broadcaster.
func NewBroadcaster(hub *Hub, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{hub: hub, logger: logger}
}

// Name implements events.Consumer.
func (b *Broadcaster) Name() string {
	return "websocket-broadcaster"
}

// HandleSync implements events.Consumer. Errored runs produce a single
// feed.sync_error message; completed runs stream their booking changes (if
// any) followed by feed.sync_completed.
func (b *Broadcaster) HandleSync(f models.Feed, result models.SyncResult, changes []models.BookingChange) {
	if result.ErrorReason != "" {
		b.BroadcastSyncError(result)
		return
	}

	for _, change := range changes {
		var msgType MessageType
		switch change.Kind {
		case models.ChangeCreated:
			msgType = TypeBookingCreated
		case models.ChangeUpdated:
			msgType = TypeBookingUpdated
		case models.ChangeCancelled:
			msgType = TypeBookingCancelled
		default:
			continue
		}

		b.send(NewMessage(msgType, BookingChangePayload{
			FeedID:   f.ID,
			FeedName: f.Name,
			Booking:  change.Booking,
			Nights:   change.Booking.Nights(),
			Prior:    change.Prior,
		}))
	}

	b.BroadcastSyncCompleted(result)
}

// BroadcastSyncCompleted sends a feed.sync_completed event.
func (b *Broadcaster) BroadcastSyncCompleted(result models.SyncResult) {
	b.send(NewMessage(TypeFeedSyncCompleted, FeedSyncPayload{
		FeedID:        result.FeedID,
		FeedName:      result.FeedName,
		EventsFound:   result.EventsFound,
		EventsSkipped: result.EventsSkipped,
		Created:       result.Created,
		Updated:       result.Updated,
		Cancelled:     result.Cancelled,
		Unchanged:     result.Unchanged,
	}))
}

// BroadcastSyncError sends a feed.sync_error event.
func (b *Broadcaster) BroadcastSyncError(result models.SyncResult) {
	msg := ""
	if result.Error != nil {
		msg = result.Error.Error()
	}
	b.send(NewMessage(TypeFeedSyncError, FeedSyncErrorPayload{
		FeedID:   result.FeedID,
		FeedName: result.FeedName,
		Reason:   result.ErrorReason,
		Message:  msg,
	}))
}

func (b *Broadcaster) send(msg Message) {
	data, err := msg.JSON()
	if err != nil {
		b.logger.Error("failed to encode websocket message", zap.Error(err))
		return
	}

	b.hub.Broadcast(data)
}
