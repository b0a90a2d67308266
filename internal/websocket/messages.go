package websocket

import (
	"encoding/json"
	"time"

	"github.com/cleanbuz/booking-sync/internal/storage/models"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	TypeBookingCreated    MessageType = "booking.created"
	TypeBookingUpdated    MessageType = "booking.updated"
	TypeBookingCancelled  MessageType = "booking.cancelled"
	TypeFeedSyncCompleted MessageType = "feed.sync_completed"
	TypeFeedSyncError     MessageType = "feed.sync_error"
)

// Message represents a WebSocket message envelope.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message to JSON bytes.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// BookingChangePayload is the payload for booking.* events. Prior carries
// the pre-change snapshot for updates and cancellations.
type BookingChangePayload struct {
	FeedID   string          `json:"feed_id"`
	FeedName string          `json:"feed_name"`
	Booking  models.Booking  `json:"booking"`
	Nights   int             `json:"nights"`
	Prior    *models.Booking `json:"prior,omitempty"`
}

// FeedSyncPayload is the payload for feed.sync_completed events.
type FeedSyncPayload struct {
	FeedID        string `json:"feed_id"`
	FeedName      string `json:"feed_name"`
	EventsFound   int    `json:"events_found"`
	EventsSkipped int    `json:"events_skipped"`
	Created       int    `json:"created"`
	Updated       int    `json:"updated"`
	Cancelled     int    `json:"cancelled"`
	Unchanged     int    `json:"unchanged"`
}

// FeedSyncErrorPayload is the payload for feed.sync_error events.
type FeedSyncErrorPayload struct {
	FeedID   string `json:"feed_id"`
	FeedName string `json:"feed_name"`
	Reason   string `json:"reason"`
	Message  string `json:"message"`
}
