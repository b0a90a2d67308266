package websocket

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cleanbuz/booking-sync/internal/events"
	"github.com/cleanbuz/booking-sync/internal/storage/models"
)

func newTestBroadcaster(t *testing.T) (*Broadcaster, *Client) {
	t.Helper()

	hub := NewHub(zap.NewNop())
	go hub.Run()

	client := NewClient(hub)
	hub.Register(client)
	t.Cleanup(func() { hub.Unregister(client) })

	return NewBroadcaster(hub, zap.NewNop()), client
}

type envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func receiveMessage(t *testing.T, c *Client) envelope {
	t.Helper()

	select {
	case data := <-c.Send():
		var env envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast message")
		return envelope{}
	}
}

func TestBroadcaster_ErroredRunEmitsSyncError(t *testing.T) {
	b, client := newTestBroadcaster(t)

	b.HandleSync(models.Feed{ID: "feed-1", Name: "Beach House"}, models.SyncResult{
		FeedID:      "feed-1",
		FeedName:    "Beach House",
		State:       "errored",
		ErrorReason: "fetch_failed",
		Error:       errors.New("unexpected status 404"),
	}, nil)

	env := receiveMessage(t, client)
	assert.Equal(t, TypeFeedSyncError, env.Type)

	var payload FeedSyncErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "feed-1", payload.FeedID)
	assert.Equal(t, "fetch_failed", payload.Reason)
	assert.Equal(t, "unexpected status 404", payload.Message)
}

func TestBroadcaster_ChangeFreeRunEmitsSyncCompleted(t *testing.T) {
	b, client := newTestBroadcaster(t)

	b.HandleSync(models.Feed{ID: "feed-1", Name: "Beach House"}, models.SyncResult{
		FeedID:    "feed-1",
		FeedName:  "Beach House",
		State:     "completed",
		Unchanged: 3,
	}, nil)

	env := receiveMessage(t, client)
	assert.Equal(t, TypeFeedSyncCompleted, env.Type)

	var payload FeedSyncPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, 3, payload.Unchanged)
}

func TestBroadcaster_ChangesStreamBeforeCompletion(t *testing.T) {
	b, client := newTestBroadcaster(t)

	booking := models.Booking{
		ID:         "b1",
		FeedID:     "feed-1",
		ExternalID: "uid-1",
		GuestName:  "Guest",
		CheckIn:    time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		CheckOut:   time.Date(2025, 7, 5, 0, 0, 0, 0, time.UTC),
		Status:     models.BookingConfirmed,
	}
	b.HandleSync(models.Feed{ID: "feed-1", Name: "Beach House"}, models.SyncResult{
		FeedID:   "feed-1",
		FeedName: "Beach House",
		State:    "completed",
		Created:  1,
	}, []models.BookingChange{
		{Kind: models.ChangeCreated, Booking: booking},
	})

	env := receiveMessage(t, client)
	assert.Equal(t, TypeBookingCreated, env.Type)

	var payload BookingChangePayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "uid-1", payload.Booking.ExternalID)
	assert.Equal(t, 4, payload.Nights)

	env = receiveMessage(t, client)
	assert.Equal(t, TypeFeedSyncCompleted, env.Type)
}

func TestBroadcaster_ReceivesFailuresThroughPublisher(t *testing.T) {
	b, client := newTestBroadcaster(t)

	p := events.NewPublisher(zap.NewNop())
	p.Subscribe(b)

	p.Publish(models.Feed{ID: "feed-1", Name: "Beach House"}, models.SyncResult{
		FeedID:      "feed-1",
		FeedName:    "Beach House",
		State:       "errored",
		ErrorReason: "suspected_partial_feed",
	}, nil)
	p.Close()

	env := receiveMessage(t, client)
	assert.Equal(t, TypeFeedSyncError, env.Type)

	var payload FeedSyncErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "suspected_partial_feed", payload.Reason)
}
