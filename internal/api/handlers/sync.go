package handlers

import (
	"net/http"

	"github.com/cleanbuz/booking-sync/internal/api/middleware"
	"github.com/cleanbuz/booking-sync/internal/storage/models"
	"github.com/cleanbuz/booking-sync/internal/syncer"
)

// SyncRunResponse is one feed's entry in a full-pass response.
type SyncRunResponse struct {
	FeedID        string `json:"feed_id"`
	FeedName      string `json:"feed_name"`
	State         string `json:"state"`
	EventsFound   int    `json:"events_found"`
	EventsSkipped int    `json:"events_skipped"`
	Created       int    `json:"created"`
	Updated       int    `json:"updated"`
	Cancelled     int    `json:"cancelled"`
	Unchanged     int    `json:"unchanged"`
	ErrorReason   string `json:"error_reason,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
	DurationMS    int64  `json:"duration_ms"`
}

func toRunResponse(r models.SyncResult) SyncRunResponse {
	resp := SyncRunResponse{
		FeedID:        r.FeedID,
		FeedName:      r.FeedName,
		State:         r.State,
		EventsFound:   r.EventsFound,
		EventsSkipped: r.EventsSkipped,
		Created:       r.Created,
		Updated:       r.Updated,
		Cancelled:     r.Cancelled,
		Unchanged:     r.Unchanged,
		ErrorReason:   r.ErrorReason,
		DurationMS:    r.Duration.Milliseconds(),
	}
	if r.Error != nil {
		resp.ErrorMessage = r.Error.Error()
	}
	return resp
}

// RunSyncPass runs a full synchronous pass over all active feeds and returns
// the per-feed results.
func RunSyncPass(orchestrator *syncer.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results, err := orchestrator.RunAll(r.Context())
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Sync pass failed to start")
			return
		}

		resp := make([]SyncRunResponse, 0, len(results))
		for _, result := range results {
			resp = append(resp, toRunResponse(result))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
