package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cleanbuz/booking-sync/internal/api/middleware"
	"github.com/cleanbuz/booking-sync/internal/storage"
	"github.com/cleanbuz/booking-sync/internal/storage/models"
	"github.com/cleanbuz/booking-sync/internal/syncer"
)

// FeedRequest is the create/update body for a feed subscription.
type FeedRequest struct {
	PropertyID      string          `json:"property_id"`
	Name            string          `json:"name"`
	URL             string          `json:"url"`
	Platform        models.Platform `json:"platform"`
	Timezone        string          `json:"timezone"`
	SyncIntervalMin int             `json:"sync_interval_min"`
	Active          bool            `json:"active"`
}

func (req *FeedRequest) validate() string {
	if req.PropertyID == "" || req.Name == "" || req.URL == "" {
		return "property_id, name and url are required"
	}
	if req.Platform == "" {
		req.Platform = models.PlatformOther
	}
	if !models.ValidPlatform(req.Platform) {
		return "platform must be one of: airbnb, vrbo, bookingcom, other"
	}
	return ""
}

// ListFeeds returns all feed subscriptions.
func ListFeeds(feeds *storage.FeedRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := feeds.List(r.Context())
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query feeds")
			return
		}

		if list == nil {
			list = []models.Feed{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// CreateFeed registers a new feed subscription and schedules it.
func CreateFeed(feeds *storage.FeedRepository, scheduler *syncer.Scheduler, defaultIntervalMin int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req FeedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}
		if msg := req.validate(); msg != "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, msg)
			return
		}
		if req.SyncIntervalMin < 5 {
			req.SyncIntervalMin = defaultIntervalMin
		}

		f := &models.Feed{
			PropertyID:      req.PropertyID,
			Name:            req.Name,
			URL:             req.URL,
			Platform:        req.Platform,
			Timezone:        req.Timezone,
			SyncIntervalMin: req.SyncIntervalMin,
			Active:          req.Active,
		}

		if err := feeds.Create(r.Context(), f); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to create feed")
			return
		}

		if scheduler != nil {
			scheduler.ScheduleFeed(*f)
		}

		writeJSON(w, http.StatusCreated, f)
	}
}

// GetFeed returns a single feed by ID.
func GetFeed(feeds *storage.FeedRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		f, err := feeds.GetByID(r.Context(), id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query feed")
			return
		}
		if f == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Feed not found")
			return
		}

		writeJSON(w, http.StatusOK, f)
	}
}

// UpdateFeed updates a feed's settings and reschedules it.
func UpdateFeed(feeds *storage.FeedRepository, scheduler *syncer.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		f, err := feeds.GetByID(r.Context(), id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query feed")
			return
		}
		if f == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Feed not found")
			return
		}

		var req FeedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}
		if msg := req.validate(); msg != "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, msg)
			return
		}

		f.Name = req.Name
		f.URL = req.URL
		f.Platform = req.Platform
		f.Timezone = req.Timezone
		if req.SyncIntervalMin >= 5 {
			f.SyncIntervalMin = req.SyncIntervalMin
		}
		f.Active = req.Active

		if err := feeds.Update(r.Context(), f); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to update feed")
			return
		}

		if scheduler != nil {
			scheduler.ScheduleFeed(*f)
		}

		writeJSON(w, http.StatusOK, f)
	}
}

// DeleteFeed soft-deletes a feed. Bookings that reference it are retained.
func DeleteFeed(feeds *storage.FeedRepository, scheduler *syncer.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		if err := feeds.SoftDelete(r.Context(), id); err != nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Feed not found")
			return
		}

		if scheduler != nil {
			scheduler.UnscheduleFeed(id)
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// TriggerFeedSync starts an immediate sync for one feed.
func TriggerFeedSync(feeds *storage.FeedRepository, scheduler *syncer.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		f, err := feeds.GetByID(r.Context(), id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query feed")
			return
		}
		if f == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Feed not found")
			return
		}

		scheduler.TriggerSync(id)

		writeJSON(w, http.StatusAccepted, map[string]string{"status": "sync_triggered", "feed_id": id})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
