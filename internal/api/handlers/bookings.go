package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cleanbuz/booking-sync/internal/api/middleware"
	"github.com/cleanbuz/booking-sync/internal/storage"
	"github.com/cleanbuz/booking-sync/internal/storage/models"
)

// ListBookings returns all bookings, optionally filtered by property.
func ListBookings(bookings *storage.BookingRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			list []models.Booking
			err  error
		)

		if propertyID := r.URL.Query().Get("property_id"); propertyID != "" {
			list, err = bookings.ListByProperty(r.Context(), propertyID)
		} else {
			list, err = bookings.List(r.Context())
		}
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query bookings")
			return
		}

		if list == nil {
			list = []models.Booking{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// ListFeedBookings returns the canonical booking set for one feed.
func ListFeedBookings(bookings *storage.BookingRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		feedID := mux.Vars(r)["id"]

		list, err := bookings.ListByFeed(r.Context(), feedID)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query bookings")
			return
		}

		if list == nil {
			list = []models.Booking{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// ListTasks returns all cleaning tasks ordered by due date.
func ListTasks(tasks *storage.TaskRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := tasks.List(r.Context())
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query tasks")
			return
		}

		if list == nil {
			list = []models.CleaningTask{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}
