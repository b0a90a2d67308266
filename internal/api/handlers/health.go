// Package handlers provides HTTP request handlers for the API endpoints.
package handlers

import (
	"net/http"

	"github.com/cleanbuz/booking-sync/internal/storage"
	"github.com/cleanbuz/booking-sync/internal/websocket"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	DBConnected bool   `json:"db_connected"`
}

// HealthCheck returns a handler that performs a health check.
func HealthCheck(db *storage.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbConnected := db.Ping() == nil

		status := "healthy"
		code := http.StatusOK
		if !dbConnected {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		writeJSON(w, code, HealthResponse{
			Status:      status,
			DBConnected: dbConnected,
		})
	}
}

// StatusResponse represents the system status response.
type StatusResponse struct {
	FeedsCount       int `json:"feeds_count"`
	ActiveFeedsCount int `json:"active_feeds_count"`
	BookingsCount    int `json:"bookings_count"`
	ConfirmedCount   int `json:"confirmed_bookings_count"`
	PendingTasks     int `json:"pending_tasks_count"`
	ConnectedClients int `json:"connected_clients"`
}

// Status returns a handler that provides system status information.
func Status(db *storage.DB, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var resp StatusResponse

		db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feeds WHERE deleted = 0").Scan(&resp.FeedsCount)
		db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feeds WHERE active = 1 AND deleted = 0").Scan(&resp.ActiveFeedsCount)
		db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bookings").Scan(&resp.BookingsCount)
		db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bookings WHERE status = 'confirmed'").Scan(&resp.ConfirmedCount)
		db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cleaning_tasks WHERE status = 'pending'").Scan(&resp.PendingTasks)
		resp.ConnectedClients = hub.ClientCount()

		writeJSON(w, http.StatusOK, resp)
	}
}
