// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/cleanbuz/booking-sync/internal/api/handlers"
	"github.com/cleanbuz/booking-sync/internal/api/middleware"
	"github.com/cleanbuz/booking-sync/internal/storage"
	"github.com/cleanbuz/booking-sync/internal/syncer"
	"github.com/cleanbuz/booking-sync/internal/websocket"
)

// Deps bundles everything the router wires into handlers.
type Deps struct {
	DB           *storage.DB
	Feeds        *storage.FeedRepository
	Bookings     *storage.BookingRepository
	Tasks        *storage.TaskRepository
	Orchestrator *syncer.Orchestrator
	Scheduler    *syncer.Scheduler
	Hub          *websocket.Hub
	Logger       *zap.Logger

	DefaultSyncIntervalMin int
}

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(d Deps) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.Logging(d.Logger))
	r.Use(middleware.ErrorRecovery(d.Logger))

	api := r.PathPrefix("/api").Subrouter()

	// Health and status endpoints
	api.HandleFunc("/health", handlers.HealthCheck(d.DB)).Methods("GET")
	api.HandleFunc("/status", handlers.Status(d.DB, d.Hub)).Methods("GET")

	// WebSocket endpoint
	api.HandleFunc("/ws", handlers.WebSocketUpgrade(d.Hub, d.Logger)).Methods("GET")

	// Feed endpoints
	api.HandleFunc("/feeds", handlers.ListFeeds(d.Feeds)).Methods("GET")
	api.HandleFunc("/feeds", handlers.CreateFeed(d.Feeds, d.Scheduler, d.DefaultSyncIntervalMin)).Methods("POST")
	api.HandleFunc("/feeds/{id}", handlers.GetFeed(d.Feeds)).Methods("GET")
	api.HandleFunc("/feeds/{id}", handlers.UpdateFeed(d.Feeds, d.Scheduler)).Methods("PUT")
	api.HandleFunc("/feeds/{id}", handlers.DeleteFeed(d.Feeds, d.Scheduler)).Methods("DELETE")
	api.HandleFunc("/feeds/{id}/sync", handlers.TriggerFeedSync(d.Feeds, d.Scheduler)).Methods("POST")
	api.HandleFunc("/feeds/{id}/bookings", handlers.ListFeedBookings(d.Bookings)).Methods("GET")

	// Booking and task endpoints
	api.HandleFunc("/bookings", handlers.ListBookings(d.Bookings)).Methods("GET")
	api.HandleFunc("/tasks", handlers.ListTasks(d.Tasks)).Methods("GET")

	// Sync pass endpoint
	api.HandleFunc("/sync/run", handlers.RunSyncPass(d.Orchestrator)).Methods("POST")

	return r
}
