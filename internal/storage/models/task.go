package models

import (
	"time"
)

// Task status constants.
const (
	TaskStatusPending   = "pending"
	TaskStatusDone      = "done"
	TaskStatusCancelled = "cancelled"
)

// CleaningTask is a turnover cleaning job derived from a booking. One task
// per booking, due on the checkout day.
type CleaningTask struct {
	ID         string    `json:"id"`
	PropertyID string    `json:"property_id"`
	FeedID     string    `json:"feed_id"`
	BookingID  string    `json:"booking_id"`
	DueDate    time.Time `json:"due_date"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
