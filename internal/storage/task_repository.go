package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cleanbuz/booking-sync/internal/storage/models"
)

// TaskRepository provides data access for cleaning tasks.
type TaskRepository struct {
	BaseRepository
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const taskColumns = `id, property_id, feed_id, booking_id, due_date, status, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (*models.CleaningTask, error) {
	t := &models.CleaningTask{}
	err := row.Scan(
		&t.ID, &t.PropertyID, &t.FeedID, &t.BookingID,
		&t.DueDate, &t.Status, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Upsert creates or reschedules the cleaning task for a booking. A done task
// is left untouched; a cancelled task is revived when the booking reappears.
func (r *TaskRepository) Upsert(ctx context.Context, t *models.CleaningTask) error {
	now := r.Now()
	if t.ID == "" {
		t.ID = GenerateID()
	}
	if t.Status == "" {
		t.Status = models.TaskStatusPending
	}

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO cleaning_tasks (
			id, property_id, feed_id, booking_id, due_date, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (booking_id) DO UPDATE SET
			due_date = excluded.due_date,
			status = CASE WHEN cleaning_tasks.status = 'done' THEN cleaning_tasks.status ELSE excluded.status END,
			updated_at = excluded.updated_at
	`, t.ID, t.PropertyID, t.FeedID, t.BookingID, t.DueDate, t.Status, now, now)
	if err != nil {
		return fmt.Errorf("upserting task: %w", err)
	}

	return nil
}

// CancelByBooking marks the task for a booking cancelled, unless it is
// already done.
func (r *TaskRepository) CancelByBooking(ctx context.Context, bookingID string) error {
	_, err := r.DB().ExecContext(ctx, `
		UPDATE cleaning_tasks SET status = ?, updated_at = ?
		WHERE booking_id = ? AND status != ?
	`, models.TaskStatusCancelled, r.Now(), bookingID, models.TaskStatusDone)
	if err != nil {
		return fmt.Errorf("cancelling task: %w", err)
	}

	return nil
}

// GetByBooking retrieves the task for a booking, or nil when none exists.
func (r *TaskRepository) GetByBooking(ctx context.Context, bookingID string) (*models.CleaningTask, error) {
	row := r.DB().QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM cleaning_tasks WHERE booking_id = ?`, bookingID)

	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying task: %w", err)
	}
	return t, nil
}

// List retrieves all cleaning tasks ordered by due date.
func (r *TaskRepository) List(ctx context.Context) ([]models.CleaningTask, error) {
	rows, err := r.DB().QueryContext(ctx,
		`SELECT `+taskColumns+` FROM cleaning_tasks ORDER BY due_date, property_id`)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.CleaningTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		tasks = append(tasks, *t)
	}

	return tasks, rows.Err()
}
