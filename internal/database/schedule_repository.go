package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rwandabus/booking-api/internal/models"
)

// ScheduleRepository handles schedule database operations
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new ScheduleRepository
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// Create inserts a new schedule
func (r *ScheduleRepository) Create(schedule *models.Schedule) error {
	if err := schedule.Validate(); err != nil {
		return err
	}
	if schedule.ID == uuid.Nil {
		schedule.ID = uuid.New()
	}
	if schedule.Status == "" {
		schedule.Status = models.ScheduleStatusActive
	}
	schedule.CreatedAt = time.Now()
	schedule.UpdatedAt = schedule.CreatedAt

	query := `
		INSERT INTO schedules (
			id, route_id, bus_id, departure_at, arrival_at,
			seat_price, total_seats, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(query,
		schedule.ID, schedule.RouteID, schedule.BusID,
		schedule.DepartureAt, schedule.ArrivalAt,
		schedule.SeatPrice, schedule.TotalSeats, schedule.Status,
		schedule.CreatedAt, schedule.UpdatedAt,
	)
	return err
}

// GetByID retrieves a schedule by ID
func (r *ScheduleRepository) GetByID(id uuid.UUID) (*models.Schedule, error) {
	var schedule models.Schedule
	query := `
		SELECT id, route_id, bus_id, departure_at, arrival_at,
		       seat_price, total_seats, status, created_at, updated_at
		FROM schedules
		WHERE id = $1`

	err := r.db.Get(&schedule, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

// ListActive returns active schedules that have not yet departed
func (r *ScheduleRepository) ListActive(now time.Time, limit, offset int) ([]*models.Schedule, error) {
	query := `
		SELECT id, route_id, bus_id, departure_at, arrival_at,
		       seat_price, total_seats, status, created_at, updated_at
		FROM schedules
		WHERE status = 'active' AND departure_at > $1
		ORDER BY departure_at
		LIMIT $2 OFFSET $3`

	schedules := make([]*models.Schedule, 0)
	err := r.db.Select(&schedules, query, now, limit, offset)
	if err != nil {
		return nil, err
	}
	return schedules, nil
}

// ListArrivedBefore returns active schedules whose arrival time has passed
func (r *ScheduleRepository) ListArrivedBefore(cutoff time.Time, limit int) ([]*models.Schedule, error) {
	query := `
		SELECT id, route_id, bus_id, departure_at, arrival_at,
		       seat_price, total_seats, status, created_at, updated_at
		FROM schedules
		WHERE status = 'active' AND arrival_at < $1
		ORDER BY arrival_at
		LIMIT $2`

	schedules := make([]*models.Schedule, 0)
	err := r.db.Select(&schedules, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	return schedules, nil
}

// MarkCompleted transitions an active schedule to completed
func (r *ScheduleRepository) MarkCompleted(id uuid.UUID) error {
	query := `
		UPDATE schedules
		SET status = 'completed', updated_at = NOW()
		WHERE id = $1 AND status = 'active'`
	result, err := r.db.Exec(query, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("schedule %s is not active", id)
	}
	return nil
}
