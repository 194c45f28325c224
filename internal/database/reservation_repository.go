package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rwandabus/booking-api/internal/models"
)

// ReservationRepository is the append-only reservation ledger on Postgres
type ReservationRepository struct {
	db *sqlx.DB
}

// NewReservationRepository creates a new ReservationRepository
func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// Create records a resolved reservation attempt
func (r *ReservationRepository) Create(reservation *models.Reservation) error {
	if reservation.ID == uuid.Nil {
		reservation.ID = uuid.New()
	}
	reservation.CreatedAt = time.Now()

	query := `
		INSERT INTO reservations (
			id, schedule_id, seat_numbers,
			user_id, guest_name, guest_email, guest_phone,
			outcome, rejection_reason, conflicting_seats,
			held_until, consumed, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.Exec(query,
		reservation.ID, reservation.ScheduleID, reservation.SeatNumbers,
		reservation.UserID, reservation.GuestName, reservation.GuestEmail, reservation.GuestPhone,
		reservation.Outcome, reservation.RejectionReason, reservation.ConflictingSeats,
		reservation.HeldUntil, reservation.Consumed, reservation.CreatedAt,
	)
	return err
}

// GetByID retrieves a reservation by ID
func (r *ReservationRepository) GetByID(id uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	query := `
		SELECT id, schedule_id, seat_numbers,
		       user_id, guest_name, guest_email, guest_phone,
		       outcome, rejection_reason, conflicting_seats,
		       held_until, consumed, created_at
		FROM reservations
		WHERE id = $1`

	err := r.db.Get(&reservation, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// MarkConsumed flags a granted reservation as consumed, exactly once
func (r *ReservationRepository) MarkConsumed(id uuid.UUID) error {
	query := `
		UPDATE reservations
		SET consumed = TRUE
		WHERE id = $1 AND outcome = 'granted' AND consumed = FALSE`
	result, err := r.db.Exec(query, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: reservation %s", models.ErrReservationConsumed, id)
	}
	return nil
}

// DeleteRejectedBefore purges rejected ledger entries older than the cutoff
func (r *ReservationRepository) DeleteRejectedBefore(cutoff time.Time) (int, error) {
	query := `DELETE FROM reservations WHERE outcome = 'rejected' AND created_at < $1`
	result, err := r.db.Exec(query, cutoff)
	if err != nil {
		return 0, err
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}
