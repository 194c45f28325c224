package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rwandabus/booking-api/internal/models"
)

// SeatInventoryRepository implements SeatInventory on Postgres. The claim
// path locks the schedule row first, so concurrent holds on one schedule
// are serialized while other schedules stay untouched.
type SeatInventoryRepository struct {
	db *sqlx.DB
}

// NewSeatInventoryRepository creates a new SeatInventoryRepository
func NewSeatInventoryRepository(db *sqlx.DB) *SeatInventoryRepository {
	return &SeatInventoryRepository{db: db}
}

// InitializeSeats creates the occupancy rows for a new schedule
func (r *SeatInventoryRepository) InitializeSeats(scheduleID uuid.UUID, totalSeats int) error {
	if totalSeats < 1 {
		return fmt.Errorf("total seats must be at least 1")
	}
	query := `
		INSERT INTO schedule_seats (schedule_id, seat_number, state, updated_at)
		SELECT $1, n, 'free', NOW()
		FROM generate_series(1, $2) AS n
		ON CONFLICT (schedule_id, seat_number) DO NOTHING`
	_, err := r.db.Exec(query, scheduleID, totalSeats)
	if err != nil {
		return fmt.Errorf("failed to initialize seats: %w", err)
	}
	return nil
}

// SnapshotAvailability returns the free/held/booked partition for a schedule
func (r *SeatInventoryRepository) SnapshotAvailability(scheduleID uuid.UUID) (*models.AvailabilitySnapshot, error) {
	var exists bool
	if err := r.db.Get(&exists, `SELECT EXISTS(SELECT 1 FROM schedules WHERE id = $1)`, scheduleID); err != nil {
		return nil, fmt.Errorf("failed to check schedule: %w", err)
	}
	if !exists {
		return nil, models.ErrScheduleNotFound
	}

	type seatRow struct {
		SeatNumber int              `db:"seat_number"`
		State      models.SeatState `db:"state"`
		HeldUntil  *time.Time       `db:"held_until"`
	}

	var rows []seatRow
	query := `
		SELECT seat_number, state, held_until
		FROM schedule_seats
		WHERE schedule_id = $1
		ORDER BY seat_number`
	if err := r.db.Select(&rows, query, scheduleID); err != nil {
		return nil, fmt.Errorf("failed to load seats: %w", err)
	}

	snapshot := &models.AvailabilitySnapshot{
		ScheduleID:  scheduleID,
		FreeSeats:   make([]int, 0, len(rows)),
		HeldSeats:   make([]int, 0),
		BookedSeats: make([]int, 0),
	}
	now := time.Now()
	for _, row := range rows {
		switch row.State {
		case models.SeatStateHeld:
			// Expired holds count as free until the reaper sweeps them.
			if row.HeldUntil != nil && row.HeldUntil.Before(now) {
				snapshot.FreeSeats = append(snapshot.FreeSeats, row.SeatNumber)
			} else {
				snapshot.HeldSeats = append(snapshot.HeldSeats, row.SeatNumber)
			}
		case models.SeatStateBooked:
			snapshot.BookedSeats = append(snapshot.BookedSeats, row.SeatNumber)
		default:
			snapshot.FreeSeats = append(snapshot.FreeSeats, row.SeatNumber)
		}
	}
	return snapshot, nil
}

// TryHold atomically claims all the given seats for a reservation
func (r *SeatInventoryRepository) TryHold(scheduleID uuid.UUID, seatNumbers []int, reservationID uuid.UUID, heldUntil time.Time) (*models.HoldResult, error) {
	seats := models.NormalizeSeatNumbers(seatNumbers)
	if len(seats) == 0 {
		return nil, fmt.Errorf("no seats requested")
	}

	tx, err := r.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Serialize concurrent holds on this schedule.
	var totalSeats int
	err = tx.Get(&totalSeats, `SELECT total_seats FROM schedules WHERE id = $1 FOR UPDATE`, scheduleID)
	if err == sql.ErrNoRows {
		return nil, models.ErrScheduleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock schedule: %w", err)
	}

	query, args, err := sqlx.In(`
		UPDATE schedule_seats
		SET state = 'held', held_by_reservation_id = ?, held_until = ?, updated_at = NOW()
		WHERE schedule_id = ?
		  AND seat_number IN (?)
		  AND (state = 'free' OR (state = 'held' AND held_until < NOW()))
	`, reservationID, heldUntil, scheduleID, seats)
	if err != nil {
		return nil, fmt.Errorf("failed to build hold query: %w", err)
	}
	query = tx.Rebind(query)
	result, err := tx.Exec(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to hold seats: %w", err)
	}

	rows, _ := result.RowsAffected()
	if int(rows) != len(seats) {
		// All-or-nothing: discard the partial hold and report the conflicts.
		conflicting, cerr := r.conflictingSeats(tx, scheduleID, seats, reservationID)
		if cerr != nil {
			return nil, cerr
		}
		return &models.HoldResult{Held: false, ConflictingSeats: conflicting}, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit hold: %w", err)
	}
	return &models.HoldResult{Held: true}, nil
}

// conflictingSeats lists the requested seats that are not currently
// claimable. It runs inside the claim transaction, after the partial
// UPDATE, so seats the transaction itself just moved to held would match
// the occupied predicate; they are excluded by reservation ID to report
// only the seats held or booked by someone else.
func (r *SeatInventoryRepository) conflictingSeats(tx *sqlx.Tx, scheduleID uuid.UUID, seats []int, reservationID uuid.UUID) ([]int, error) {
	query, args, err := sqlx.In(`
		SELECT seat_number
		FROM schedule_seats
		WHERE schedule_id = ?
		  AND seat_number IN (?)
		  AND state != 'free'
		  AND NOT (state = 'held' AND held_until < NOW())
		  AND (held_by_reservation_id IS NULL OR held_by_reservation_id != ?)
		ORDER BY seat_number
	`, scheduleID, seats, reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to build conflict query: %w", err)
	}
	query = tx.Rebind(query)

	conflicting := make([]int, 0)
	if err := tx.Select(&conflicting, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list conflicting seats: %w", err)
	}
	return conflicting, nil
}

// Commit transitions seats held by the reservation to booked
func (r *SeatInventoryRepository) Commit(scheduleID uuid.UUID, seatNumbers []int, reservationID uuid.UUID) error {
	seats := models.NormalizeSeatNumbers(seatNumbers)
	if len(seats) == 0 {
		return nil
	}

	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query, args, err := sqlx.In(`
		UPDATE schedule_seats
		SET state = 'booked', held_until = NULL, updated_at = NOW()
		WHERE schedule_id = ?
		  AND seat_number IN (?)
		  AND state = 'held'
		  AND held_by_reservation_id = ?
	`, scheduleID, seats, reservationID)
	if err != nil {
		return fmt.Errorf("failed to build commit query: %w", err)
	}
	query = tx.Rebind(query)
	result, err := tx.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to commit seats: %w", err)
	}

	rows, _ := result.RowsAffected()
	if int(rows) != len(seats) {
		return fmt.Errorf("%w: expected %d held seats, found %d", models.ErrInvalidSeatState, len(seats), rows)
	}
	return tx.Commit()
}

// Release frees seats held or booked by the given reservation. Seats
// claimed by a different reservation are left untouched: an expired hold
// can be legally re-held before its booking is swept, and that new claim
// must survive the sweep. Releasing an already-free seat is a no-op.
func (r *SeatInventoryRepository) Release(scheduleID uuid.UUID, seatNumbers []int, reservationID uuid.UUID) error {
	seats := models.NormalizeSeatNumbers(seatNumbers)
	if len(seats) == 0 {
		return nil
	}

	query, args, err := sqlx.In(`
		UPDATE schedule_seats
		SET state = 'free', held_by_reservation_id = NULL, held_until = NULL, updated_at = NOW()
		WHERE schedule_id = ?
		  AND seat_number IN (?)
		  AND state IN ('held', 'booked')
		  AND held_by_reservation_id = ?
	`, scheduleID, seats, reservationID)
	if err != nil {
		return fmt.Errorf("failed to build release query: %w", err)
	}
	query = r.db.Rebind(query)
	if _, err := r.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to release seats: %w", err)
	}
	return nil
}

// ReleaseExpiredHolds frees every held seat whose TTL has elapsed
func (r *SeatInventoryRepository) ReleaseExpiredHolds() (int, error) {
	query := `
		UPDATE schedule_seats
		SET state = 'free', held_by_reservation_id = NULL, held_until = NULL, updated_at = NOW()
		WHERE state = 'held' AND held_until < NOW()`
	result, err := r.db.Exec(query)
	if err != nil {
		return 0, err
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}
