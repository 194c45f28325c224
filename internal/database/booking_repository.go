package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rwandabus/booking-api/internal/models"
)

// BookingRepository handles booking database operations
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// GenerateBookingReference generates a unique passenger-facing reference
func (r *BookingRepository) GenerateBookingReference() (string, error) {
	return generateBookingReference(r.ReferenceExists)
}

// ReferenceExists reports whether a booking reference is already taken
func (r *BookingRepository) ReferenceExists(reference string) (bool, error) {
	var count int
	err := r.db.Get(&count, `SELECT COUNT(*) FROM bookings WHERE booking_reference = $1`, reference)
	if err != nil {
		return false, fmt.Errorf("failed to check reference uniqueness: %w", err)
	}
	return count > 0, nil
}

// Create inserts a new booking
func (r *BookingRepository) Create(booking *models.Booking) error {
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = booking.CreatedAt

	query := `
		INSERT INTO bookings (
			id, booking_reference, schedule_id, reservation_id, seat_numbers,
			user_id, guest_name, guest_email, guest_phone, passenger_count,
			total_amount, currency, payment_method, payment_status, status,
			hold_expires_at, idempotency_key, device_info, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20
		)`

	_, err := r.db.Exec(query,
		booking.ID, booking.BookingReference, booking.ScheduleID, booking.ReservationID, booking.SeatNumbers,
		booking.UserID, booking.GuestName, booking.GuestEmail, booking.GuestPhone, booking.PassengerCount,
		booking.TotalAmount, booking.Currency, booking.PaymentMethod, booking.PaymentStatus, booking.Status,
		booking.HoldExpiresAt, booking.IdempotencyKey, booking.DeviceInfo, booking.CreatedAt, booking.UpdatedAt,
	)
	return err
}

const bookingColumns = `
	id, booking_reference, schedule_id, reservation_id, seat_numbers,
	user_id, guest_name, guest_email, guest_phone, passenger_count,
	total_amount, currency, payment_method, payment_status, status,
	hold_expires_at, idempotency_key, device_info,
	created_at, updated_at, confirmed_at, cancelled_at, completed_at`

// GetByID retrieves a booking by ID
func (r *BookingRepository) GetByID(id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	err := r.db.Get(&booking, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// GetByReference retrieves a booking by its passenger-facing reference
func (r *BookingRepository) GetByReference(reference string) (*models.Booking, error) {
	var booking models.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE booking_reference = $1`
	err := r.db.Get(&booking, query, reference)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// GetByIdempotencyKey retrieves a booking created under an idempotency key
func (r *BookingRepository) GetByIdempotencyKey(key string) (*models.Booking, error) {
	var booking models.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE idempotency_key = $1`
	err := r.db.Get(&booking, query, key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// ListByUser returns a user's bookings, newest first, with the total count
func (r *BookingRepository) ListByUser(userID uuid.UUID, limit, offset int) ([]*models.Booking, int, error) {
	var total int
	if err := r.db.Get(&total, `SELECT COUNT(*) FROM bookings WHERE user_id = $1`, userID); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	bookings := make([]*models.Booking, 0)
	if err := r.db.Select(&bookings, query, userID, limit, offset); err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// ListExpiredPending returns pending bookings whose hold window has elapsed
func (r *BookingRepository) ListExpiredPending(now time.Time, limit int) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = 'pending' AND hold_expires_at < $1
		ORDER BY hold_expires_at
		LIMIT $2`

	bookings := make([]*models.Booking, 0)
	if err := r.db.Select(&bookings, query, now, limit); err != nil {
		return nil, err
	}
	return bookings, nil
}

// ListConfirmedBySchedule returns all confirmed bookings on a schedule
func (r *BookingRepository) ListConfirmedBySchedule(scheduleID uuid.UUID) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE schedule_id = $1 AND status = 'confirmed'
		ORDER BY created_at`

	bookings := make([]*models.Booking, 0)
	if err := r.db.Select(&bookings, query, scheduleID); err != nil {
		return nil, err
	}
	return bookings, nil
}

// MarkConfirmed moves a pending booking to confirmed
func (r *BookingRepository) MarkConfirmed(id uuid.UUID, paid bool) error {
	paymentStatus := models.PaymentStatusUnpaid
	if paid {
		paymentStatus = models.PaymentStatusPaid
	}
	query := `
		UPDATE bookings
		SET status = 'confirmed',
		    payment_status = $2,
		    hold_expires_at = NULL,
		    confirmed_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`
	result, err := r.db.Exec(query, id, paymentStatus)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: booking %s is not pending", models.ErrInvalidTransition, id)
	}
	return nil
}

// MarkCancelled moves a pending or confirmed booking to cancelled
func (r *BookingRepository) MarkCancelled(id uuid.UUID) error {
	query := `
		UPDATE bookings
		SET status = 'cancelled',
		    hold_expires_at = NULL,
		    cancelled_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'confirmed')`
	result, err := r.db.Exec(query, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: booking %s cannot be cancelled", models.ErrInvalidTransition, id)
	}
	return nil
}

// MarkCompleted moves a confirmed booking to completed
func (r *BookingRepository) MarkCompleted(id uuid.UUID) error {
	query := `
		UPDATE bookings
		SET status = 'completed',
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND status = 'confirmed'`
	result, err := r.db.Exec(query, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: booking %s is not confirmed", models.ErrInvalidTransition, id)
	}
	return nil
}

// Delete removes a booking; only used to undo a declined-payment pending booking
func (r *BookingRepository) Delete(id uuid.UUID) error {
	_, err := r.db.Exec(`DELETE FROM bookings WHERE id = $1 AND status = 'pending'`, id)
	return err
}
