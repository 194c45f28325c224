package models

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel errors for the booking engine. Seat conflicts and window
// violations are expected, user-facing outcomes; InvalidTransition and
// InvalidSeatState indicate a caller bug or a lost race and are logged
// with full context where they surface.
var (
	ErrScheduleNotFound         = errors.New("schedule not found")
	ErrScheduleNotActive        = errors.New("schedule is not open for booking")
	ErrBookingNotFound          = errors.New("booking not found")
	ErrCancellationWindowClosed = errors.New("bookings can only be cancelled more than 24 hours before departure")
	ErrInvalidTransition        = errors.New("invalid booking status transition")
	ErrInvalidSeatState         = errors.New("seat is not in the expected state")
	ErrReservationConsumed      = errors.New("reservation already consumed")
	ErrNotBookingOwner          = errors.New("booking belongs to another user")
)

// SeatsUnavailableError is the recoverable rejection returned when a seat
// claim conflicts with existing holds or bookings. Callers should re-query
// availability and let the passenger pick again.
type SeatsUnavailableError struct {
	ScheduleID       uuid.UUID
	ConflictingSeats []int
}

func (e *SeatsUnavailableError) Error() string {
	return fmt.Sprintf("seats %v are no longer available on schedule %s", e.ConflictingSeats, e.ScheduleID)
}

// PaymentFailedError is returned when the payment capability declines a
// charge. The hold is released and no booking survives; the caller may
// retry with a fresh request.
type PaymentFailedError struct {
	Reason string
}

func (e *PaymentFailedError) Error() string {
	return fmt.Sprintf("payment declined: %s", e.Reason)
}
