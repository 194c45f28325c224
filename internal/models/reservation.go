package models

import (
	"time"

	"github.com/google/uuid"
)

// ReservationOutcome is the resolved result of an atomic seat claim
type ReservationOutcome string

const (
	ReservationGranted  ReservationOutcome = "granted"
	ReservationRejected ReservationOutcome = "rejected"
)

// GuestContact identifies an unauthenticated passenger
type GuestContact struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone" binding:"required"`
}

// Requester identifies who is asking for a reservation: a registered
// user or a guest contact triple. Exactly one must be set.
type Requester struct {
	UserID *uuid.UUID
	Guest  *GuestContact
}

// Reservation is the append-only record of one atomic seat-claim attempt.
// It is created and resolved synchronously; a granted reservation is
// consumed exactly once to produce a booking.
type Reservation struct {
	ID               uuid.UUID          `json:"id" db:"id"`
	ScheduleID       uuid.UUID          `json:"schedule_id" db:"schedule_id"`
	SeatNumbers      IntArray           `json:"seat_numbers" db:"seat_numbers"`
	UserID           *uuid.UUID         `json:"user_id,omitempty" db:"user_id"`
	GuestName        *string            `json:"guest_name,omitempty" db:"guest_name"`
	GuestEmail       *string            `json:"guest_email,omitempty" db:"guest_email"`
	GuestPhone       *string            `json:"guest_phone,omitempty" db:"guest_phone"`
	Outcome          ReservationOutcome `json:"outcome" db:"outcome"`
	RejectionReason  *string            `json:"rejection_reason,omitempty" db:"rejection_reason"`
	ConflictingSeats IntArray           `json:"conflicting_seats,omitempty" db:"conflicting_seats"`
	HeldUntil        *time.Time         `json:"held_until,omitempty" db:"held_until"`
	Consumed         bool               `json:"consumed" db:"consumed"`
	CreatedAt        time.Time          `json:"created_at" db:"created_at"`
}

// NewReservation builds an unresolved reservation for a requester.
// The ID is assigned up front so seat holds can reference it before the
// row is written.
func NewReservation(scheduleID uuid.UUID, seatNumbers []int, requester Requester) *Reservation {
	r := &Reservation{
		ID:          uuid.New(),
		ScheduleID:  scheduleID,
		SeatNumbers: NormalizeSeatNumbers(seatNumbers),
	}
	if requester.UserID != nil {
		r.UserID = requester.UserID
	} else if requester.Guest != nil {
		r.GuestName = &requester.Guest.Name
		r.GuestEmail = &requester.Guest.Email
		r.GuestPhone = &requester.Guest.Phone
	}
	return r
}
