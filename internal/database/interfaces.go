package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/rwandabus/booking-api/internal/models"
)

// SeatInventory is the authoritative occupancy view per schedule. Mutation
// of a schedule's seat set is serialized per schedule; no two TryHold calls
// on the same schedule can interleave, and holds on different schedules
// never block each other.
type SeatInventory interface {
	// InitializeSeats creates the occupancy rows 1..totalSeats for a schedule.
	InitializeSeats(scheduleID uuid.UUID, totalSeats int) error

	// SnapshotAvailability returns the free/held/booked partition. Holds past
	// their TTL count as free. Fails with ErrScheduleNotFound for an unknown
	// schedule.
	SnapshotAvailability(scheduleID uuid.UUID) (*models.AvailabilitySnapshot, error)

	// TryHold atomically transitions every seat in the set from free to held
	// only if all of them are currently free (expired holds count as free).
	// All-or-nothing: on rejection no seat changes state and the conflicting
	// seats are reported.
	TryHold(scheduleID uuid.UUID, seatNumbers []int, reservationID uuid.UUID, heldUntil time.Time) (*models.HoldResult, error)

	// Commit transitions held seats to booked. Fails with ErrInvalidSeatState
	// if any seat is not held by the given reservation.
	Commit(scheduleID uuid.UUID, seatNumbers []int, reservationID uuid.UUID) error

	// Release transitions seats held or booked by the given reservation back
	// to free. Seats claimed by another reservation are left alone, so a
	// sweep of a stale booking can never free a newer live hold. Idempotent:
	// releasing an already-free seat is a no-op.
	Release(scheduleID uuid.UUID, seatNumbers []int, reservationID uuid.UUID) error

	// ReleaseExpiredHolds frees every held seat whose TTL has elapsed,
	// across all schedules. Returns the number of seats released.
	ReleaseExpiredHolds() (int, error)
}

// ScheduleStore is the schedule read/write boundary the engine consumes.
// Schedule CRUD itself belongs to the operator tooling.
type ScheduleStore interface {
	Create(schedule *models.Schedule) error
	GetByID(id uuid.UUID) (*models.Schedule, error)
	ListActive(now time.Time, limit, offset int) ([]*models.Schedule, error)
	// ListArrivedBefore returns active schedules whose arrival time has passed.
	ListArrivedBefore(cutoff time.Time, limit int) ([]*models.Schedule, error)
	MarkCompleted(id uuid.UUID) error
}

// ReservationStore is the append-only reservation ledger.
type ReservationStore interface {
	Create(reservation *models.Reservation) error
	GetByID(id uuid.UUID) (*models.Reservation, error)
	// MarkConsumed flags a granted reservation as consumed. Fails with
	// ErrReservationConsumed if it already was.
	MarkConsumed(id uuid.UUID) error
	// DeleteRejectedBefore purges rejected entries older than the cutoff.
	DeleteRejectedBefore(cutoff time.Time) (int, error)
}

// BookingStore persists bookings. Status mutations are conditional updates
// guarded by the current status so racing transitions lose cleanly.
type BookingStore interface {
	Create(booking *models.Booking) error
	GetByID(id uuid.UUID) (*models.Booking, error)
	GetByReference(reference string) (*models.Booking, error)
	GetByIdempotencyKey(key string) (*models.Booking, error)
	ListByUser(userID uuid.UUID, limit, offset int) ([]*models.Booking, int, error)
	ListExpiredPending(now time.Time, limit int) ([]*models.Booking, error)
	ListConfirmedBySchedule(scheduleID uuid.UUID) ([]*models.Booking, error)

	// MarkConfirmed moves a pending booking to confirmed and records the
	// payment status. Fails with ErrInvalidTransition if the booking is no
	// longer pending.
	MarkConfirmed(id uuid.UUID, paid bool) error
	// MarkCancelled moves a pending or confirmed booking to cancelled.
	MarkCancelled(id uuid.UUID) error
	// MarkCompleted moves a confirmed booking to completed.
	MarkCompleted(id uuid.UUID) error
	// Delete removes a booking entirely; used only to undo a pending
	// booking whose payment was declined.
	Delete(id uuid.UUID) error

	ReferenceExists(reference string) (bool, error)
	// GenerateBookingReference produces a reference not yet assigned to
	// any booking, in the passenger-facing RB-XXXXXX format.
	GenerateBookingReference() (string, error)
}
