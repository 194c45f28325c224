package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// SeatState represents the occupancy state of a single seat on a schedule
type SeatState string

const (
	SeatStateFree   SeatState = "free"
	SeatStateHeld   SeatState = "held"
	SeatStateBooked SeatState = "booked"
)

// ScheduleSeat is one row of a schedule's occupancy structure.
// Seats are logical slots 1..TotalSeats, not standalone entities.
type ScheduleSeat struct {
	ScheduleID          uuid.UUID  `json:"schedule_id" db:"schedule_id"`
	SeatNumber          int        `json:"seat_number" db:"seat_number"`
	State               SeatState  `json:"state" db:"state"`
	HeldByReservationID *uuid.UUID `json:"held_by_reservation_id,omitempty" db:"held_by_reservation_id"`
	HeldUntil           *time.Time `json:"held_until,omitempty" db:"held_until"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
}

// AvailabilitySnapshot is the read-only occupancy view rendered by the seat-map UI
type AvailabilitySnapshot struct {
	ScheduleID  uuid.UUID `json:"schedule_id"`
	FreeSeats   []int     `json:"free_seats"`
	HeldSeats   []int     `json:"held_seats"`
	BookedSeats []int     `json:"booked_seats"`
}

// HoldResult reports the outcome of an all-or-nothing hold attempt
type HoldResult struct {
	Held             bool  `json:"held"`
	ConflictingSeats []int `json:"conflicting_seats,omitempty"`
}

// NormalizeSeatNumbers deduplicates and sorts a requested seat set
func NormalizeSeatNumbers(seats []int) []int {
	seen := make(map[int]struct{}, len(seats))
	result := make([]int, 0, len(seats))
	for _, n := range seats {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		result = append(result, n)
	}
	sort.Ints(result)
	return result
}
