package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ScheduleStatus represents the status of a schedule
type ScheduleStatus string

const (
	ScheduleStatusActive    ScheduleStatus = "active"
	ScheduleStatusCancelled ScheduleStatus = "cancelled"
	ScheduleStatusCompleted ScheduleStatus = "completed"
)

// Schedule represents one bus running one route at a specific departure time
type Schedule struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	RouteID     uuid.UUID      `json:"route_id" db:"route_id"`
	BusID       uuid.UUID      `json:"bus_id" db:"bus_id"`
	DepartureAt time.Time      `json:"departure_at" db:"departure_at"`
	ArrivalAt   time.Time      `json:"arrival_at" db:"arrival_at"`
	SeatPrice   float64        `json:"seat_price" db:"seat_price"`
	TotalSeats  int            `json:"total_seats" db:"total_seats"`
	Status      ScheduleStatus `json:"status" db:"status"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// IsBookable reports whether new bookings may be taken against this schedule
func (s *Schedule) IsBookable(now time.Time) bool {
	return s.Status == ScheduleStatusActive && s.DepartureAt.After(now)
}

// Validate checks the schedule's structural invariants
func (s *Schedule) Validate() error {
	if !s.ArrivalAt.After(s.DepartureAt) {
		return fmt.Errorf("arrival time must be after departure time")
	}
	if s.TotalSeats < 1 {
		return fmt.Errorf("total seats must be at least 1")
	}
	if s.SeatPrice < 0 {
		return fmt.Errorf("seat price cannot be negative")
	}
	return nil
}

// CreateScheduleRequest is used by operator tooling to register a departure
type CreateScheduleRequest struct {
	RouteID     string    `json:"route_id" binding:"required,uuid"`
	BusID       string    `json:"bus_id" binding:"required,uuid"`
	DepartureAt time.Time `json:"departure_at" binding:"required"`
	ArrivalAt   time.Time `json:"arrival_at" binding:"required"`
	SeatPrice   float64   `json:"seat_price" binding:"required,gt=0"`
	TotalSeats  int       `json:"total_seats" binding:"required,min=1"`
}
