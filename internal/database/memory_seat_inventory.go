package database

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rwandabus/booking-api/internal/models"
)

// scheduleSeats holds one schedule's occupancy map. The mutex is the
// per-schedule serialization point: every mutation of this schedule's
// seats runs under it, and schedules never share a lock.
type scheduleSeats struct {
	mu    sync.Mutex
	seats map[int]*models.ScheduleSeat
}

// MemorySeatInventory is an in-memory SeatInventory used in tests and for
// single-process deployments without a database.
type MemorySeatInventory struct {
	mu        sync.RWMutex
	schedules map[uuid.UUID]*scheduleSeats
}

// NewMemorySeatInventory creates an empty in-memory seat inventory
func NewMemorySeatInventory() *MemorySeatInventory {
	return &MemorySeatInventory{
		schedules: make(map[uuid.UUID]*scheduleSeats),
	}
}

func (m *MemorySeatInventory) get(scheduleID uuid.UUID) *scheduleSeats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.schedules[scheduleID]
}

// InitializeSeats creates the occupancy rows 1..totalSeats for a schedule
func (m *MemorySeatInventory) InitializeSeats(scheduleID uuid.UUID, totalSeats int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schedules[scheduleID]; ok {
		return nil
	}
	seats := make(map[int]*models.ScheduleSeat, totalSeats)
	for n := 1; n <= totalSeats; n++ {
		seats[n] = &models.ScheduleSeat{
			ScheduleID: scheduleID,
			SeatNumber: n,
			State:      models.SeatStateFree,
			UpdatedAt:  time.Now(),
		}
	}
	m.schedules[scheduleID] = &scheduleSeats{seats: seats}
	return nil
}

func holdExpired(seat *models.ScheduleSeat, now time.Time) bool {
	return seat.State == models.SeatStateHeld && seat.HeldUntil != nil && seat.HeldUntil.Before(now)
}

// SnapshotAvailability returns the free/held/booked partition of a schedule
func (m *MemorySeatInventory) SnapshotAvailability(scheduleID uuid.UUID) (*models.AvailabilitySnapshot, error) {
	ss := m.get(scheduleID)
	if ss == nil {
		return nil, models.ErrScheduleNotFound
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	now := time.Now()
	snapshot := &models.AvailabilitySnapshot{ScheduleID: scheduleID}
	for n, seat := range ss.seats {
		switch {
		case seat.State == models.SeatStateFree || holdExpired(seat, now):
			snapshot.FreeSeats = append(snapshot.FreeSeats, n)
		case seat.State == models.SeatStateHeld:
			snapshot.HeldSeats = append(snapshot.HeldSeats, n)
		default:
			snapshot.BookedSeats = append(snapshot.BookedSeats, n)
		}
	}
	snapshot.FreeSeats = models.NormalizeSeatNumbers(snapshot.FreeSeats)
	snapshot.HeldSeats = models.NormalizeSeatNumbers(snapshot.HeldSeats)
	snapshot.BookedSeats = models.NormalizeSeatNumbers(snapshot.BookedSeats)
	return snapshot, nil
}

// TryHold atomically claims the seat set, all-or-nothing
func (m *MemorySeatInventory) TryHold(scheduleID uuid.UUID, seatNumbers []int, reservationID uuid.UUID, heldUntil time.Time) (*models.HoldResult, error) {
	ss := m.get(scheduleID)
	if ss == nil {
		return nil, models.ErrScheduleNotFound
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	now := time.Now()
	var conflicting []int
	for _, n := range seatNumbers {
		seat, ok := ss.seats[n]
		if !ok {
			conflicting = append(conflicting, n)
			continue
		}
		if seat.State != models.SeatStateFree && !holdExpired(seat, now) {
			conflicting = append(conflicting, n)
		}
	}
	if len(conflicting) > 0 {
		return &models.HoldResult{Held: false, ConflictingSeats: models.NormalizeSeatNumbers(conflicting)}, nil
	}

	for _, n := range seatNumbers {
		seat := ss.seats[n]
		seat.State = models.SeatStateHeld
		resID := reservationID
		until := heldUntil
		seat.HeldByReservationID = &resID
		seat.HeldUntil = &until
		seat.UpdatedAt = now
	}
	return &models.HoldResult{Held: true}, nil
}

// Commit transitions held seats to booked
func (m *MemorySeatInventory) Commit(scheduleID uuid.UUID, seatNumbers []int, reservationID uuid.UUID) error {
	ss := m.get(scheduleID)
	if ss == nil {
		return models.ErrScheduleNotFound
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	for _, n := range seatNumbers {
		seat, ok := ss.seats[n]
		if !ok || seat.State != models.SeatStateHeld ||
			seat.HeldByReservationID == nil || *seat.HeldByReservationID != reservationID {
			return models.ErrInvalidSeatState
		}
	}
	now := time.Now()
	for _, n := range seatNumbers {
		seat := ss.seats[n]
		seat.State = models.SeatStateBooked
		seat.HeldUntil = nil
		seat.UpdatedAt = now
	}
	return nil
}

// Release returns the reservation's held or booked seats to free. Seats
// claimed by another reservation are left alone. Idempotent.
func (m *MemorySeatInventory) Release(scheduleID uuid.UUID, seatNumbers []int, reservationID uuid.UUID) error {
	ss := m.get(scheduleID)
	if ss == nil {
		return models.ErrScheduleNotFound
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	now := time.Now()
	for _, n := range seatNumbers {
		seat, ok := ss.seats[n]
		if !ok || seat.State == models.SeatStateFree {
			continue
		}
		if seat.HeldByReservationID == nil || *seat.HeldByReservationID != reservationID {
			continue
		}
		seat.State = models.SeatStateFree
		seat.HeldByReservationID = nil
		seat.HeldUntil = nil
		seat.UpdatedAt = now
	}
	return nil
}

// ReleaseExpiredHolds frees every held seat whose TTL has elapsed
func (m *MemorySeatInventory) ReleaseExpiredHolds() (int, error) {
	m.mu.RLock()
	all := make([]*scheduleSeats, 0, len(m.schedules))
	for _, ss := range m.schedules {
		all = append(all, ss)
	}
	m.mu.RUnlock()

	now := time.Now()
	released := 0
	for _, ss := range all {
		ss.mu.Lock()
		for _, seat := range ss.seats {
			if holdExpired(seat, now) {
				seat.State = models.SeatStateFree
				seat.HeldByReservationID = nil
				seat.HeldUntil = nil
				seat.UpdatedAt = now
				released++
			}
		}
		ss.mu.Unlock()
	}
	return released, nil
}
