package database

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rwandabus/booking-api/internal/models"
)

// MemoryScheduleStore is an in-memory ScheduleStore for tests and
// single-process deployments.
type MemoryScheduleStore struct {
	mu        sync.RWMutex
	schedules map[uuid.UUID]*models.Schedule
}

// NewMemoryScheduleStore creates an empty in-memory schedule store
func NewMemoryScheduleStore() *MemoryScheduleStore {
	return &MemoryScheduleStore{schedules: make(map[uuid.UUID]*models.Schedule)}
}

func (m *MemoryScheduleStore) Create(schedule *models.Schedule) error {
	if err := schedule.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if schedule.ID == uuid.Nil {
		schedule.ID = uuid.New()
	}
	if schedule.Status == "" {
		schedule.Status = models.ScheduleStatusActive
	}
	schedule.CreatedAt = time.Now()
	schedule.UpdatedAt = schedule.CreatedAt
	cp := *schedule
	m.schedules[schedule.ID] = &cp
	return nil
}

func (m *MemoryScheduleStore) GetByID(id uuid.UUID) (*models.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.schedules[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryScheduleStore) ListActive(now time.Time, limit, offset int) ([]*models.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Schedule
	for _, s := range m.schedules {
		if s.Status == models.ScheduleStatusActive && s.DepartureAt.After(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DepartureAt.Before(out[j].DepartureAt) })
	if offset >= len(out) {
		return []*models.Schedule{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryScheduleStore) ListArrivedBefore(cutoff time.Time, limit int) ([]*models.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Schedule
	for _, s := range m.schedules {
		if s.Status == models.ScheduleStatusActive && s.ArrivalAt.Before(cutoff) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArrivalAt.Before(out[j].ArrivalAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryScheduleStore) MarkCompleted(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[id]
	if !ok || s.Status != models.ScheduleStatusActive {
		return fmt.Errorf("schedule %s is not active", id)
	}
	s.Status = models.ScheduleStatusCompleted
	s.UpdatedAt = time.Now()
	return nil
}

// MemoryReservationStore is an in-memory ReservationStore
type MemoryReservationStore struct {
	mu           sync.Mutex
	reservations map[uuid.UUID]*models.Reservation
}

// NewMemoryReservationStore creates an empty in-memory reservation ledger
func NewMemoryReservationStore() *MemoryReservationStore {
	return &MemoryReservationStore{reservations: make(map[uuid.UUID]*models.Reservation)}
}

func (m *MemoryReservationStore) Create(reservation *models.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if reservation.ID == uuid.Nil {
		reservation.ID = uuid.New()
	}
	reservation.CreatedAt = time.Now()
	cp := *reservation
	m.reservations[reservation.ID] = &cp
	return nil
}

func (m *MemoryReservationStore) GetByID(id uuid.UUID) (*models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryReservationStore) MarkConsumed(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return fmt.Errorf("reservation %s not found", id)
	}
	if r.Outcome != models.ReservationGranted || r.Consumed {
		return fmt.Errorf("%w: %s", models.ErrReservationConsumed, id)
	}
	r.Consumed = true
	return nil
}

func (m *MemoryReservationStore) DeleteRejectedBefore(cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for id, r := range m.reservations {
		if r.Outcome == models.ReservationRejected && r.CreatedAt.Before(cutoff) {
			delete(m.reservations, id)
			deleted++
		}
	}
	return deleted, nil
}

// MemoryBookingStore is an in-memory BookingStore
type MemoryBookingStore struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*models.Booking
}

// NewMemoryBookingStore creates an empty in-memory booking store
func NewMemoryBookingStore() *MemoryBookingStore {
	return &MemoryBookingStore{bookings: make(map[uuid.UUID]*models.Booking)}
}

func (m *MemoryBookingStore) Create(booking *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = booking.CreatedAt
	cp := *booking
	m.bookings[booking.ID] = &cp
	return nil
}

func (m *MemoryBookingStore) GetByID(id uuid.UUID) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (m *MemoryBookingStore) GetByReference(reference string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.BookingReference == reference {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryBookingStore) GetByIdempotencyKey(key string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.IdempotencyKey != nil && *b.IdempotencyKey == key {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryBookingStore) ListByUser(userID uuid.UUID, limit, offset int) ([]*models.Booking, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Booking
	for _, b := range m.bookings {
		if b.UserID != nil && *b.UserID == userID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	if offset >= len(out) {
		return []*models.Booking{}, total, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (m *MemoryBookingStore) ListExpiredPending(now time.Time, limit int) ([]*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Booking
	for _, b := range m.bookings {
		if b.Status == models.BookingStatusPending && b.HoldExpiresAt != nil && b.HoldExpiresAt.Before(now) {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HoldExpiresAt.Before(*out[j].HoldExpiresAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryBookingStore) ListConfirmedBySchedule(scheduleID uuid.UUID) ([]*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Booking
	for _, b := range m.bookings {
		if b.ScheduleID == scheduleID && b.Status == models.BookingStatusConfirmed {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryBookingStore) MarkConfirmed(id uuid.UUID, paid bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.Status != models.BookingStatusPending {
		return fmt.Errorf("%w: booking %s is not pending", models.ErrInvalidTransition, id)
	}
	now := time.Now()
	b.Status = models.BookingStatusConfirmed
	if paid {
		b.PaymentStatus = models.PaymentStatusPaid
	} else {
		b.PaymentStatus = models.PaymentStatusUnpaid
	}
	b.HoldExpiresAt = nil
	b.ConfirmedAt = &now
	b.UpdatedAt = now
	return nil
}

func (m *MemoryBookingStore) MarkCancelled(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || !b.Status.CanTransitionTo(models.BookingStatusCancelled) {
		return fmt.Errorf("%w: booking %s cannot be cancelled", models.ErrInvalidTransition, id)
	}
	now := time.Now()
	b.Status = models.BookingStatusCancelled
	b.HoldExpiresAt = nil
	b.CancelledAt = &now
	b.UpdatedAt = now
	return nil
}

func (m *MemoryBookingStore) MarkCompleted(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.Status != models.BookingStatusConfirmed {
		return fmt.Errorf("%w: booking %s is not confirmed", models.ErrInvalidTransition, id)
	}
	now := time.Now()
	b.Status = models.BookingStatusCompleted
	b.CompletedAt = &now
	b.UpdatedAt = now
	return nil
}

func (m *MemoryBookingStore) Delete(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if ok && b.Status == models.BookingStatusPending {
		delete(m.bookings, id)
	}
	return nil
}

func (m *MemoryBookingStore) ReferenceExists(reference string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.BookingReference == reference {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryBookingStore) GenerateBookingReference() (string, error) {
	return generateBookingReference(m.ReferenceExists)
}
