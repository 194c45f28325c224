package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rwandabus/booking-api/internal/database"
	"github.com/rwandabus/booking-api/internal/models"
)

// ScheduleService exposes the schedule catalog and its occupancy views
type ScheduleService struct {
	schedules database.ScheduleStore
	inventory database.SeatInventory
	logger    *logrus.Logger
}

// NewScheduleService creates a new ScheduleService
func NewScheduleService(schedules database.ScheduleStore, inventory database.SeatInventory, logger *logrus.Logger) *ScheduleService {
	return &ScheduleService{schedules: schedules, inventory: inventory, logger: logger}
}

// CreateSchedule registers a departure and initializes its seat inventory
func (s *ScheduleService) CreateSchedule(req *models.CreateScheduleRequest) (*models.Schedule, error) {
	routeID, err := uuid.Parse(req.RouteID)
	if err != nil {
		return nil, fmt.Errorf("invalid route id: %w", err)
	}
	busID, err := uuid.Parse(req.BusID)
	if err != nil {
		return nil, fmt.Errorf("invalid bus id: %w", err)
	}

	schedule := &models.Schedule{
		ID:          uuid.New(),
		RouteID:     routeID,
		BusID:       busID,
		DepartureAt: req.DepartureAt,
		ArrivalAt:   req.ArrivalAt,
		SeatPrice:   req.SeatPrice,
		TotalSeats:  req.TotalSeats,
		Status:      models.ScheduleStatusActive,
	}

	if err := s.schedules.Create(schedule); err != nil {
		return nil, err
	}
	if err := s.inventory.InitializeSeats(schedule.ID, schedule.TotalSeats); err != nil {
		return nil, fmt.Errorf("failed to initialize seat inventory: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"schedule_id": schedule.ID,
		"route_id":    routeID,
		"total_seats": schedule.TotalSeats,
		"departure":   schedule.DepartureAt,
	}).Info("Schedule created")

	return schedule, nil
}

// GetSchedule returns one schedule by ID
func (s *ScheduleService) GetSchedule(id uuid.UUID) (*models.Schedule, error) {
	schedule, err := s.schedules.GetByID(id)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		return nil, models.ErrScheduleNotFound
	}
	return schedule, nil
}

// ListUpcoming returns active schedules departing after now
func (s *ScheduleService) ListUpcoming(limit, offset int) ([]*models.Schedule, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.schedules.ListActive(time.Now(), limit, offset)
}

// Availability returns the current free/held/booked seat partition
func (s *ScheduleService) Availability(scheduleID uuid.UUID) (*models.AvailabilitySnapshot, error) {
	return s.inventory.SnapshotAvailability(scheduleID)
}
