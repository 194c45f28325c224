package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rwandabus/booking-api/internal/database"
	"github.com/rwandabus/booking-api/internal/models"
)

// ReservationService runs atomic seat claims against the inventory and
// records every attempt, granted or rejected, in the reservation ledger.
type ReservationService struct {
	inventory    database.SeatInventory
	reservations database.ReservationStore
	schedules    database.ScheduleStore
	holdWindow   time.Duration
	logger       *logrus.Logger
}

// NewReservationService creates a new ReservationService
func NewReservationService(
	inventory database.SeatInventory,
	reservations database.ReservationStore,
	schedules database.ScheduleStore,
	holdWindow time.Duration,
	logger *logrus.Logger,
) *ReservationService {
	return &ReservationService{
		inventory:    inventory,
		reservations: reservations,
		schedules:    schedules,
		holdWindow:   holdWindow,
		logger:       logger,
	}
}

// Reserve attempts to claim a seat set on a schedule. The claim is
// all-or-nothing: either every requested seat moves to held and a granted
// reservation is returned, or nothing changes and the rejection is
// recorded with the conflicting seats.
//
// The requested set is deduplicated and sorted before the claim, so the
// ledger and the hold always carry the normalized set.
func (s *ReservationService) Reserve(scheduleID uuid.UUID, seatNumbers []int, requester models.Requester) (*models.Reservation, error) {
	schedule, err := s.schedules.GetByID(scheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}
	if schedule == nil {
		return nil, models.ErrScheduleNotFound
	}
	if !schedule.IsBookable(time.Now()) {
		return nil, models.ErrScheduleNotActive
	}

	reservation := models.NewReservation(scheduleID, seatNumbers, requester)
	if len(reservation.SeatNumbers) == 0 {
		return nil, fmt.Errorf("at least one seat must be requested")
	}
	for _, n := range reservation.SeatNumbers {
		if n < 1 || n > schedule.TotalSeats {
			return nil, fmt.Errorf("seat %d does not exist on this schedule (1-%d)", n, schedule.TotalSeats)
		}
	}

	heldUntil := time.Now().Add(s.holdWindow)
	result, err := s.inventory.TryHold(scheduleID, reservation.SeatNumbers, reservation.ID, heldUntil)
	if err != nil {
		return nil, fmt.Errorf("failed to hold seats: %w", err)
	}

	if !result.Held {
		reason := "requested seats are held or booked"
		reservation.Outcome = models.ReservationRejected
		reservation.RejectionReason = &reason
		reservation.ConflictingSeats = result.ConflictingSeats
		if err := s.reservations.Create(reservation); err != nil {
			s.logger.WithError(err).WithField("schedule_id", scheduleID).
				Error("Failed to record rejected reservation")
		}
		return nil, &models.SeatsUnavailableError{
			ScheduleID:       scheduleID,
			ConflictingSeats: result.ConflictingSeats,
		}
	}

	reservation.Outcome = models.ReservationGranted
	reservation.HeldUntil = &heldUntil
	if err := s.reservations.Create(reservation); err != nil {
		// the hold is live but the ledger write failed; undo the hold so
		// no seats are stranded behind an unrecorded reservation
		if relErr := s.inventory.Release(scheduleID, reservation.SeatNumbers, reservation.ID); relErr != nil {
			s.logger.WithError(relErr).WithFields(logrus.Fields{
				"schedule_id":    scheduleID,
				"seat_numbers":   reservation.SeatNumbers,
				"reservation_id": reservation.ID,
			}).Error("Failed to release hold after ledger write failure")
		}
		return nil, fmt.Errorf("failed to record reservation: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"reservation_id": reservation.ID,
		"schedule_id":    scheduleID,
		"seat_numbers":   reservation.SeatNumbers,
		"held_until":     heldUntil,
	}).Info("Reservation granted")

	return reservation, nil
}

// Consume marks a granted reservation as consumed by a booking. A
// reservation can be consumed exactly once.
func (s *ReservationService) Consume(reservationID uuid.UUID) error {
	return s.reservations.MarkConsumed(reservationID)
}

// ReleaseReservation frees the seats held under a reservation. Used when
// booking creation fails after the hold was granted.
func (s *ReservationService) ReleaseReservation(reservation *models.Reservation) error {
	return s.inventory.Release(reservation.ScheduleID, reservation.SeatNumbers, reservation.ID)
}

// PurgeRejected deletes rejected ledger entries older than the cutoff and
// returns the number removed. Granted reservations are never purged.
func (s *ReservationService) PurgeRejected(olderThan time.Duration) (int, error) {
	return s.reservations.DeleteRejectedBefore(time.Now().Add(-olderThan))
}
