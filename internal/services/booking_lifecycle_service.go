package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rwandabus/booking-api/internal/config"
	"github.com/rwandabus/booking-api/internal/database"
	"github.com/rwandabus/booking-api/internal/models"
)

// BookingLifecycleService drives bookings through their state machine and
// keeps the seat inventory consistent with every transition.
type BookingLifecycleService struct {
	bookings  database.BookingStore
	schedules database.ScheduleStore
	inventory database.SeatInventory
	cfg       config.BookingConfig
	logger    *logrus.Logger
}

// NewBookingLifecycleService creates a new BookingLifecycleService
func NewBookingLifecycleService(
	bookings database.BookingStore,
	schedules database.ScheduleStore,
	inventory database.SeatInventory,
	cfg config.BookingConfig,
	logger *logrus.Logger,
) *BookingLifecycleService {
	return &BookingLifecycleService{
		bookings:  bookings,
		schedules: schedules,
		inventory: inventory,
		cfg:       cfg,
		logger:    logger,
	}
}

// Confirm commits the booking's held seats and moves it to confirmed.
// Seats are committed first so a crash between the two steps leaves the
// seats booked under a still-pending booking, which an operator can
// reconcile, rather than a confirmed booking with no seats.
func (s *BookingLifecycleService) Confirm(booking *models.Booking, paid bool) error {
	if err := s.inventory.Commit(booking.ScheduleID, booking.SeatNumbers, booking.ReservationID); err != nil {
		return fmt.Errorf("failed to commit seats: %w", err)
	}
	if err := s.bookings.MarkConfirmed(booking.ID, paid); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"booking_id":   booking.ID,
			"schedule_id":  booking.ScheduleID,
			"seat_numbers": booking.SeatNumbers,
		}).Error("Seats committed but booking confirmation failed")
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":        booking.ID,
		"booking_reference": booking.BookingReference,
		"paid":              paid,
	}).Info("Booking confirmed")
	return nil
}

// Cancel cancels a pending or confirmed booking and frees its seats.
// Passenger cancellations are refused inside the cutoff window before
// departure; force skips that check for operator-initiated cancellations.
func (s *BookingLifecycleService) Cancel(booking *models.Booking, force bool) error {
	if booking.Status.IsTerminal() {
		return fmt.Errorf("%w: booking %s is %s", models.ErrInvalidTransition, booking.ID, booking.Status)
	}

	if !force {
		schedule, err := s.schedules.GetByID(booking.ScheduleID)
		if err != nil {
			return fmt.Errorf("failed to load schedule: %w", err)
		}
		if schedule == nil {
			return models.ErrScheduleNotFound
		}
		// exactly at the cutoff counts as inside the window
		if time.Until(schedule.DepartureAt) <= s.cfg.CancellationCutoff {
			return models.ErrCancellationWindowClosed
		}
	}

	if err := s.bookings.MarkCancelled(booking.ID); err != nil {
		return err
	}
	if err := s.inventory.Release(booking.ScheduleID, booking.SeatNumbers, booking.ReservationID); err != nil {
		// the booking is cancelled; a stuck seat release must not undo
		// that, so log with enough context to free the seats by hand
		s.logger.WithError(err).WithFields(logrus.Fields{
			"booking_id":   booking.ID,
			"schedule_id":  booking.ScheduleID,
			"seat_numbers": booking.SeatNumbers,
		}).Error("Failed to release seats for cancelled booking")
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":        booking.ID,
		"booking_reference": booking.BookingReference,
		"forced":            force,
	}).Info("Booking cancelled")
	return nil
}

// ExpireHold cancels a pending booking whose hold window has elapsed and
// frees its seats. Losing the race against a concurrent confirmation is
// expected and treated as a no-op.
func (s *BookingLifecycleService) ExpireHold(booking *models.Booking) error {
	if err := s.bookings.MarkCancelled(booking.ID); err != nil {
		s.logger.WithFields(logrus.Fields{
			"booking_id": booking.ID,
		}).Debug("Hold expiry lost the race, booking already transitioned")
		return nil
	}
	if err := s.inventory.Release(booking.ScheduleID, booking.SeatNumbers, booking.ReservationID); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"booking_id":   booking.ID,
			"schedule_id":  booking.ScheduleID,
			"seat_numbers": booking.SeatNumbers,
		}).Error("Failed to release seats for expired hold")
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":        booking.ID,
		"booking_reference": booking.BookingReference,
		"seat_numbers":      booking.SeatNumbers,
	}).Info("Expired hold released")
	return nil
}

// Complete moves a confirmed booking to completed after travel
func (s *BookingLifecycleService) Complete(bookingID uuid.UUID) error {
	return s.bookings.MarkCompleted(bookingID)
}

// ReviewEligibility reports whether a booking may receive a review:
// it must be completed and within the review window after arrival.
func (s *BookingLifecycleService) ReviewEligibility(booking *models.Booking) (*models.BookingReviewEligibility, error) {
	eligibility := &models.BookingReviewEligibility{BookingID: booking.ID}

	if booking.Status != models.BookingStatusCompleted {
		eligibility.Reason = fmt.Sprintf("booking is %s, reviews require a completed trip", booking.Status)
		return eligibility, nil
	}

	schedule, err := s.schedules.GetByID(booking.ScheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}
	if schedule == nil {
		return nil, models.ErrScheduleNotFound
	}

	if time.Since(schedule.ArrivalAt) > s.cfg.ReviewWindow {
		eligibility.Reason = "review window has closed"
		return eligibility, nil
	}

	eligibility.Eligible = true
	return eligibility, nil
}
