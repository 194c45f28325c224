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

// BookingOrchestratorService sequences a booking end to end: reserve the
// seats, record the pending booking, dispatch payment, then confirm or
// unwind. Payment always runs against an already-granted hold, never
// while seat state is being decided.
type BookingOrchestratorService struct {
	reservations *ReservationService
	lifecycle    *BookingLifecycleService
	bookings     database.BookingStore
	schedules    database.ScheduleStore
	gateway      PaymentGateway
	notifier     Notifier
	cfg          config.BookingConfig
	logger       *logrus.Logger
}

// NewBookingOrchestratorService creates a new BookingOrchestratorService
func NewBookingOrchestratorService(
	reservations *ReservationService,
	lifecycle *BookingLifecycleService,
	bookings database.BookingStore,
	schedules database.ScheduleStore,
	gateway PaymentGateway,
	notifier Notifier,
	cfg config.BookingConfig,
	logger *logrus.Logger,
) *BookingOrchestratorService {
	return &BookingOrchestratorService{
		reservations: reservations,
		lifecycle:    lifecycle,
		bookings:     bookings,
		schedules:    schedules,
		gateway:      gateway,
		notifier:     notifier,
		cfg:          cfg,
		logger:       logger,
	}
}

// CreateBooking runs the full booking flow for a registered user or guest.
// Replays under the same idempotency key return the original booking
// instead of claiming seats again.
func (s *BookingOrchestratorService) CreateBooking(req *models.CreateBookingRequest, requester models.Requester, deviceInfo models.DeviceInfo) (*models.Booking, error) {
	if req.IdempotencyKey != nil && *req.IdempotencyKey != "" {
		existing, err := s.bookings.GetByIdempotencyKey(*req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency key: %w", err)
		}
		if existing != nil {
			s.logger.WithFields(logrus.Fields{
				"booking_id":      existing.ID,
				"idempotency_key": *req.IdempotencyKey,
			}).Info("Replayed booking request, returning existing booking")
			return existing, nil
		}
	}

	if err := req.Validate(requester.UserID != nil); err != nil {
		return nil, err
	}

	scheduleID, err := uuid.Parse(req.ScheduleID)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule id: %w", err)
	}

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

	reservation, err := s.reservations.Reserve(scheduleID, req.SeatNumbers, requester)
	if err != nil {
		return nil, err
	}

	reference, err := s.bookings.GenerateBookingReference()
	if err != nil {
		s.unwindReservation(reservation)
		return nil, fmt.Errorf("failed to generate booking reference: %w", err)
	}

	booking := &models.Booking{
		ID:               uuid.New(),
		BookingReference: reference,
		ScheduleID:       scheduleID,
		ReservationID:    reservation.ID,
		SeatNumbers:      reservation.SeatNumbers,
		UserID:           reservation.UserID,
		GuestName:        reservation.GuestName,
		GuestEmail:       reservation.GuestEmail,
		GuestPhone:       reservation.GuestPhone,
		PassengerCount:   len(reservation.SeatNumbers),
		TotalAmount:      schedule.SeatPrice * float64(len(reservation.SeatNumbers)),
		Currency:         s.cfg.Currency,
		PaymentMethod:    req.PaymentMethod,
		PaymentStatus:    models.PaymentStatusUnpaid,
		Status:           models.BookingStatusPending,
		HoldExpiresAt:    reservation.HeldUntil,
		IdempotencyKey:   req.IdempotencyKey,
		DeviceInfo:       deviceInfo,
	}

	if err := s.bookings.Create(booking); err != nil {
		s.unwindReservation(reservation)
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	if err := s.reservations.Consume(reservation.ID); err != nil {
		s.unwindBooking(booking, reservation)
		return nil, fmt.Errorf("failed to consume reservation: %w", err)
	}

	switch req.PaymentMethod {
	case models.PaymentMethodPayLater:
		// seats are committed immediately; the fare is settled on boarding
		if err := s.lifecycle.Confirm(booking, false); err != nil {
			s.unwindBooking(booking, reservation)
			return nil, err
		}

	case models.PaymentMethodMobileMoney, models.PaymentMethodCard:
		result, err := s.gateway.Charge(ChargeRequest{
			BookingID: booking.ID,
			Amount:    booking.TotalAmount,
			Currency:  booking.Currency,
			Method:    req.PaymentMethod,
			Phone:     booking.PassengerPhone(),
		})
		if err != nil {
			s.unwindBooking(booking, reservation)
			return nil, fmt.Errorf("payment gateway error: %w", err)
		}
		if !result.Approved {
			s.unwindBooking(booking, reservation)
			return nil, &models.PaymentFailedError{Reason: result.DeclineReason}
		}
		if err := s.lifecycle.Confirm(booking, true); err != nil {
			s.unwindBooking(booking, reservation)
			return nil, err
		}
	}

	confirmed, err := s.bookings.GetByID(booking.ID)
	if err != nil || confirmed == nil {
		return booking, nil
	}

	s.notifier.BookingConfirmed(confirmed)

	s.logger.WithFields(logrus.Fields{
		"booking_id":        confirmed.ID,
		"booking_reference": confirmed.BookingReference,
		"schedule_id":       confirmed.ScheduleID,
		"seat_numbers":      confirmed.SeatNumbers,
		"payment_method":    confirmed.PaymentMethod,
	}).Info("Booking created")

	return confirmed, nil
}

// unwindReservation frees a granted hold when no booking could be created
func (s *BookingOrchestratorService) unwindReservation(reservation *models.Reservation) {
	if err := s.reservations.ReleaseReservation(reservation); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"reservation_id": reservation.ID,
			"schedule_id":    reservation.ScheduleID,
			"seat_numbers":   reservation.SeatNumbers,
		}).Error("Failed to release reservation during unwind")
	}
}

// unwindBooking deletes a pending booking and frees its seats after a
// declined payment or a downstream failure. No booking survives a
// declined charge.
func (s *BookingOrchestratorService) unwindBooking(booking *models.Booking, reservation *models.Reservation) {
	if err := s.bookings.Delete(booking.ID); err != nil {
		s.logger.WithError(err).WithField("booking_id", booking.ID).
			Error("Failed to delete booking during unwind")
	}
	s.unwindReservation(reservation)
}

// CancelBooking cancels a booking on behalf of its owner or an operator.
// Operators skip the departure-cutoff check.
func (s *BookingOrchestratorService) CancelBooking(bookingID uuid.UUID, actor models.Actor) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	if booking == nil {
		return nil, models.ErrBookingNotFound
	}
	if !actor.IsAdmin && !booking.IsOwnedBy(actor.UserID) {
		return nil, models.ErrNotBookingOwner
	}

	if err := s.lifecycle.Cancel(booking, actor.IsAdmin); err != nil {
		return nil, err
	}

	cancelled, err := s.bookings.GetByID(bookingID)
	if err != nil || cancelled == nil {
		return booking, nil
	}
	s.notifier.BookingCancelled(cancelled)
	return cancelled, nil
}

// GetBooking returns a booking visible to the actor
func (s *BookingOrchestratorService) GetBooking(bookingID uuid.UUID, actor models.Actor) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	if booking == nil {
		return nil, models.ErrBookingNotFound
	}
	if !actor.IsAdmin && !booking.IsOwnedBy(actor.UserID) {
		return nil, models.ErrNotBookingOwner
	}
	return booking, nil
}

// GetBookingByReference looks a booking up by its passenger-facing
// reference. References are unguessable enough to serve guest lookups.
func (s *BookingOrchestratorService) GetBookingByReference(reference string) (*models.Booking, error) {
	booking, err := s.bookings.GetByReference(reference)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	if booking == nil {
		return nil, models.ErrBookingNotFound
	}
	return booking, nil
}

// ListBookingsForUser returns a page of the user's bookings, newest first
func (s *BookingOrchestratorService) ListBookingsForUser(userID uuid.UUID, limit, offset int) (*models.BookingListResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	bookings, total, err := s.bookings.ListByUser(userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return &models.BookingListResponse{
		Bookings: bookings,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	}, nil
}

// ReviewEligibility reports whether the actor's booking can be reviewed
func (s *BookingOrchestratorService) ReviewEligibility(bookingID uuid.UUID, actor models.Actor) (*models.BookingReviewEligibility, error) {
	booking, err := s.GetBooking(bookingID, actor)
	if err != nil {
		return nil, err
	}
	return s.lifecycle.ReviewEligibility(booking)
}
