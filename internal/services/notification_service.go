package services

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rwandabus/booking-api/internal/models"
	"github.com/rwandabus/booking-api/pkg/sms"
	"github.com/rwandabus/booking-api/pkg/validator"
)

// Notifier receives lifecycle events worth telling the passenger about.
// Implementations must not block booking flows; delivery is best-effort.
type Notifier interface {
	BookingConfirmed(booking *models.Booking)
	BookingCancelled(booking *models.Booking)
}

// SMSNotificationService sends booking notifications over SMS. Sends run
// in their own goroutine so a slow gateway never sits inside a booking
// request.
type SMSNotificationService struct {
	gateway sms.Gateway
	logger  *logrus.Logger
}

// NewSMSNotificationService creates a new SMSNotificationService
func NewSMSNotificationService(gateway sms.Gateway, logger *logrus.Logger) *SMSNotificationService {
	return &SMSNotificationService{gateway: gateway, logger: logger}
}

// BookingConfirmed sends the confirmation SMS with the booking reference
func (s *SMSNotificationService) BookingConfirmed(booking *models.Booking) {
	phone := booking.PassengerPhone()
	if phone == "" {
		return
	}
	message := fmt.Sprintf(
		"Your booking %s is confirmed. Seats: %v. Amount: %.0f %s. Safe travels!",
		booking.BookingReference, []int(booking.SeatNumbers), booking.TotalAmount, booking.Currency,
	)
	s.send(booking, phone, message)
}

// BookingCancelled tells the passenger their booking was cancelled
func (s *SMSNotificationService) BookingCancelled(booking *models.Booking) {
	phone := booking.PassengerPhone()
	if phone == "" {
		return
	}
	message := fmt.Sprintf("Your booking %s has been cancelled.", booking.BookingReference)
	s.send(booking, phone, message)
}

func (s *SMSNotificationService) send(booking *models.Booking, phone, message string) {
	if international, err := validator.NewPhoneValidator().ToInternational(phone); err == nil {
		phone = international
	}
	go func() {
		if err := s.gateway.Send(phone, message); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"booking_id":        booking.ID,
				"booking_reference": booking.BookingReference,
			}).Warn("Failed to send booking SMS")
		}
	}()
}
