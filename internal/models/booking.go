package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rwandabus/booking-api/pkg/validator"
)

// BookingStatus represents the lifecycle state of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// IsTerminal reports whether the status accepts no further transitions
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

// CanTransitionTo reports whether the state machine allows moving to next
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	switch s {
	case BookingStatusPending:
		return next == BookingStatusConfirmed || next == BookingStatusCancelled
	case BookingStatusConfirmed:
		return next == BookingStatusCompleted || next == BookingStatusCancelled
	default:
		return false
	}
}

// PaymentMethod is the tagged payment variant dispatched once at booking time
type PaymentMethod string

const (
	PaymentMethodMobileMoney PaymentMethod = "mobile_money"
	PaymentMethodCard        PaymentMethod = "card"
	PaymentMethodPayLater    PaymentMethod = "pay_later"
)

// IsValid reports whether the method is one of the supported variants
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodMobileMoney, PaymentMethodCard, PaymentMethodPayLater:
		return true
	}
	return false
}

// PaymentStatus represents whether a booking has been paid for
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
)

// Booking is the durable record a passenger holds for a seat claim
type Booking struct {
	ID               uuid.UUID     `json:"id" db:"id"`
	BookingReference string        `json:"booking_reference" db:"booking_reference"`
	ScheduleID       uuid.UUID     `json:"schedule_id" db:"schedule_id"`
	ReservationID    uuid.UUID     `json:"reservation_id" db:"reservation_id"`
	SeatNumbers      IntArray      `json:"seat_numbers" db:"seat_numbers"`
	UserID           *uuid.UUID    `json:"user_id,omitempty" db:"user_id"`
	GuestName        *string       `json:"guest_name,omitempty" db:"guest_name"`
	GuestEmail       *string       `json:"guest_email,omitempty" db:"guest_email"`
	GuestPhone       *string       `json:"guest_phone,omitempty" db:"guest_phone"`
	PassengerCount   int           `json:"passenger_count" db:"passenger_count"`
	TotalAmount      float64       `json:"total_amount" db:"total_amount"`
	Currency         string        `json:"currency" db:"currency"`
	PaymentMethod    PaymentMethod `json:"payment_method" db:"payment_method"`
	PaymentStatus    PaymentStatus `json:"payment_status" db:"payment_status"`
	Status           BookingStatus `json:"status" db:"status"`
	HoldExpiresAt    *time.Time    `json:"hold_expires_at,omitempty" db:"hold_expires_at"`
	IdempotencyKey   *string       `json:"idempotency_key,omitempty" db:"idempotency_key"`
	DeviceInfo       DeviceInfo    `json:"device_info,omitempty" db:"device_info"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
	ConfirmedAt      *time.Time    `json:"confirmed_at,omitempty" db:"confirmed_at"`
	CancelledAt      *time.Time    `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty" db:"completed_at"`
}

// IsOwnedBy reports whether the booking belongs to the given registered user
func (b *Booking) IsOwnedBy(userID uuid.UUID) bool {
	return b.UserID != nil && *b.UserID == userID
}

// PassengerPhone returns the phone number notifications should go to, if any
func (b *Booking) PassengerPhone() string {
	if b.GuestPhone != nil {
		return *b.GuestPhone
	}
	return ""
}

// Actor is the authorization result consumed by the orchestrator for
// cancellation requests: who is asking and whether they hold the admin role.
type Actor struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// CreateBookingRequest is the booking form / guest checkout payload
type CreateBookingRequest struct {
	ScheduleID     string        `json:"schedule_id" binding:"required,uuid"`
	SeatNumbers    []int         `json:"seat_numbers" binding:"required,min=1"`
	PassengerCount int           `json:"passenger_count" binding:"required,min=1"`
	PaymentMethod  PaymentMethod `json:"payment_method" binding:"required"`
	Guest          *GuestContact `json:"guest,omitempty"`
	IdempotencyKey *string       `json:"idempotency_key,omitempty"`
}

// Validate applies the checks gin binding tags cannot express
func (r *CreateBookingRequest) Validate(authenticated bool) error {
	if !r.PaymentMethod.IsValid() {
		return fmt.Errorf("unsupported payment method: %s", r.PaymentMethod)
	}
	if !authenticated && r.Guest == nil {
		return fmt.Errorf("guest information is required for guest bookings")
	}
	if r.Guest != nil {
		sanitized, err := validator.NewPhoneValidator().Validate(r.Guest.Phone)
		if err != nil {
			return fmt.Errorf("invalid guest phone: %w", err)
		}
		r.Guest.Phone = sanitized
	}
	if len(NormalizeSeatNumbers(r.SeatNumbers)) != r.PassengerCount {
		return fmt.Errorf("seat count must match passenger count")
	}
	return nil
}

// BookingReviewEligibility is returned to the review-submission UI
type BookingReviewEligibility struct {
	BookingID uuid.UUID `json:"booking_id"`
	Eligible  bool      `json:"eligible"`
	Reason    string    `json:"reason,omitempty"`
}

// BookingListResponse wraps a paginated booking listing
type BookingListResponse struct {
	Bookings []*Booking `json:"bookings"`
	Total    int        `json:"total"`
	Limit    int        `json:"limit"`
	Offset   int        `json:"offset"`
}
