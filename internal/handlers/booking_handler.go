package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rwandabus/booking-api/internal/middleware"
	"github.com/rwandabus/booking-api/internal/models"
	"github.com/rwandabus/booking-api/internal/services"
	"github.com/rwandabus/booking-api/internal/utils"
)

// BookingHandler handles booking endpoints
type BookingHandler struct {
	orchestrator *services.BookingOrchestratorService
	logger       *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(orchestrator *services.BookingOrchestratorService, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{orchestrator: orchestrator, logger: logger}
}

// CreateBooking creates a booking for a registered user or a guest
// @Summary Create booking
// @Description Claims the requested seats, takes payment, and returns the confirmed booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param request body models.CreateBookingRequest true "Booking request"
// @Success 201 {object} models.Booking
// @Failure 400 {object} map[string]interface{} "Validation error"
// @Failure 402 {object} map[string]interface{} "Payment declined"
// @Failure 409 {object} map[string]interface{} "Seats unavailable"
// @Router /bookings [post]
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	var requester models.Requester
	if userCtx, ok := middleware.GetUserContext(c); ok {
		userID := userCtx.UserID
		requester.UserID = &userID
	} else {
		requester.Guest = req.Guest
	}

	deviceInfo := utils.CaptureDeviceInfo(c.Request.UserAgent(), c.ClientIP())

	booking, err := h.orchestrator.CreateBooking(&req, requester, deviceInfo)
	if err != nil {
		h.respondBookingError(c, err)
		return
	}

	c.JSON(http.StatusCreated, booking)
}

// GetBooking returns one booking visible to the caller
// @Summary Get booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} models.Booking
// @Failure 404 {object} map[string]interface{} "Not found"
// @Router /bookings/{id} [get]
func (h *BookingHandler) GetBooking(c *gin.Context) {
	bookingID, actor, ok := h.bookingActor(c)
	if !ok {
		return
	}

	booking, err := h.orchestrator.GetBooking(bookingID, actor)
	if err != nil {
		h.respondBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// GetBookingByReference looks up a booking by its reference. Public: this
// is how guests retrieve their booking.
// @Summary Get booking by reference
// @Tags Bookings
// @Produce json
// @Param reference path string true "Booking reference (RB-XXXXXX)"
// @Success 200 {object} models.Booking
// @Failure 404 {object} map[string]interface{} "Not found"
// @Router /bookings/reference/{reference} [get]
func (h *BookingHandler) GetBookingByReference(c *gin.Context) {
	reference := c.Param("reference")
	booking, err := h.orchestrator.GetBookingByReference(reference)
	if err != nil {
		h.respondBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// CancelBooking cancels a booking on behalf of its owner or an operator
// @Summary Cancel booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} models.Booking
// @Failure 404 {object} map[string]interface{} "Not found"
// @Failure 422 {object} map[string]interface{} "Cancellation window closed"
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	bookingID, actor, ok := h.bookingActor(c)
	if !ok {
		return
	}

	booking, err := h.orchestrator.CancelBooking(bookingID, actor)
	if err != nil {
		h.respondBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// ReviewEligibility reports whether the booking can receive a review
// @Summary Check review eligibility
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} models.BookingReviewEligibility
// @Router /bookings/{id}/review-eligibility [get]
func (h *BookingHandler) ReviewEligibility(c *gin.Context) {
	bookingID, actor, ok := h.bookingActor(c)
	if !ok {
		return
	}

	eligibility, err := h.orchestrator.ReviewEligibility(bookingID, actor)
	if err != nil {
		h.respondBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, eligibility)
}

// ListMyBookings returns the authenticated user's bookings
// @Summary List my bookings
// @Tags Bookings
// @Produce json
// @Param limit query int false "Page size (default 20)"
// @Param offset query int false "Page offset"
// @Success 200 {object} models.BookingListResponse
// @Router /my/bookings [get]
func (h *BookingHandler) ListMyBookings(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	response, err := h.orchestrator.ListBookingsForUser(userCtx.UserID, limit, offset)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list bookings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list bookings"})
		return
	}
	c.JSON(http.StatusOK, response)
}

// bookingActor parses the booking ID path param and builds the acting
// identity from the auth context
func (h *BookingHandler) bookingActor(c *gin.Context) (uuid.UUID, models.Actor, bool) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return uuid.Nil, models.Actor{}, false
	}

	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return uuid.Nil, models.Actor{}, false
	}

	return bookingID, models.Actor{UserID: userCtx.UserID, IsAdmin: userCtx.IsAdmin()}, true
}

// respondBookingError maps domain errors to HTTP responses
func (h *BookingHandler) respondBookingError(c *gin.Context, err error) {
	var seatsErr *models.SeatsUnavailableError
	if errors.As(err, &seatsErr) {
		c.JSON(http.StatusConflict, gin.H{
			"error":             "seats_unavailable",
			"message":           seatsErr.Error(),
			"conflicting_seats": seatsErr.ConflictingSeats,
		})
		return
	}

	var paymentErr *models.PaymentFailedError
	if errors.As(err, &paymentErr) {
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":   "payment_failed",
			"message": paymentErr.Error(),
		})
		return
	}

	switch {
	case errors.Is(err, models.ErrBookingNotFound), errors.Is(err, models.ErrScheduleNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNotBookingOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrCancellationWindowClosed):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "cancellation_window_closed",
			"message": err.Error(),
		})
	case errors.Is(err, models.ErrScheduleNotActive), errors.Is(err, models.ErrInvalidTransition):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		h.logger.WithError(err).Error("Booking request failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}
