package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rwandabus/booking-api/internal/models"
	"github.com/rwandabus/booking-api/internal/services"
)

// ScheduleHandler handles schedule catalog endpoints
type ScheduleHandler struct {
	schedules *services.ScheduleService
	logger    *logrus.Logger
}

// NewScheduleHandler creates a new ScheduleHandler
func NewScheduleHandler(schedules *services.ScheduleService, logger *logrus.Logger) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules, logger: logger}
}

// ListSchedules returns upcoming bookable schedules
// @Summary List schedules
// @Tags Schedules
// @Produce json
// @Param limit query int false "Page size (default 20)"
// @Param offset query int false "Page offset"
// @Success 200 {array} models.Schedule
// @Router /schedules [get]
func (h *ScheduleHandler) ListSchedules(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	schedules, err := h.schedules.ListUpcoming(limit, offset)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list schedules")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list schedules"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": schedules})
}

// GetSchedule returns one schedule
// @Summary Get schedule
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} models.Schedule
// @Failure 404 {object} map[string]interface{} "Not found"
// @Router /schedules/{id} [get]
func (h *ScheduleHandler) GetSchedule(c *gin.Context) {
	scheduleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule id"})
		return
	}

	schedule, err := h.schedules.GetSchedule(scheduleID)
	if err != nil {
		if errors.Is(err, models.ErrScheduleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.WithError(err).Error("Failed to load schedule")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load schedule"})
		return
	}
	c.JSON(http.StatusOK, schedule)
}

// GetAvailability returns the current seat partition for a schedule
// @Summary Get seat availability
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} models.AvailabilitySnapshot
// @Failure 404 {object} map[string]interface{} "Not found"
// @Router /schedules/{id}/availability [get]
func (h *ScheduleHandler) GetAvailability(c *gin.Context) {
	scheduleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule id"})
		return
	}

	snapshot, err := h.schedules.Availability(scheduleID)
	if err != nil {
		if errors.Is(err, models.ErrScheduleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.WithError(err).Error("Failed to load availability")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load availability"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// CreateSchedule registers a new departure. Operator only.
// @Summary Create schedule
// @Tags Schedules
// @Accept json
// @Produce json
// @Param request body models.CreateScheduleRequest true "Schedule"
// @Success 201 {object} models.Schedule
// @Failure 400 {object} map[string]interface{} "Validation error"
// @Router /admin/schedules [post]
func (h *ScheduleHandler) CreateSchedule(c *gin.Context) {
	var req models.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	schedule, err := h.schedules.CreateSchedule(&req)
	if err != nil {
		h.logger.WithError(err).Error("Failed to create schedule")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, schedule)
}
