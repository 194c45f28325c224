package services

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/rwandabus/booking-api/internal/database"
)

const completionBatchSize = 100

// rejected ledger entries are kept this long for conflict-rate analysis
const rejectedRetention = 30 * 24 * time.Hour

// ScheduleCompletionService runs the periodic maintenance jobs: marking
// arrived schedules completed, promoting their confirmed bookings, and
// purging old rejected reservations.
type ScheduleCompletionService struct {
	schedules    database.ScheduleStore
	bookings     database.BookingStore
	reservations *ReservationService
	lifecycle    *BookingLifecycleService
	logger       *logrus.Logger
	cron         *cron.Cron
}

// NewScheduleCompletionService creates a new ScheduleCompletionService
func NewScheduleCompletionService(
	schedules database.ScheduleStore,
	bookings database.BookingStore,
	reservations *ReservationService,
	lifecycle *BookingLifecycleService,
	logger *logrus.Logger,
) *ScheduleCompletionService {
	return &ScheduleCompletionService{
		schedules:    schedules,
		bookings:     bookings,
		reservations: reservations,
		lifecycle:    lifecycle,
		logger:       logger,
		cron:         cron.New(),
	}
}

// Start registers and launches the cron jobs
func (s *ScheduleCompletionService) Start() error {
	// every 10 minutes: complete schedules that have arrived
	if _, err := s.cron.AddFunc("*/10 * * * *", s.CompleteArrivedSchedules); err != nil {
		return err
	}
	// daily at 03:00: purge old rejected reservations
	if _, err := s.cron.AddFunc("0 3 * * *", s.purgeRejectedReservations); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("Schedule completion cron started")
	return nil
}

// Stop stops the cron scheduler, waiting for running jobs
func (s *ScheduleCompletionService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Schedule completion cron stopped")
}

// CompleteArrivedSchedules marks active schedules whose arrival time has
// passed as completed and moves their confirmed bookings to completed.
// Exposed so tests and operator tooling can trigger a pass directly.
func (s *ScheduleCompletionService) CompleteArrivedSchedules() {
	arrived, err := s.schedules.ListArrivedBefore(time.Now(), completionBatchSize)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list arrived schedules")
		return
	}

	for _, schedule := range arrived {
		if err := s.schedules.MarkCompleted(schedule.ID); err != nil {
			s.logger.WithError(err).WithField("schedule_id", schedule.ID).
				Error("Failed to mark schedule completed")
			continue
		}

		confirmed, err := s.bookings.ListConfirmedBySchedule(schedule.ID)
		if err != nil {
			s.logger.WithError(err).WithField("schedule_id", schedule.ID).
				Error("Failed to list confirmed bookings for completed schedule")
			continue
		}
		for _, booking := range confirmed {
			if err := s.lifecycle.Complete(booking.ID); err != nil {
				s.logger.WithError(err).WithFields(logrus.Fields{
					"booking_id":  booking.ID,
					"schedule_id": schedule.ID,
				}).Error("Failed to complete booking")
			}
		}

		s.logger.WithFields(logrus.Fields{
			"schedule_id": schedule.ID,
			"bookings":    len(confirmed),
		}).Info("Schedule completed")
	}
}

func (s *ScheduleCompletionService) purgeRejectedReservations() {
	deleted, err := s.reservations.PurgeRejected(rejectedRetention)
	if err != nil {
		s.logger.WithError(err).Error("Failed to purge rejected reservations")
		return
	}
	if deleted > 0 {
		s.logger.WithField("deleted", deleted).Info("Purged old rejected reservations")
	}
}
