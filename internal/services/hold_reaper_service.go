package services

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rwandabus/booking-api/internal/database"
)

const reaperBatchSize = 200

// HoldReaperService is the background sweeper for expired seat holds. It
// cancels pending bookings whose hold window elapsed and frees any held
// seats left behind by crashed flows.
type HoldReaperService struct {
	bookings  database.BookingStore
	inventory database.SeatInventory
	lifecycle *BookingLifecycleService
	interval  time.Duration
	logger    *logrus.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewHoldReaperService creates a new HoldReaperService
func NewHoldReaperService(
	bookings database.BookingStore,
	inventory database.SeatInventory,
	lifecycle *BookingLifecycleService,
	interval time.Duration,
	logger *logrus.Logger,
) *HoldReaperService {
	return &HoldReaperService{
		bookings:  bookings,
		inventory: inventory,
		lifecycle: lifecycle,
		interval:  interval,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

// Start launches the background sweep loop
func (s *HoldReaperService) Start() {
	s.wg.Add(1)
	go s.run()
	s.logger.WithField("interval", s.interval).Info("Hold reaper started")
}

// Stop signals the loop to exit and waits for the in-flight sweep
func (s *HoldReaperService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("Hold reaper stopped")
}

func (s *HoldReaperService) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce()
		case <-s.stopCh:
			return
		}
	}
}

// RunOnce performs a single sweep: expire overdue pending bookings, then
// free any orphaned expired holds in the inventory. Exposed so operators
// and tests can trigger a sweep on demand.
func (s *HoldReaperService) RunOnce() {
	expired, err := s.bookings.ListExpiredPending(time.Now(), reaperBatchSize)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list expired pending bookings")
		return
	}

	cancelled := 0
	for _, booking := range expired {
		if err := s.lifecycle.ExpireHold(booking); err != nil {
			s.logger.WithError(err).WithField("booking_id", booking.ID).
				Error("Failed to expire booking hold")
			continue
		}
		cancelled++
	}

	// holds not tied to a pending booking (reservation granted but the
	// booking flow died before creating one) are swept directly
	released, err := s.inventory.ReleaseExpiredHolds()
	if err != nil {
		s.logger.WithError(err).Error("Failed to release orphaned expired holds")
		return
	}

	if cancelled > 0 || released > 0 {
		s.logger.WithFields(logrus.Fields{
			"bookings_expired": cancelled,
			"seats_released":   released,
		}).Info("Hold sweep completed")
	}
}
