package services

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwandabus/booking-api/internal/config"
	"github.com/rwandabus/booking-api/internal/database"
	"github.com/rwandabus/booking-api/internal/models"
	"github.com/rwandabus/booking-api/pkg/sms"
)

// bookingTestEnv wires the full booking stack onto in-memory stores
type bookingTestEnv struct {
	inventory    *database.MemorySeatInventory
	schedules    *database.MemoryScheduleStore
	reservations *database.MemoryReservationStore
	bookings     *database.MemoryBookingStore
	reservation  *ReservationService
	lifecycle    *BookingLifecycleService
	orchestrator *BookingOrchestratorService
	cfg          config.BookingConfig
}

func newBookingTestEnv(t *testing.T, paymentSuccessRate float64) *bookingTestEnv {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := config.BookingConfig{
		HoldWindow:         30 * time.Minute,
		CancellationCutoff: 24 * time.Hour,
		ReviewWindow:       7 * 24 * time.Hour,
		ReaperInterval:     time.Minute,
		Currency:           "RWF",
	}

	env := &bookingTestEnv{
		inventory:    database.NewMemorySeatInventory(),
		schedules:    database.NewMemoryScheduleStore(),
		reservations: database.NewMemoryReservationStore(),
		bookings:     database.NewMemoryBookingStore(),
		cfg:          cfg,
	}

	env.reservation = NewReservationService(env.inventory, env.reservations, env.schedules, cfg.HoldWindow, logger)
	env.lifecycle = NewBookingLifecycleService(env.bookings, env.schedules, env.inventory, cfg, logger)
	gateway := NewMockPaymentGateway(config.PaymentConfig{Mode: "mock", SuccessRate: paymentSuccessRate}, logger)
	notifier := NewSMSNotificationService(sms.NewDevGateway(logger), logger)
	env.orchestrator = NewBookingOrchestratorService(
		env.reservation, env.lifecycle, env.bookings, env.schedules, gateway, notifier, cfg, logger,
	)
	return env
}

// addSchedule registers a bookable schedule departing at the given offset
func (env *bookingTestEnv) addSchedule(t *testing.T, totalSeats int, departureIn time.Duration) *models.Schedule {
	t.Helper()
	schedule := &models.Schedule{
		RouteID:     uuid.New(),
		BusID:       uuid.New(),
		DepartureAt: time.Now().Add(departureIn),
		ArrivalAt:   time.Now().Add(departureIn + 3*time.Hour),
		SeatPrice:   5000,
		TotalSeats:  totalSeats,
	}
	require.NoError(t, env.schedules.Create(schedule))
	require.NoError(t, env.inventory.InitializeSeats(schedule.ID, totalSeats))
	return schedule
}

func guestRequest(scheduleID uuid.UUID, seats []int, method models.PaymentMethod) (*models.CreateBookingRequest, models.Requester) {
	guest := &models.GuestContact{Name: "Alice", Email: "alice@example.com", Phone: "0781234567"}
	req := &models.CreateBookingRequest{
		ScheduleID:     scheduleID.String(),
		SeatNumbers:    seats,
		PassengerCount: len(seats),
		PaymentMethod:  method,
		Guest:          guest,
	}
	return req, models.Requester{Guest: guest}
}

func userRequest(scheduleID uuid.UUID, userID uuid.UUID, seats []int, method models.PaymentMethod) (*models.CreateBookingRequest, models.Requester) {
	req := &models.CreateBookingRequest{
		ScheduleID:     scheduleID.String(),
		SeatNumbers:    seats,
		PassengerCount: len(seats),
		PaymentMethod:  method,
	}
	return req, models.Requester{UserID: &userID}
}

func TestCreateBookingPayLater(t *testing.T) {
	env := newBookingTestEnv(t, 1.0)
	schedule := env.addSchedule(t, 40, 48*time.Hour)

	req, requester := guestRequest(schedule.ID, []int{12, 14}, models.PaymentMethodPayLater)
	booking, err := env.orchestrator.CreateBooking(req, requester, nil)
	require.NoError(t, err)

	assert.Equal(t, models.BookingStatusConfirmed, booking.Status)
	assert.Equal(t, models.PaymentStatusUnpaid, booking.PaymentStatus)
	assert.Equal(t, models.IntArray{12, 14}, booking.SeatNumbers)
	assert.Equal(t, float64(10000), booking.TotalAmount)
	assert.Equal(t, "RWF", booking.Currency)
	assert.Contains(t, booking.BookingReference, "RB-")
	assert.Nil(t, booking.HoldExpiresAt)

	snapshot, err := env.inventory.SnapshotAvailability(schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{12, 14}, snapshot.BookedSeats)
	assert.Empty(t, snapshot.HeldSeats)
}

func TestCreateBookingCardPaid(t *testing.T) {
	env := newBookingTestEnv(t, 1.0)
	schedule := env.addSchedule(t, 40, 48*time.Hour)
	userID := uuid.New()

	req, requester := userRequest(schedule.ID, userID, []int{1}, models.PaymentMethodCard)
	booking, err := env.orchestrator.CreateBooking(req, requester, nil)
	require.NoError(t, err)

	assert.Equal(t, models.BookingStatusConfirmed, booking.Status)
	assert.Equal(t, models.PaymentStatusPaid, booking.PaymentStatus)
	assert.True(t, booking.IsOwnedBy(userID))
	assert.NotNil(t, booking.ConfirmedAt)
}

func TestCreateBookingSeatConflict(t *testing.T) {
	env := newBookingTestEnv(t, 1.0)
	schedule := env.addSchedule(t, 40, 48*time.Hour)

	// passenger A takes seats 12 and 14
	reqA, requesterA := guestRequest(schedule.ID, []int{12, 14}, models.PaymentMethodPayLater)
	_, err := env.orchestrator.CreateBooking(reqA, requesterA, nil)
	require.NoError(t, err)

	// passenger B wants 14 and 15; only 14 conflicts
	reqB, requesterB := guestRequest(schedule.ID, []int{14, 15}, models.PaymentMethodPayLater)
	_, err = env.orchestrator.CreateBooking(reqB, requesterB, nil)
	require.Error(t, err)

	var seatsErr *models.SeatsUnavailableError
	require.ErrorAs(t, err, &seatsErr)
	assert.Equal(t, []int{14}, seatsErr.ConflictingSeats)

	// seat 15 was not claimed by the failed attempt
	snapshot, err := env.inventory.SnapshotAvailability(schedule.ID)
	require.NoError(t, err)
	assert.Contains(t, snapshot.FreeSeats, 15)
}

func TestCreateBookingPaymentDeclined(t *testing.T) {
	env := newBookingTestEnv(t, 0.0)
	schedule := env.addSchedule(t, 40, 48*time.Hour)

	req, requester := guestRequest(schedule.ID, []int{7, 8}, models.PaymentMethodMobileMoney)
	_, err := env.orchestrator.CreateBooking(req, requester, nil)
	require.Error(t, err)

	var paymentErr *models.PaymentFailedError
	assert.ErrorAs(t, err, &paymentErr)

	// no booking survives a declined charge
	leftovers, listErr := env.bookings.ListExpiredPending(time.Now().Add(env.cfg.HoldWindow+time.Hour), 10)
	require.NoError(t, listErr)
	assert.Empty(t, leftovers)

	// and the seats are free for the next passenger
	snapshot, err := env.inventory.SnapshotAvailability(schedule.ID)
	require.NoError(t, err)
	assert.Contains(t, snapshot.FreeSeats, 7)
	assert.Contains(t, snapshot.FreeSeats, 8)
	assert.Empty(t, snapshot.HeldSeats)
	assert.Empty(t, snapshot.BookedSeats)
}

func TestCreateBookingIdempotencyReplay(t *testing.T) {
	env := newBookingTestEnv(t, 1.0)
	schedule := env.addSchedule(t, 40, 48*time.Hour)

	key := "client-key-123"
	req, requester := guestRequest(schedule.ID, []int{20}, models.PaymentMethodCard)
	req.IdempotencyKey = &key

	first, err := env.orchestrator.CreateBooking(req, requester, nil)
	require.NoError(t, err)

	second, err := env.orchestrator.CreateBooking(req, requester, nil)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.BookingReference, second.BookingReference)

	// the replay claimed no additional seats
	snapshot, err := env.inventory.SnapshotAvailability(schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{20}, snapshot.BookedSeats)
}

func TestCreateBookingValidation(t *testing.T) {
	env := newBookingTestEnv(t, 1.0)
	schedule := env.addSchedule(t, 10, 48*time.Hour)

	t.Run("guest info required", func(t *testing.T) {
		req := &models.CreateBookingRequest{
			ScheduleID:     schedule.ID.String(),
			SeatNumbers:    []int{1},
			PassengerCount: 1,
			PaymentMethod:  models.PaymentMethodCard,
		}
		_, err := env.orchestrator.CreateBooking(req, models.Requester{Guest: nil}, nil)
		assert.Error(t, err)
	})

	t.Run("seat outside the bus", func(t *testing.T) {
		req, requester := guestRequest(schedule.ID, []int{11}, models.PaymentMethodCard)
		_, err := env.orchestrator.CreateBooking(req, requester, nil)
		assert.Error(t, err)
	})

	t.Run("unknown schedule", func(t *testing.T) {
		req, requester := guestRequest(uuid.New(), []int{1}, models.PaymentMethodCard)
		_, err := env.orchestrator.CreateBooking(req, requester, nil)
		assert.ErrorIs(t, err, models.ErrScheduleNotFound)
	})

	t.Run("departed schedule", func(t *testing.T) {
		departed := env.addSchedule(t, 10, -time.Hour)
		req, requester := guestRequest(departed.ID, []int{1}, models.PaymentMethodCard)
		_, err := env.orchestrator.CreateBooking(req, requester, nil)
		assert.ErrorIs(t, err, models.ErrScheduleNotActive)
	})
}

func TestCancelBookingWindow(t *testing.T) {
	userID := uuid.New()
	owner := models.Actor{UserID: userID}
	admin := models.Actor{UserID: uuid.New(), IsAdmin: true}

	t.Run("owner cancels one second outside the cutoff", func(t *testing.T) {
		env := newBookingTestEnv(t, 1.0)
		schedule := env.addSchedule(t, 10, 24*time.Hour+time.Second)

		req, requester := userRequest(schedule.ID, userID, []int{2}, models.PaymentMethodCard)
		booking, err := env.orchestrator.CreateBooking(req, requester, nil)
		require.NoError(t, err)

		cancelled, err := env.orchestrator.CancelBooking(booking.ID, owner)
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusCancelled, cancelled.Status)
		assert.NotNil(t, cancelled.CancelledAt)

		// the seat went back to the pool
		snapshot, err := env.inventory.SnapshotAvailability(schedule.ID)
		require.NoError(t, err)
		assert.Contains(t, snapshot.FreeSeats, 2)
	})

	t.Run("owner blocked one second inside the cutoff", func(t *testing.T) {
		env := newBookingTestEnv(t, 1.0)
		schedule := env.addSchedule(t, 10, 24*time.Hour-time.Second)

		req, requester := userRequest(schedule.ID, userID, []int{2}, models.PaymentMethodCard)
		booking, err := env.orchestrator.CreateBooking(req, requester, nil)
		require.NoError(t, err)

		_, err = env.orchestrator.CancelBooking(booking.ID, owner)
		assert.ErrorIs(t, err, models.ErrCancellationWindowClosed)

		unchanged, err := env.bookings.GetByID(booking.ID)
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusConfirmed, unchanged.Status)
	})

	t.Run("owner blocked exactly at the cutoff", func(t *testing.T) {
		env := newBookingTestEnv(t, 1.0)
		schedule := env.addSchedule(t, 10, 24*time.Hour)

		req, requester := userRequest(schedule.ID, userID, []int{2}, models.PaymentMethodCard)
		booking, err := env.orchestrator.CreateBooking(req, requester, nil)
		require.NoError(t, err)

		_, err = env.orchestrator.CancelBooking(booking.ID, owner)
		assert.ErrorIs(t, err, models.ErrCancellationWindowClosed)
	})

	t.Run("operator overrides the cutoff", func(t *testing.T) {
		env := newBookingTestEnv(t, 1.0)
		schedule := env.addSchedule(t, 10, time.Hour)

		req, requester := userRequest(schedule.ID, userID, []int{2}, models.PaymentMethodCard)
		booking, err := env.orchestrator.CreateBooking(req, requester, nil)
		require.NoError(t, err)

		cancelled, err := env.orchestrator.CancelBooking(booking.ID, admin)
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusCancelled, cancelled.Status)
	})

	t.Run("stranger cannot cancel", func(t *testing.T) {
		env := newBookingTestEnv(t, 1.0)
		schedule := env.addSchedule(t, 10, 48*time.Hour)

		req, requester := userRequest(schedule.ID, userID, []int{2}, models.PaymentMethodCard)
		booking, err := env.orchestrator.CreateBooking(req, requester, nil)
		require.NoError(t, err)

		_, err = env.orchestrator.CancelBooking(booking.ID, models.Actor{UserID: uuid.New()})
		assert.ErrorIs(t, err, models.ErrNotBookingOwner)
	})

	t.Run("cancelling twice fails", func(t *testing.T) {
		env := newBookingTestEnv(t, 1.0)
		schedule := env.addSchedule(t, 10, 48*time.Hour)

		req, requester := userRequest(schedule.ID, userID, []int{2}, models.PaymentMethodCard)
		booking, err := env.orchestrator.CreateBooking(req, requester, nil)
		require.NoError(t, err)

		_, err = env.orchestrator.CancelBooking(booking.ID, owner)
		require.NoError(t, err)

		_, err = env.orchestrator.CancelBooking(booking.ID, owner)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})
}

func TestGetBookingByReference(t *testing.T) {
	env := newBookingTestEnv(t, 1.0)
	schedule := env.addSchedule(t, 10, 48*time.Hour)

	req, requester := guestRequest(schedule.ID, []int{5}, models.PaymentMethodPayLater)
	booking, err := env.orchestrator.CreateBooking(req, requester, nil)
	require.NoError(t, err)

	found, err := env.orchestrator.GetBookingByReference(booking.BookingReference)
	require.NoError(t, err)
	assert.Equal(t, booking.ID, found.ID)

	_, err = env.orchestrator.GetBookingByReference("RB-ZZZZZZ")
	assert.ErrorIs(t, err, models.ErrBookingNotFound)
}

func TestListBookingsForUser(t *testing.T) {
	env := newBookingTestEnv(t, 1.0)
	schedule := env.addSchedule(t, 40, 48*time.Hour)
	userID := uuid.New()

	for seat := 1; seat <= 3; seat++ {
		req, requester := userRequest(schedule.ID, userID, []int{seat}, models.PaymentMethodPayLater)
		_, err := env.orchestrator.CreateBooking(req, requester, nil)
		require.NoError(t, err)
	}

	page, err := env.orchestrator.ListBookingsForUser(userID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Bookings, 2)

	rest, err := env.orchestrator.ListBookingsForUser(userID, 2, 2)
	require.NoError(t, err)
	assert.Len(t, rest.Bookings, 1)
}

func TestReviewEligibility(t *testing.T) {
	env := newBookingTestEnv(t, 1.0)
	userID := uuid.New()
	owner := models.Actor{UserID: userID}

	makeCompletedBooking := func(t *testing.T, arrivalAgo time.Duration) uuid.UUID {
		schedule := &models.Schedule{
			RouteID:     uuid.New(),
			BusID:       uuid.New(),
			DepartureAt: time.Now().Add(-arrivalAgo - 3*time.Hour),
			ArrivalAt:   time.Now().Add(-arrivalAgo),
			SeatPrice:   5000,
			TotalSeats:  10,
			Status:      models.ScheduleStatusCompleted,
		}
		require.NoError(t, env.schedules.Create(schedule))

		booking := &models.Booking{
			BookingReference: "RB-TEST01",
			ScheduleID:       schedule.ID,
			ReservationID:    uuid.New(),
			SeatNumbers:      models.IntArray{1},
			UserID:           &userID,
			PassengerCount:   1,
			Status:           models.BookingStatusCompleted,
			PaymentStatus:    models.PaymentStatusPaid,
		}
		require.NoError(t, env.bookings.Create(booking))
		return booking.ID
	}

	t.Run("eligible one second before the window closes", func(t *testing.T) {
		bookingID := makeCompletedBooking(t, 7*24*time.Hour-time.Second)
		eligibility, err := env.orchestrator.ReviewEligibility(bookingID, owner)
		require.NoError(t, err)
		assert.True(t, eligibility.Eligible)
	})

	t.Run("closed one second past the window", func(t *testing.T) {
		bookingID := makeCompletedBooking(t, 7*24*time.Hour+time.Second)
		eligibility, err := env.orchestrator.ReviewEligibility(bookingID, owner)
		require.NoError(t, err)
		assert.False(t, eligibility.Eligible)
		assert.Equal(t, "review window has closed", eligibility.Reason)
	})

	t.Run("confirmed trip not yet reviewable", func(t *testing.T) {
		schedule := env.addSchedule(t, 10, 48*time.Hour)
		req, requester := userRequest(schedule.ID, userID, []int{1}, models.PaymentMethodCard)
		booking, err := env.orchestrator.CreateBooking(req, requester, nil)
		require.NoError(t, err)

		eligibility, err := env.orchestrator.ReviewEligibility(booking.ID, owner)
		require.NoError(t, err)
		assert.False(t, eligibility.Eligible)
		assert.NotEmpty(t, eligibility.Reason)
	})
}

func TestConcurrentBookingsNeverOversell(t *testing.T) {
	env := newBookingTestEnv(t, 1.0)
	schedule := env.addSchedule(t, 40, 48*time.Hour)

	const contenders = 30
	seat := 13

	var wg sync.WaitGroup
	var mu sync.Mutex
	var won int
	var conflicts int

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			userID := uuid.New()
			req, requester := userRequest(schedule.ID, userID, []int{seat}, models.PaymentMethodPayLater)
			_, err := env.orchestrator.CreateBooking(req, requester, nil)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				won++
				return
			}
			var seatsErr *models.SeatsUnavailableError
			if errors.As(err, &seatsErr) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, won, "exactly one booking may claim the seat")
	assert.Equal(t, contenders-1, conflicts)

	snapshot, err := env.inventory.SnapshotAvailability(schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{seat}, snapshot.BookedSeats)
}
