package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwandabus/booking-api/internal/models"
)

func TestReaperExpiresOverduePendingBookings(t *testing.T) {
	env := newBookingTestEnv(t, 1.0)
	schedule := env.addSchedule(t, 20, 48*time.Hour)
	reaper := NewHoldReaperService(env.bookings, env.inventory, env.lifecycle, time.Minute, env.lifecycle.logger)

	// a pending booking whose hold window has elapsed
	expiredAt := time.Now().Add(-time.Minute)
	reservationID := uuid.New()
	granted, err := env.inventory.TryHold(schedule.ID, []int{4, 5}, reservationID, expiredAt)
	require.NoError(t, err)
	require.True(t, granted.Held)

	booking := &models.Booking{
		BookingReference: "RB-EXPIR1",
		ScheduleID:       schedule.ID,
		ReservationID:    reservationID,
		SeatNumbers:      models.IntArray{4, 5},
		PassengerCount:   2,
		Status:           models.BookingStatusPending,
		PaymentStatus:    models.PaymentStatusUnpaid,
		HoldExpiresAt:    &expiredAt,
	}
	require.NoError(t, env.bookings.Create(booking))

	reaper.RunOnce()

	swept, err := env.bookings.GetByID(booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, swept.Status)

	snapshot, err := env.inventory.SnapshotAvailability(schedule.ID)
	require.NoError(t, err)
	assert.Contains(t, snapshot.FreeSeats, 4)
	assert.Contains(t, snapshot.FreeSeats, 5)
}

func TestReaperLeavesLiveHoldsAlone(t *testing.T) {
	env := newBookingTestEnv(t, 1.0)
	schedule := env.addSchedule(t, 20, 48*time.Hour)
	reaper := NewHoldReaperService(env.bookings, env.inventory, env.lifecycle, time.Minute, env.lifecycle.logger)

	liveUntil := time.Now().Add(20 * time.Minute)
	reservationID := uuid.New()
	granted, err := env.inventory.TryHold(schedule.ID, []int{7}, reservationID, liveUntil)
	require.NoError(t, err)
	require.True(t, granted.Held)

	booking := &models.Booking{
		BookingReference: "RB-LIVE01",
		ScheduleID:       schedule.ID,
		ReservationID:    reservationID,
		SeatNumbers:      models.IntArray{7},
		PassengerCount:   1,
		Status:           models.BookingStatusPending,
		PaymentStatus:    models.PaymentStatusUnpaid,
		HoldExpiresAt:    &liveUntil,
	}
	require.NoError(t, env.bookings.Create(booking))

	reaper.RunOnce()

	untouched, err := env.bookings.GetByID(booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusPending, untouched.Status)

	snapshot, err := env.inventory.SnapshotAvailability(schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{7}, snapshot.HeldSeats)
}

func TestReaperFreesOrphanedHolds(t *testing.T) {
	env := newBookingTestEnv(t, 1.0)
	schedule := env.addSchedule(t, 20, 48*time.Hour)
	reaper := NewHoldReaperService(env.bookings, env.inventory, env.lifecycle, time.Minute, env.lifecycle.logger)

	// a hold with no booking behind it, as left by a crashed flow
	granted, err := env.inventory.TryHold(schedule.ID, []int{11}, uuid.New(), time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.True(t, granted.Held)

	reaper.RunOnce()

	snapshot, err := env.inventory.SnapshotAvailability(schedule.ID)
	require.NoError(t, err)
	assert.Contains(t, snapshot.FreeSeats, 11)
	assert.Empty(t, snapshot.HeldSeats)
}

func TestReaperSweepSparesReclaimedSeats(t *testing.T) {
	env := newBookingTestEnv(t, 1.0)
	schedule := env.addSchedule(t, 20, 48*time.Hour)
	reaper := NewHoldReaperService(env.bookings, env.inventory, env.lifecycle, time.Minute, env.lifecycle.logger)

	// a pending booking whose hold expired before the sweep ran
	expiredAt := time.Now().Add(-time.Minute)
	staleReservation := uuid.New()
	granted, err := env.inventory.TryHold(schedule.ID, []int{4}, staleReservation, expiredAt)
	require.NoError(t, err)
	require.True(t, granted.Held)

	stale := &models.Booking{
		BookingReference: "RB-STALE1",
		ScheduleID:       schedule.ID,
		ReservationID:    staleReservation,
		SeatNumbers:      models.IntArray{4},
		PassengerCount:   1,
		Status:           models.BookingStatusPending,
		PaymentStatus:    models.PaymentStatusUnpaid,
		HoldExpiresAt:    &expiredAt,
	}
	require.NoError(t, env.bookings.Create(stale))

	// the expired seat counts as free, so a newcomer re-holds it first
	newcomer := uuid.New()
	reclaimed, err := env.inventory.TryHold(schedule.ID, []int{4}, newcomer, time.Now().Add(30*time.Minute))
	require.NoError(t, err)
	require.True(t, reclaimed.Held)

	reaper.RunOnce()

	// the stale booking is cancelled, but the newcomer's live hold survives
	swept, err := env.bookings.GetByID(stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, swept.Status)

	snapshot, err := env.inventory.SnapshotAvailability(schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{4}, snapshot.HeldSeats)

	// and the newcomer can still pay and commit
	require.NoError(t, env.inventory.Commit(schedule.ID, []int{4}, newcomer))
}

func TestReaperStartStop(t *testing.T) {
	env := newBookingTestEnv(t, 1.0)
	reaper := NewHoldReaperService(env.bookings, env.inventory, env.lifecycle, 10*time.Millisecond, env.lifecycle.logger)

	reaper.Start()
	time.Sleep(30 * time.Millisecond)
	reaper.Stop()
}
