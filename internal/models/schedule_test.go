package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduleIsBookable(t *testing.T) {
	now := time.Now()
	schedule := &Schedule{
		Status:      ScheduleStatusActive,
		DepartureAt: now.Add(2 * time.Hour),
		ArrivalAt:   now.Add(5 * time.Hour),
	}

	assert.True(t, schedule.IsBookable(now))

	// departed
	assert.False(t, schedule.IsBookable(now.Add(3*time.Hour)))

	schedule.Status = ScheduleStatusCancelled
	assert.False(t, schedule.IsBookable(now))

	schedule.Status = ScheduleStatusCompleted
	assert.False(t, schedule.IsBookable(now))
}

func TestScheduleValidate(t *testing.T) {
	now := time.Now()

	valid := &Schedule{
		DepartureAt: now,
		ArrivalAt:   now.Add(3 * time.Hour),
		SeatPrice:   5000,
		TotalSeats:  30,
	}
	assert.NoError(t, valid.Validate())

	arrivalBeforeDeparture := &Schedule{
		DepartureAt: now,
		ArrivalAt:   now.Add(-time.Hour),
		SeatPrice:   5000,
		TotalSeats:  30,
	}
	assert.Error(t, arrivalBeforeDeparture.Validate())

	noSeats := &Schedule{
		DepartureAt: now,
		ArrivalAt:   now.Add(time.Hour),
		SeatPrice:   5000,
		TotalSeats:  0,
	}
	assert.Error(t, noSeats.Validate())

	negativePrice := &Schedule{
		DepartureAt: now,
		ArrivalAt:   now.Add(time.Hour),
		SeatPrice:   -1,
		TotalSeats:  30,
	}
	assert.Error(t, negativePrice.Validate())
}
