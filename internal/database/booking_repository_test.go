package database

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwandabus/booking-api/internal/models"
)

func TestGenerateBookingReference(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	repo := NewBookingRepository(sqlxDB)

	t.Run("unique on first attempt", func(t *testing.T) {
		mock.ExpectQuery(`SELECT COUNT`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		ref, err := repo.GenerateBookingReference()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(ref, "RB-"))
		assert.Len(t, ref, 9)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("retries on collision", func(t *testing.T) {
		mock.ExpectQuery(`SELECT COUNT`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery(`SELECT COUNT`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		ref, err := repo.GenerateBookingReference()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(ref, "RB-"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingGetByIdempotencyKey(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	repo := NewBookingRepository(sqlxDB)

	t.Run("not found returns nil", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE idempotency_key`).
			WithArgs("key-1").
			WillReturnError(sql.ErrNoRows)

		booking, err := repo.GetByIdempotencyKey("key-1")
		require.NoError(t, err)
		assert.Nil(t, booking)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingStatusUpdates(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	repo := NewBookingRepository(sqlxDB)
	bookingID := uuid.New()

	t.Run("confirm pending booking", func(t *testing.T) {
		mock.ExpectExec(`UPDATE bookings`).
			WithArgs(bookingID, models.PaymentStatusPaid).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.MarkConfirmed(bookingID, true)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("confirm non-pending booking fails", func(t *testing.T) {
		mock.ExpectExec(`UPDATE bookings`).
			WithArgs(bookingID, models.PaymentStatusUnpaid).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.MarkConfirmed(bookingID, false)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cancel terminal booking fails", func(t *testing.T) {
		mock.ExpectExec(`UPDATE bookings`).
			WithArgs(bookingID).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.MarkCancelled(bookingID)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("complete confirmed booking", func(t *testing.T) {
		mock.ExpectExec(`UPDATE bookings`).
			WithArgs(bookingID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.MarkCompleted(bookingID)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestListExpiredPending(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	repo := NewBookingRepository(sqlxDB)

	now := time.Now()
	mock.ExpectQuery(`SELECT (.+) FROM bookings`).
		WithArgs(sqlmock.AnyArg(), 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_reference", "status"}).
			AddRow(uuid.New(), "RB-ABC234", "pending"))

	bookings, err := repo.ListExpiredPending(now, 50)
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
	assert.Equal(t, models.BookingStatusPending, bookings[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
