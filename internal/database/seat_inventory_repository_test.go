package database

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwandabus/booking-api/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestSeatInventoryTryHold(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	repo := NewSeatInventoryRepository(sqlxDB)

	scheduleID := uuid.New()
	reservationID := uuid.New()
	heldUntil := time.Now().Add(30 * time.Minute)

	t.Run("all seats claimed", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT total_seats FROM schedules`).
			WithArgs(scheduleID).
			WillReturnRows(sqlmock.NewRows([]string{"total_seats"}).AddRow(30))
		mock.ExpectExec(`UPDATE schedule_seats`).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		result, err := repo.TryHold(scheduleID, []int{5, 6}, reservationID, heldUntil)
		require.NoError(t, err)
		assert.True(t, result.Held)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("partial availability rolls back and reports conflicts", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT total_seats FROM schedules`).
			WithArgs(scheduleID).
			WillReturnRows(sqlmock.NewRows([]string{"total_seats"}).AddRow(30))
		mock.ExpectExec(`UPDATE schedule_seats`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		// the conflict query runs inside the claim transaction after the
		// partial UPDATE, so it must carry the own-reservation exclusion or
		// it would read back the transaction's own fresh holds as conflicts
		mock.ExpectQuery(`(?s)SELECT seat_number.*held_by_reservation_id IS NULL OR held_by_reservation_id !=`).
			WithArgs(scheduleID, 5, 6, reservationID).
			WillReturnRows(sqlmock.NewRows([]string{"seat_number"}).AddRow(6))
		mock.ExpectRollback()

		result, err := repo.TryHold(scheduleID, []int{5, 6}, reservationID, heldUntil)
		require.NoError(t, err)
		assert.False(t, result.Held)
		assert.Equal(t, []int{6}, result.ConflictingSeats)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown schedule", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT total_seats FROM schedules`).
			WithArgs(scheduleID).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := repo.TryHold(scheduleID, []int{5}, reservationID, heldUntil)
		assert.ErrorIs(t, err, models.ErrScheduleNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate seats collapse before the claim", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT total_seats FROM schedules`).
			WithArgs(scheduleID).
			WillReturnRows(sqlmock.NewRows([]string{"total_seats"}).AddRow(30))
		// two distinct seats requested as three
		mock.ExpectExec(`UPDATE schedule_seats`).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		result, err := repo.TryHold(scheduleID, []int{5, 6, 5}, reservationID, heldUntil)
		require.NoError(t, err)
		assert.True(t, result.Held)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSeatInventoryCommit(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	repo := NewSeatInventoryRepository(sqlxDB)

	scheduleID := uuid.New()
	reservationID := uuid.New()

	t.Run("success", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE schedule_seats`).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		err := repo.Commit(scheduleID, []int{5, 6}, reservationID)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("seats not held by reservation", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE schedule_seats`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectRollback()

		err := repo.Commit(scheduleID, []int{5, 6}, reservationID)
		assert.ErrorIs(t, err, models.ErrInvalidSeatState)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSeatInventoryRelease(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	repo := NewSeatInventoryRepository(sqlxDB)

	scheduleID := uuid.New()
	reservationID := uuid.New()

	t.Run("release is scoped to the owning reservation", func(t *testing.T) {
		mock.ExpectExec(`(?s)UPDATE schedule_seats.*held_by_reservation_id =`).
			WithArgs(scheduleID, 5, 6, reservationID).
			WillReturnResult(sqlmock.NewResult(0, 2))

		err := repo.Release(scheduleID, []int{5, 6}, reservationID)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero rows touched is not an error", func(t *testing.T) {
		mock.ExpectExec(`UPDATE schedule_seats`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Release(scheduleID, []int{5, 6}, reservationID)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		mock.ExpectExec(`UPDATE schedule_seats`).
			WillReturnError(fmt.Errorf("database error"))

		err := repo.Release(scheduleID, []int{5}, reservationID)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSeatInventoryReleaseExpiredHolds(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	repo := NewSeatInventoryRepository(sqlxDB)

	mock.ExpectExec(`UPDATE schedule_seats`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	released, err := repo.ReleaseExpiredHolds()
	require.NoError(t, err)
	assert.Equal(t, 3, released)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotAvailability(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	repo := NewSeatInventoryRepository(sqlxDB)

	scheduleID := uuid.New()

	t.Run("partitions seats and treats expired holds as free", func(t *testing.T) {
		expired := time.Now().Add(-time.Minute)
		live := time.Now().Add(time.Hour)

		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs(scheduleID).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectQuery(`SELECT seat_number, state, held_until`).
			WithArgs(scheduleID).
			WillReturnRows(sqlmock.NewRows([]string{"seat_number", "state", "held_until"}).
				AddRow(1, "free", nil).
				AddRow(2, "held", live).
				AddRow(3, "held", expired).
				AddRow(4, "booked", nil))

		snapshot, err := repo.SnapshotAvailability(scheduleID)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 3}, snapshot.FreeSeats)
		assert.Equal(t, []int{2}, snapshot.HeldSeats)
		assert.Equal(t, []int{4}, snapshot.BookedSeats)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown schedule", func(t *testing.T) {
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs(scheduleID).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := repo.SnapshotAvailability(scheduleID)
		assert.ErrorIs(t, err, models.ErrScheduleNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
