package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ncert-tutor-api/internal/models"
)

func newBooking(start, end string) *models.Booking {
	s, _ := time.Parse(time.RFC3339, start)
	e, _ := time.Parse(time.RFC3339, end)
	return &models.Booking{TutorID: "tutor-1", StudentID: "student-1", StartTime: s, EndTime: e, Subject: "Physics", Timezone: "UTC"}
}

func TestCreateWithConversationInsertsBookingAndConversation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)
	booking := newBooking("2024-01-01T10:00:00Z", "2024-01-01T11:00:00Z")
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM tutors WHERE id = $1 FOR UPDATE")).
		WithArgs("tutor-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("tutor-1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, start_time, end_time FROM bookings WHERE tutor_id = $1 AND start_time < $2 AND end_time > $3")).
		WithArgs("tutor-1", booking.EndTime, booking.StartTime).
		WillReturnRows(sqlmock.NewRows([]string{"id", "start_time", "end_time"}))
	mock.ExpectExec("INSERT INTO bookings").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (student_id, tutor_id) DO NOTHING")).
		WithArgs(sqlmock.AnyArg(), "student-1", "tutor-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM conversations WHERE student_id = $1 AND tutor_id = $2")).
		WithArgs("student-1", "tutor-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "tutor_id", "created_at", "updated_at"}).
			AddRow("conv-1", "student-1", "tutor-1", now, now))
	mock.ExpectCommit()

	conv, err := repo.CreateWithConversation(context.Background(), booking)
	require.NoError(t, err)
	assert.Equal(t, "conv-1", conv.ID)
	assert.NotEmpty(t, booking.ID)
	assert.Equal(t, models.BookingStatusPending, booking.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithConversationDetectsOverlap(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)
	booking := newBooking("2024-01-01T09:30:00Z", "2024-01-01T10:30:00Z")

	existingStart, _ := time.Parse(time.RFC3339, "2024-01-01T09:00:00Z")
	existingEnd, _ := time.Parse(time.RFC3339, "2024-01-01T10:00:00Z")

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("tutor-1"))
	mock.ExpectQuery("FROM bookings WHERE tutor_id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "start_time", "end_time"}).AddRow("booking-9", existingStart, existingEnd))
	mock.ExpectRollback()

	_, err := repo.CreateWithConversation(context.Background(), booking)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOverlap))
	var overlap *OverlapError
	require.True(t, errors.As(err, &overlap))
	assert.Equal(t, "booking-9", overlap.BookingID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithConversationMapsExclusionViolation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("tutor-1"))
	mock.ExpectQuery("FROM bookings WHERE tutor_id").WillReturnRows(sqlmock.NewRows([]string{"id", "start_time", "end_time"}))
	mock.ExpectExec("INSERT INTO bookings").WillReturnError(&pq.Error{Code: "23P01"})
	mock.ExpectRollback()

	_, err := repo.CreateWithConversation(context.Background(), newBooking("2024-01-01T09:00:00Z", "2024-01-01T10:00:00Z"))
	assert.ErrorIs(t, err, ErrOverlap)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithConversationUnknownTutor(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.CreateWithConversation(context.Background(), newBooking("2024-01-01T09:00:00Z", "2024-01-01T10:00:00Z"))
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1 AND status = ANY($4)")).
		WithArgs("b-1", models.BookingStatusAccepted, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE bookings SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.TransitionStatus(context.Background(), "b-1", []models.BookingStatus{models.BookingStatusPending}, models.BookingStatusAccepted)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.TransitionStatus(context.Background(), "b-1", []models.BookingStatus{models.BookingStatusPending}, models.BookingStatusRejected)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListBookingsByStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE b.student_id = $1 AND b.status = $2 ORDER BY b.start_time DESC LIMIT 20 OFFSET 0")).
		WithArgs("student-1", models.BookingStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tutor_id", "student_id", "start_time", "end_time", "subject", "timezone", "status", "created_at", "updated_at", "tutor_name", "student_name"}).
			AddRow("b-1", "tutor-1", "student-1", now, now.Add(time.Hour), "Maths", "UTC", "pending", now, now, "Tutor", "Student"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM bookings b WHERE b.student_id = $1 AND b.status = $2")).
		WithArgs("student-1", models.BookingStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.List(context.Background(), models.BookingFilter{StudentID: "student-1", Status: models.BookingStatusPending})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Tutor", items[0].TutorName)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
