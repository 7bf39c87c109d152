package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/ncert-tutor-api/internal/availability"
	"github.com/noah-isme/ncert-tutor-api/internal/models"
)

// BookingRepository persists bookings and the conversations they open.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a booking repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// OverlapError identifies the booking a new request collides with.
type OverlapError struct {
	BookingID string
}

func (e *OverlapError) Error() string {
	if e.BookingID == "" {
		return ErrOverlap.Error()
	}
	return fmt.Sprintf("%s: %s", ErrOverlap.Error(), e.BookingID)
}

// Is lets errors.Is match ErrOverlap.
func (e *OverlapError) Is(target error) bool {
	return target == ErrOverlap
}

const bookingDetailSelect = `SELECT b.id, b.tutor_id, b.student_id, b.start_time, b.end_time, b.subject, b.timezone, b.status, b.created_at, b.updated_at, tu.full_name AS tutor_name, su.full_name AS student_name FROM bookings b JOIN tutors t ON t.id = b.tutor_id JOIN users tu ON tu.id = t.user_id JOIN users su ON su.id = b.student_id`

// CreateWithConversation inserts a pending booking after serialising on the
// tutor row and re-checking overlaps, then returns the conversation between the
// student and tutor, creating it when needed. The bookings_no_overlap exclusion
// constraint is the final guard; its violation is reported as an OverlapError.
func (r *BookingRepository) CreateWithConversation(ctx context.Context, booking *models.Booking) (conv *models.Conversation, err error) {
	now := time.Now().UTC()
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.Status == "" {
		booking.Status = models.BookingStatusPending
	}
	booking.CreatedAt = now
	booking.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin booking transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var locked string
	if err = tx.GetContext(ctx, &locked, `SELECT id FROM tutors WHERE id = $1 FOR UPDATE`, booking.TutorID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock tutor: %w", err)
	}

	existing, err := overlapping(ctx, tx, booking.TutorID, booking.StartTime, booking.EndTime)
	if err != nil {
		return nil, err
	}
	if hit, found := availability.FirstConflict(existing, booking.StartTime, booking.EndTime); found {
		return nil, &OverlapError{BookingID: hit.ID}
	}

	const insertBooking = `INSERT INTO bookings (id, tutor_id, student_id, start_time, end_time, subject, timezone, status, created_at, updated_at) VALUES (:id, :tutor_id, :student_id, :start_time, :end_time, :subject, :timezone, :status, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertBooking, booking); err != nil {
		if isExclusionViolation(err) {
			return nil, &OverlapError{}
		}
		return nil, fmt.Errorf("insert booking: %w", err)
	}

	conv, err = getOrCreateConversation(ctx, tx, booking.StudentID, booking.TutorID, now)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		if isExclusionViolation(err) {
			return nil, &OverlapError{}
		}
		return nil, fmt.Errorf("commit booking transaction: %w", err)
	}
	return conv, nil
}

// Overlapping lists bookings of a tutor intersecting [start, end), any status.
func (r *BookingRepository) Overlapping(ctx context.Context, tutorID string, start, end time.Time) ([]availability.Interval, error) {
	return overlapping(ctx, r.db, tutorID, start, end)
}

func overlapping(ctx context.Context, q sqlx.QueryerContext, tutorID string, start, end time.Time) ([]availability.Interval, error) {
	const query = `SELECT id, start_time, end_time FROM bookings WHERE tutor_id = $1 AND start_time < $2 AND end_time > $3 ORDER BY start_time`
	var rows []struct {
		ID        string    `db:"id"`
		StartTime time.Time `db:"start_time"`
		EndTime   time.Time `db:"end_time"`
	}
	if err := sqlx.SelectContext(ctx, q, &rows, query, tutorID, end, start); err != nil {
		return nil, fmt.Errorf("query overlapping bookings: %w", err)
	}
	intervals := make([]availability.Interval, 0, len(rows))
	for _, row := range rows {
		intervals = append(intervals, availability.Interval{ID: row.ID, Start: row.StartTime, End: row.EndTime})
	}
	return intervals, nil
}

func getOrCreateConversation(ctx context.Context, tx *sqlx.Tx, studentID, tutorID string, now time.Time) (*models.Conversation, error) {
	const insert = `INSERT INTO conversations (id, student_id, tutor_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $4) ON CONFLICT (student_id, tutor_id) DO NOTHING`
	if _, err := tx.ExecContext(ctx, insert, uuid.NewString(), studentID, tutorID, now); err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	const selectQuery = `SELECT id, student_id, tutor_id, created_at, updated_at FROM conversations WHERE student_id = $1 AND tutor_id = $2`
	var conv models.Conversation
	if err := tx.GetContext(ctx, &conv, selectQuery, studentID, tutorID); err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	return &conv, nil
}

// FindByID returns a booking with display names.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.BookingDetail, error) {
	const query = bookingDetailSelect + ` WHERE b.id = $1`
	var booking models.BookingDetail
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find booking: %w", err)
	}
	return &booking, nil
}

func bookingConditions(filter models.BookingFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	if filter.TutorID != "" {
		args = append(args, filter.TutorID)
		conditions = append(conditions, fmt.Sprintf("b.tutor_id = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("b.student_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("b.status = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("b.end_time > $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("b.start_time < $%d", len(args)))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// List returns a page of bookings, most recent start first, with a total count.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetail, int, error) {
	where, args := bookingConditions(filter)
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	listQuery := fmt.Sprintf("%s%s ORDER BY b.start_time DESC LIMIT %d OFFSET %d", bookingDetailSelect, where, size, offset)
	var bookings []models.BookingDetail
	if err := r.db.SelectContext(ctx, &bookings, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM bookings b"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}
	return bookings, total, nil
}

// ListAll returns every booking matching filter ordered by start time.
func (r *BookingRepository) ListAll(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetail, error) {
	where, args := bookingConditions(filter)
	var bookings []models.BookingDetail
	if err := r.db.SelectContext(ctx, &bookings, bookingDetailSelect+where+" ORDER BY b.start_time ASC", args...); err != nil {
		return nil, fmt.Errorf("list all bookings: %w", err)
	}
	return bookings, nil
}

// TransitionStatus moves a booking to next when its current status is one of
// from. It reports false when the booking was not in an allowed state.
func (r *BookingRepository) TransitionStatus(ctx context.Context, id string, from []models.BookingStatus, next models.BookingStatus) (bool, error) {
	allowed := make([]string, 0, len(from))
	for _, s := range from {
		allowed = append(allowed, string(s))
	}
	const query = `UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1 AND status = ANY($4)`
	res, err := r.db.ExecContext(ctx, query, id, next, time.Now().UTC(), pq.Array(allowed))
	if err != nil {
		return false, fmt.Errorf("update booking status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update booking status: %w", err)
	}
	return affected > 0, nil
}
