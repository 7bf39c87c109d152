package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ncert-tutor-api/internal/models"
)

// NotificationRepository persists in-app notifications and their delivery state.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates a notification repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationColumns = `id, user_id, type, title, body, booking_id, status, attempts, read_at, delivered_at, claimed_at, created_at`

// Create inserts a pending notification.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Status == "" {
		n.Status = models.NotificationPending
	}
	const query = `INSERT INTO notifications (id, user_id, type, title, body, booking_id, status, attempts, created_at) VALUES (:id, :user_id, :type, :title, :body, :booking_id, :status, :attempts, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// FindByID returns a notification.
func (r *NotificationRepository) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	const query = `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	var n models.Notification
	if err := r.db.GetContext(ctx, &n, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find notification: %w", err)
	}
	return &n, nil
}

// List returns a user's notifications, newest first, with a total count.
func (r *NotificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	where := ` WHERE user_id = $1`
	if filter.UnreadOnly {
		where += ` AND read_at IS NULL`
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	listQuery := fmt.Sprintf("SELECT %s FROM notifications%s ORDER BY created_at DESC LIMIT %d OFFSET %d", notificationColumns, where, size, offset)
	var items []models.Notification
	if err := r.db.SelectContext(ctx, &items, listQuery, filter.UserID); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM notifications"+where, filter.UserID); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}
	return items, total, nil
}

// MarkRead sets read_at for a notification owned by userID. It reports false
// when no such notification exists.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	const query = `UPDATE notifications SET read_at = COALESCE(read_at, $3) WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, userID, at)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	return affected > 0, nil
}

// Claim moves a pending notification to delivering so exactly one worker
// publishes it. A delivering claim older than staleBefore can be taken over.
// It reports false when another worker holds the row or it is already settled.
func (r *NotificationRepository) Claim(ctx context.Context, id string, at, staleBefore time.Time) (bool, error) {
	const query = `UPDATE notifications SET status = 'delivering', claimed_at = $2 WHERE id = $1 AND (status = 'pending' OR (status = 'delivering' AND claimed_at < $3))`
	res, err := r.db.ExecContext(ctx, query, id, at, staleBefore)
	if err != nil {
		return false, fmt.Errorf("claim notification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim notification: %w", err)
	}
	return affected > 0, nil
}

// MarkDelivered records a successful delivery attempt.
func (r *NotificationRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE notifications SET status = 'delivered', delivered_at = $2, attempts = attempts + 1 WHERE id = $1 AND status = 'delivering'`
	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("mark notification delivered: %w", err)
	}
	return nil
}

// RecordFailure releases a claimed notification back to pending with one more
// attempt counted or, when final is set, marks it failed.
func (r *NotificationRepository) RecordFailure(ctx context.Context, id string, final bool) error {
	query := `UPDATE notifications SET attempts = attempts + 1, status = 'pending' WHERE id = $1 AND status = 'delivering'`
	if final {
		query = `UPDATE notifications SET attempts = attempts + 1, status = 'failed' WHERE id = $1 AND status = 'delivering'`
	}
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("record notification failure: %w", err)
	}
	return nil
}

// ListPending returns notifications due for another delivery run, oldest first:
// pending rows untouched since cutoff and delivering claims older than cutoff.
func (r *NotificationRepository) ListPending(ctx context.Context, cutoff time.Time, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf("SELECT %s FROM notifications WHERE (status = 'pending' AND COALESCE(claimed_at, created_at) < $1) OR (status = 'delivering' AND claimed_at < $1) ORDER BY created_at ASC LIMIT %d", notificationColumns, limit)
	var items []models.Notification
	if err := r.db.SelectContext(ctx, &items, query, cutoff); err != nil {
		return nil, fmt.Errorf("list pending notifications: %w", err)
	}
	return items, nil
}
