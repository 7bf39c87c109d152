package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/ncert-tutor-api/internal/dto"
	"github.com/noah-isme/ncert-tutor-api/internal/models"
	"github.com/noah-isme/ncert-tutor-api/internal/repository"
	appErrors "github.com/noah-isme/ncert-tutor-api/pkg/errors"
	"github.com/noah-isme/ncert-tutor-api/pkg/jobs"
)

// JobTypeDeliverNotification is the queue job type handled by NotificationService.
const JobTypeDeliverNotification = "notification.deliver"

// Notification delivery outcomes recorded in metrics.
const (
	NotificationOutcomeDelivered   = "delivered"
	NotificationOutcomeRetry       = "retry"
	NotificationOutcomeFailed      = "failed"
	NotificationOutcomeStoreFailed = "store_failed"
	NotificationOutcomeEnqueueFail = "enqueue_failed"
)

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	FindByID(ctx context.Context, id string) (*models.Notification, error)
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	MarkRead(ctx context.Context, id, userID string, at time.Time) (bool, error)
	Claim(ctx context.Context, id string, at, staleBefore time.Time) (bool, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	RecordFailure(ctx context.Context, id string, final bool) error
	ListPending(ctx context.Context, cutoff time.Time, limit int) ([]models.Notification, error)
}

type notificationPublisher interface {
	Publish(ctx context.Context, userID string, payload interface{}) (int64, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// NotificationConfig tunes delivery bookkeeping.
type NotificationConfig struct {
	MaxRetries  int
	SweepMinAge time.Duration
	SweepBatch  int
}

// NotificationService stores in-app notifications and delivers them through
// the background queue. Creating a notification never fails the caller.
type NotificationService struct {
	repo      notificationRepository
	publisher notificationPublisher
	queue     jobEnqueuer
	metrics   *MetricsService
	logger    *zap.Logger
	config    NotificationConfig
	now       func() time.Time
}

// NewNotificationService constructs a NotificationService. The queue is
// attached afterwards because its handler is the service itself.
func NewNotificationService(repo notificationRepository, publisher notificationPublisher, metrics *MetricsService, logger *zap.Logger, cfg NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SweepMinAge <= 0 {
		cfg.SweepMinAge = time.Minute
	}
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = 100
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &NotificationService{
		repo:      repo,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		config:    cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// AttachQueue sets the queue used for delivery jobs.
func (s *NotificationService) AttachQueue(queue jobEnqueuer) {
	s.queue = queue
}

// Notify stores n as pending and schedules its delivery. Errors are logged;
// anything left pending is picked up again by Sweep.
func (s *NotificationService) Notify(ctx context.Context, n models.Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.Status = models.NotificationPending
	if err := s.repo.Create(ctx, &n); err != nil {
		s.metrics.ObserveNotification(NotificationOutcomeStoreFailed)
		s.logger.Error("failed to store notification", zap.String("user_id", n.UserID), zap.String("type", string(n.Type)), zap.Error(err))
		return
	}
	s.enqueue(n.ID)
}

func (s *NotificationService) enqueue(id string) bool {
	if s.queue == nil {
		return false
	}
	job := jobs.Job{ID: id, Type: JobTypeDeliverNotification, Payload: id}
	if err := s.queue.Enqueue(job); err != nil {
		s.metrics.ObserveNotification(NotificationOutcomeEnqueueFail)
		s.logger.Warn("failed to enqueue notification", zap.String("notification_id", id), zap.Error(err))
		return false
	}
	return true
}

// HandleJob is the queue handler delivering one notification.
func (s *NotificationService) HandleJob(ctx context.Context, job jobs.Job) error {
	id, ok := job.Payload.(string)
	if !ok || id == "" {
		return fmt.Errorf("unexpected payload %T for %s", job.Payload, job.Type)
	}
	return s.deliver(ctx, id, job.Attempt)
}

// HandleExhausted runs after the queue gave up on a job.
func (s *NotificationService) HandleExhausted(ctx context.Context, job jobs.Job, err error) {
	s.metrics.ObserveNotification(NotificationOutcomeFailed)
	s.logger.Error("notification delivery abandoned", zap.String("notification_id", job.ID), zap.Int("attempts", job.Attempt), zap.Error(err))
}

func (s *NotificationService) deliver(ctx context.Context, id string, attempt int) error {
	now := s.now()
	claimed, err := s.repo.Claim(ctx, id, now, now.Add(-s.config.SweepMinAge))
	if err != nil {
		return err
	}
	if !claimed {
		s.logger.Debug("notification already settled or claimed", zap.String("notification_id", id))
		return nil
	}

	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("notification vanished before delivery", zap.String("notification_id", id))
			return nil
		}
		return err
	}

	if s.publisher != nil {
		event := dto.NotificationEvent{
			ID:        n.ID,
			UserID:    n.UserID,
			Type:      n.Type,
			Title:     n.Title,
			Body:      n.Body,
			BookingID: n.BookingID,
			CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
		}
		if _, err := s.publisher.Publish(ctx, n.UserID, event); err != nil && !errors.Is(err, repository.ErrPublisherDisabled) {
			final := attempt >= s.config.MaxRetries
			if recErr := s.repo.RecordFailure(ctx, id, final); recErr != nil {
				s.logger.Warn("failed to record notification failure", zap.String("notification_id", id), zap.Error(recErr))
			}
			s.metrics.ObserveNotification(NotificationOutcomeRetry)
			return err
		}
	}

	if err := s.repo.MarkDelivered(ctx, id, s.now()); err != nil {
		return err
	}
	s.metrics.ObserveNotification(NotificationOutcomeDelivered)
	return nil
}

// Sweep re-enqueues notifications left pending, or stuck mid-delivery, for
// longer than the configured minimum age. Delivery claims the row, so a
// notification queued twice is still published once. It returns how many
// were scheduled.
func (s *NotificationService) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.config.SweepMinAge)
	pending, err := s.repo.ListPending(ctx, cutoff, s.config.SweepBatch)
	if err != nil {
		return 0, fmt.Errorf("sweep notifications: %w", err)
	}
	scheduled := 0
	for _, n := range pending {
		if s.enqueue(n.ID) {
			scheduled++
		}
	}
	if scheduled > 0 {
		s.logger.Info("re-enqueued pending notifications", zap.Int("count", scheduled))
	}
	return scheduled, nil
}

// List returns the user's notifications plus pagination data.
func (s *NotificationService) List(ctx context.Context, userID string, query dto.NotificationListQuery) ([]models.Notification, *models.Pagination, error) {
	page, size := models.NormalizePage(query.Page, query.PageSize)
	items, total, err := s.repo.List(ctx, models.NotificationFilter{
		UserID:     userID,
		UnreadOnly: query.Unread,
		Page:       page,
		PageSize:   size,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// MarkRead flags a notification owned by userID as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	ok, err := s.repo.MarkRead(ctx, id, userID, s.now())
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notification")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	return nil
}
