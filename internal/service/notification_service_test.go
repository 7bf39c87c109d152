package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ncert-tutor-api/internal/dto"
	"github.com/noah-isme/ncert-tutor-api/internal/models"
	"github.com/noah-isme/ncert-tutor-api/internal/repository"
	appErrors "github.com/noah-isme/ncert-tutor-api/pkg/errors"
	"github.com/noah-isme/ncert-tutor-api/pkg/jobs"
)

type stubNotificationRepo struct {
	mu            sync.Mutex
	items         map[string]*models.Notification
	createErr     error
	failures      []bool
	pendingCutoff time.Time
	markReadOK    bool
}

func newStubNotificationRepo() *stubNotificationRepo {
	return &stubNotificationRepo{items: make(map[string]*models.Notification)}
}

func (s *stubNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	stored := *n
	s.items[n.ID] = &stored
	return nil
}

func (s *stubNotificationRepo) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	found := *n
	return &found, nil
}

func (s *stubNotificationRepo) Claim(ctx context.Context, id string, at, staleBefore time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[id]
	if !ok {
		return false, nil
	}
	stale := n.Status == models.NotificationDelivering && n.ClaimedAt != nil && n.ClaimedAt.Before(staleBefore)
	if n.Status != models.NotificationPending && !stale {
		return false, nil
	}
	n.Status = models.NotificationDelivering
	n.ClaimedAt = &at
	return true, nil
}

func (s *stubNotificationRepo) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	var out []models.Notification
	for _, n := range s.items {
		if n.UserID == filter.UserID {
			out = append(out, *n)
		}
	}
	return out, len(out), nil
}

func (s *stubNotificationRepo) MarkRead(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	return s.markReadOK, nil
}

func (s *stubNotificationRepo) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.items[id]; ok && n.Status == models.NotificationDelivering {
		n.Status = models.NotificationDelivered
		n.DeliveredAt = &at
	}
	return nil
}

func (s *stubNotificationRepo) RecordFailure(ctx context.Context, id string, final bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, final)
	if n, ok := s.items[id]; ok && n.Status == models.NotificationDelivering {
		n.Attempts++
		n.Status = models.NotificationPending
		if final {
			n.Status = models.NotificationFailed
		}
	}
	return nil
}

func (s *stubNotificationRepo) ListPending(ctx context.Context, cutoff time.Time, limit int) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingCutoff = cutoff
	var out []models.Notification
	for _, n := range s.items {
		if n.Status == models.NotificationPending {
			out = append(out, *n)
		}
	}
	return out, nil
}

type stubPublisher struct {
	mu        sync.Mutex
	err       error
	published []interface{}
}

func (p *stubPublisher) Publish(ctx context.Context, userID string, payload interface{}) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return 0, p.err
	}
	p.published = append(p.published, payload)
	return 1, nil
}

func (p *stubPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

type stubQueue struct {
	jobs []jobs.Job
	err  error
}

func (q *stubQueue) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func TestNotificationServiceNotifyStoresAndEnqueues(t *testing.T) {
	repo := newStubNotificationRepo()
	queue := &stubQueue{}
	svc := NewNotificationService(repo, &stubPublisher{}, nil, nil, NotificationConfig{MaxRetries: 2})
	svc.AttachQueue(queue)

	svc.Notify(context.Background(), models.Notification{UserID: "u1", Type: models.NotificationBookingRequested, Title: "t", Body: "b"})

	require.Len(t, repo.items, 1)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobTypeDeliverNotification, queue.jobs[0].Type)
	for id, n := range repo.items {
		assert.Equal(t, id, queue.jobs[0].Payload)
		assert.Equal(t, models.NotificationPending, n.Status)
	}
}

func TestNotificationServiceNotifySwallowsFailures(t *testing.T) {
	repo := newStubNotificationRepo()
	repo.createErr = errors.New("insert failed")
	queue := &stubQueue{}
	svc := NewNotificationService(repo, nil, nil, nil, NotificationConfig{})
	svc.AttachQueue(queue)

	assert.NotPanics(t, func() {
		svc.Notify(context.Background(), models.Notification{UserID: "u1"})
	})
	assert.Empty(t, queue.jobs)

	repo.createErr = nil
	queue.err = jobs.ErrQueueFull
	svc.Notify(context.Background(), models.Notification{UserID: "u1"})
	assert.Len(t, repo.items, 1)
}

func TestNotificationServiceDeliverPublishesEvent(t *testing.T) {
	repo := newStubNotificationRepo()
	repo.items["n1"] = &models.Notification{ID: "n1", UserID: "u1", Type: models.NotificationBookingAccepted, Title: "Booking accepted", Status: models.NotificationPending, CreatedAt: time.Now()}
	publisher := &stubPublisher{}
	svc := NewNotificationService(repo, publisher, nil, nil, NotificationConfig{MaxRetries: 2})

	require.NoError(t, svc.HandleJob(context.Background(), jobs.Job{ID: "n1", Type: JobTypeDeliverNotification, Payload: "n1"}))
	require.Len(t, publisher.published, 1)
	event, ok := publisher.published[0].(dto.NotificationEvent)
	require.True(t, ok)
	assert.Equal(t, "Booking accepted", event.Title)
	assert.Equal(t, models.NotificationDelivered, repo.items["n1"].Status)

	// already delivered notifications are not published again
	require.NoError(t, svc.HandleJob(context.Background(), jobs.Job{ID: "n1", Payload: "n1"}))
	assert.Len(t, publisher.published, 1)
}

func TestNotificationServiceDeliverWithoutRedis(t *testing.T) {
	repo := newStubNotificationRepo()
	repo.items["n1"] = &models.Notification{ID: "n1", UserID: "u1", Status: models.NotificationPending}
	svc := NewNotificationService(repo, &stubPublisher{err: repository.ErrPublisherDisabled}, nil, nil, NotificationConfig{})

	require.NoError(t, svc.HandleJob(context.Background(), jobs.Job{ID: "n1", Payload: "n1"}))
	assert.Equal(t, models.NotificationDelivered, repo.items["n1"].Status)
}

func TestNotificationServiceDeliverFailureMarksFinalAttempt(t *testing.T) {
	repo := newStubNotificationRepo()
	repo.items["n1"] = &models.Notification{ID: "n1", UserID: "u1", Status: models.NotificationPending}
	svc := NewNotificationService(repo, &stubPublisher{err: errors.New("redis down")}, nil, nil, NotificationConfig{MaxRetries: 1})

	require.Error(t, svc.HandleJob(context.Background(), jobs.Job{ID: "n1", Payload: "n1", Attempt: 0}))
	require.Error(t, svc.HandleJob(context.Background(), jobs.Job{ID: "n1", Payload: "n1", Attempt: 1}))
	assert.Equal(t, []bool{false, true}, repo.failures)
	assert.Equal(t, models.NotificationFailed, repo.items["n1"].Status)
	assert.Equal(t, 2, repo.items["n1"].Attempts)
}

func TestNotificationServiceDeliverSkipsClaimedRows(t *testing.T) {
	fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	recent := fixed.Add(-10 * time.Second)
	old := fixed.Add(-5 * time.Minute)
	repo := newStubNotificationRepo()
	repo.items["busy"] = &models.Notification{ID: "busy", UserID: "u1", Status: models.NotificationDelivering, ClaimedAt: &recent}
	repo.items["stuck"] = &models.Notification{ID: "stuck", UserID: "u1", Status: models.NotificationDelivering, ClaimedAt: &old}
	publisher := &stubPublisher{}
	svc := NewNotificationService(repo, publisher, nil, nil, NotificationConfig{SweepMinAge: time.Minute})
	svc.now = func() time.Time { return fixed }

	require.NoError(t, svc.HandleJob(context.Background(), jobs.Job{ID: "busy", Payload: "busy"}))
	assert.Equal(t, 0, publisher.count())
	assert.Equal(t, models.NotificationDelivering, repo.items["busy"].Status)

	require.NoError(t, svc.HandleJob(context.Background(), jobs.Job{ID: "stuck", Payload: "stuck"}))
	assert.Equal(t, 1, publisher.count())
	assert.Equal(t, models.NotificationDelivered, repo.items["stuck"].Status)
}

func TestNotificationServiceDuplicateJobsPublishOnce(t *testing.T) {
	repo := newStubNotificationRepo()
	repo.items["n1"] = &models.Notification{ID: "n1", UserID: "u1", Status: models.NotificationPending}
	publisher := &stubPublisher{}
	svc := NewNotificationService(repo, publisher, nil, nil, NotificationConfig{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.HandleJob(context.Background(), jobs.Job{ID: "n1", Payload: "n1"}))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, publisher.count())
	assert.Equal(t, models.NotificationDelivered, repo.items["n1"].Status)
}

func TestNotificationServiceRejectsBadPayload(t *testing.T) {
	svc := NewNotificationService(newStubNotificationRepo(), nil, nil, nil, NotificationConfig{})
	assert.Error(t, svc.HandleJob(context.Background(), jobs.Job{Type: JobTypeDeliverNotification, Payload: 42}))
}

func TestNotificationServiceSweepRequeuesPending(t *testing.T) {
	repo := newStubNotificationRepo()
	repo.items["n1"] = &models.Notification{ID: "n1", Status: models.NotificationPending}
	repo.items["n2"] = &models.Notification{ID: "n2", Status: models.NotificationDelivered}
	queue := &stubQueue{}
	svc := NewNotificationService(repo, nil, nil, nil, NotificationConfig{SweepMinAge: 2 * time.Minute})
	fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	svc.AttachQueue(queue)

	count, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, fixed.Add(-2*time.Minute), repo.pendingCutoff)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, "n1", queue.jobs[0].ID)
}

func TestNotificationServiceMarkRead(t *testing.T) {
	repo := newStubNotificationRepo()
	svc := NewNotificationService(repo, nil, nil, nil, NotificationConfig{})

	err := svc.MarkRead(context.Background(), "u1", "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	repo.markReadOK = true
	assert.NoError(t, svc.MarkRead(context.Background(), "u1", "n1"))
}

func TestNotificationServiceWithRealQueue(t *testing.T) {
	repo := newStubNotificationRepo()
	publisher := &stubPublisher{}
	svc := NewNotificationService(repo, publisher, nil, nil, NotificationConfig{})
	queue := jobs.NewQueue("notifications", svc.HandleJob, jobs.QueueConfig{Workers: 1, RetryDelay: time.Millisecond, OnExhausted: svc.HandleExhausted})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)
	defer queue.Stop()
	svc.AttachQueue(queue)

	svc.Notify(context.Background(), models.Notification{ID: "n-live", UserID: "u1", Title: "hello"})

	require.Eventually(t, func() bool {
		return publisher.count() == 1
	}, time.Second, 5*time.Millisecond)
}
