package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/ncert-tutor-api/internal/availability"
	"github.com/noah-isme/ncert-tutor-api/internal/dto"
	"github.com/noah-isme/ncert-tutor-api/internal/models"
	"github.com/noah-isme/ncert-tutor-api/internal/repository"
	appErrors "github.com/noah-isme/ncert-tutor-api/pkg/errors"
	"github.com/noah-isme/ncert-tutor-api/pkg/export"
)

type bookingRepository interface {
	CreateWithConversation(ctx context.Context, booking *models.Booking) (*models.Conversation, error)
	FindByID(ctx context.Context, id string) (*models.BookingDetail, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetail, int, error)
	ListAll(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetail, error)
	TransitionStatus(ctx context.Context, id string, from []models.BookingStatus, next models.BookingStatus) (bool, error)
}

type bookingTutorRepository interface {
	FindByID(ctx context.Context, id string) (*models.Tutor, error)
	FindByUserID(ctx context.Context, userID string) (*models.Tutor, error)
}

type bookingNotifier interface {
	Notify(ctx context.Context, n models.Notification)
}

// BookingService creates bookings after checking tutor availability and
// existing reservations, and drives their status lifecycle.
type BookingService struct {
	repo            bookingRepository
	tutors          bookingTutorRepository
	notifier        bookingNotifier
	metrics         *MetricsService
	csv             *export.CSVExporter
	pdf             *export.PDFExporter
	validator       *validator.Validate
	logger          *zap.Logger
	defaultTimezone string
	now             func() time.Time
}

// NewBookingService constructs a BookingService. notifier may be nil.
func NewBookingService(repo bookingRepository, tutors bookingTutorRepository, notifier bookingNotifier, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, defaultTimezone string) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		repo:            repo,
		tutors:          tutors,
		notifier:        notifier,
		metrics:         metrics,
		csv:             export.NewCSVExporter(),
		pdf:             export.NewPDFExporter(),
		validator:       validate,
		logger:          logger,
		defaultTimezone: defaultTimezone,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// Create books a lesson for studentID. Only the start time is matched against
// the tutor's availability windows, so a lesson that starts inside a window
// may run past its end. Overlap with other bookings covers the full interval.
func (s *BookingService) Create(ctx context.Context, studentID string, req dto.CreateBookingRequest) (*dto.BookingCreated, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}

	tutor, err := s.loadTutor(ctx, req.TutorID)
	if err != nil {
		return nil, err
	}

	loc, err := availability.ResolveZone(req.Timezone, tutor.Timezone, s.defaultTimezone)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timezone")
	}
	start, err := availability.ParseInstant(req.StartTime, loc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid startTime")
	}
	end, err := availability.ParseInstant(req.EndTime, loc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid endTime")
	}
	if !start.Before(end) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "startTime must be before endTime")
	}

	result := availability.CheckAt(s.scheduleOf(tutor), start, loc)
	if !result.Available {
		s.metrics.ObserveBooking(BookingOutcomeUnavailable)
		return nil, appErrors.Clone(appErrors.ErrTutorUnavailable, result.Reason)
	}

	booking := &models.Booking{
		ID:        uuid.NewString(),
		TutorID:   tutor.ID,
		StudentID: studentID,
		StartTime: start.UTC(),
		EndTime:   end.UTC(),
		Subject:   strings.TrimSpace(req.Subject),
		Timezone:  loc.String(),
		Status:    models.BookingStatusPending,
	}

	conv, err := s.repo.CreateWithConversation(ctx, booking)
	if err != nil {
		if errors.Is(err, repository.ErrOverlap) {
			s.metrics.ObserveBooking(BookingOutcomeConflict)
			return nil, appErrors.Clone(appErrors.ErrBookingConflict, "requested time overlaps an existing booking for this tutor")
		}
		s.metrics.ObserveBooking(BookingOutcomeError)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create booking")
	}
	s.metrics.ObserveBooking(BookingOutcomeCreated)
	s.logger.Info("booking created",
		zap.String("booking_id", booking.ID),
		zap.String("tutor_id", tutor.ID),
		zap.String("student_id", studentID),
		zap.String("timezone", booking.Timezone),
	)

	s.notify(ctx, tutor.UserID, models.NotificationBookingRequested, "New booking request",
		fmt.Sprintf("A student requested a lesson on %s.", describeSlot(booking)), booking.ID)

	return &dto.BookingCreated{Booking: *booking, ConversationID: conv.ID}, nil
}

// CheckAvailability evaluates a start time against the tutor's schedule
// without booking it.
func (s *BookingService) CheckAvailability(ctx context.Context, tutorID string, query dto.AvailabilityCheckQuery) (*dto.AvailabilityCheckResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability query")
	}
	tutor, err := s.loadTutor(ctx, tutorID)
	if err != nil {
		return nil, err
	}
	loc, err := availability.ResolveZone(query.Timezone, tutor.Timezone, s.defaultTimezone)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timezone")
	}
	start, err := availability.ParseInstant(query.StartTime, loc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid startTime")
	}
	day, clock := availability.LocalSlot(start, loc)
	return &dto.AvailabilityCheckResponse{
		TutorID:   tutor.ID,
		Timezone:  loc.String(),
		LocalDay:  availability.DayName(day),
		LocalTime: clock.String(),
		Result:    availability.Check(s.scheduleOf(tutor), day, clock),
	}, nil
}

// ListForStudent returns the student's bookings.
func (s *BookingService) ListForStudent(ctx context.Context, studentID string, query dto.BookingListQuery) ([]models.BookingDetail, *models.Pagination, error) {
	filter, err := s.listFilter(query)
	if err != nil {
		return nil, nil, err
	}
	filter.StudentID = studentID
	return s.list(ctx, filter)
}

// ListForTutor returns bookings made with the tutor owned by tutorUserID.
func (s *BookingService) ListForTutor(ctx context.Context, tutorUserID string, query dto.BookingListQuery) ([]models.BookingDetail, *models.Pagination, error) {
	filter, err := s.listFilter(query)
	if err != nil {
		return nil, nil, err
	}
	tutor, err := s.ownTutor(ctx, tutorUserID)
	if err != nil {
		return nil, nil, err
	}
	filter.TutorID = tutor.ID
	return s.list(ctx, filter)
}

func (s *BookingService) list(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetail, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Respond lets a tutor accept or reject a pending booking.
func (s *BookingService) Respond(ctx context.Context, tutorUserID, bookingID string, accept bool) (*models.BookingDetail, error) {
	tutor, err := s.ownTutor(ctx, tutorUserID)
	if err != nil {
		return nil, err
	}
	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.TutorID != tutor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "booking belongs to another tutor")
	}

	next, kind, title := models.BookingStatusRejected, models.NotificationBookingRejected, "Booking declined"
	if accept {
		next, kind, title = models.BookingStatusAccepted, models.NotificationBookingAccepted, "Booking accepted"
	}
	if err := s.transition(ctx, booking, []models.BookingStatus{models.BookingStatusPending}, next); err != nil {
		return nil, err
	}

	s.notify(ctx, booking.StudentID, kind, title,
		fmt.Sprintf("%s %s your lesson on %s.", tutorName(booking), strings.ToLower(string(next)), describeSlot(&booking.Booking)), booking.ID)
	return booking, nil
}

// Cancel lets a student cancel their own pending or accepted booking.
func (s *BookingService) Cancel(ctx context.Context, studentID, bookingID string) (*models.BookingDetail, error) {
	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "booking belongs to another student")
	}
	from := []models.BookingStatus{models.BookingStatusPending, models.BookingStatusAccepted}
	if err := s.transition(ctx, booking, from, models.BookingStatusCancelled); err != nil {
		return nil, err
	}

	tutor, err := s.tutors.FindByID(ctx, booking.TutorID)
	if err != nil {
		s.logger.Warn("skipping cancellation notice", zap.String("booking_id", booking.ID), zap.Error(err))
		return booking, nil
	}
	s.notify(ctx, tutor.UserID, models.NotificationBookingCancelled, "Booking cancelled",
		fmt.Sprintf("The lesson on %s was cancelled by the student.", describeSlot(&booking.Booking)), booking.ID)
	return booking, nil
}

// ExportTutorBookings renders the tutor's bookings as CSV or PDF.
func (s *BookingService) ExportTutorBookings(ctx context.Context, tutorUserID string, query dto.BookingExportQuery) (*export.File, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export query")
	}
	format, err := export.ParseFormat(query.Format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export format")
	}
	filter, err := s.listFilter(dto.BookingListQuery{Status: query.Status, From: query.From, To: query.To})
	if err != nil {
		return nil, err
	}
	tutor, err := s.ownTutor(ctx, tutorUserID)
	if err != nil {
		return nil, err
	}
	filter.TutorID = tutor.ID

	bookings, err := s.repo.ListAll(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bookings")
	}

	dataset := export.Dataset{Headers: []string{"Date", "Start", "End", "Timezone", "Student", "Subject", "Status"}}
	for _, b := range bookings {
		loc, err := availability.ResolveZone(b.Timezone)
		if err != nil {
			loc = time.UTC
		}
		start := b.StartTime.In(loc)
		dataset.AddRow(
			start.Format("2006-01-02"),
			start.Format("15:04"),
			b.EndTime.In(loc).Format("15:04"),
			loc.String(),
			b.StudentName,
			b.Subject,
			string(b.Status),
		)
	}

	var data []byte
	switch format {
	case export.FormatPDF:
		data, err = s.pdf.Render(dataset, fmt.Sprintf("Bookings for %s", tutor.FullName))
	default:
		data, err = s.csv.Render(dataset)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	return &export.File{
		Name:        fmt.Sprintf("bookings-%s.%s", s.now().Format("20060102"), format),
		ContentType: format.ContentType(),
		Data:        data,
	}, nil
}

func (s *BookingService) transition(ctx context.Context, booking *models.BookingDetail, from []models.BookingStatus, next models.BookingStatus) error {
	ok, err := s.repo.TransitionStatus(ctx, booking.ID, from, next)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update booking")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("booking is %s and cannot become %s", booking.Status, next))
	}
	booking.Status = next
	booking.UpdatedAt = s.now()
	s.logger.Info("booking status changed", zap.String("booking_id", booking.ID), zap.String("status", string(next)))
	return nil
}

func (s *BookingService) listFilter(query dto.BookingListQuery) (models.BookingFilter, error) {
	if err := s.validator.Struct(query); err != nil {
		return models.BookingFilter{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking query")
	}
	page, size := models.NormalizePage(query.Page, query.PageSize)
	filter := models.BookingFilter{Status: models.BookingStatus(query.Status), Page: page, PageSize: size}
	if query.From != "" {
		from, err := availability.ParseInstant(query.From, time.UTC)
		if err != nil {
			return filter, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid from")
		}
		filter.From = &from
	}
	if query.To != "" {
		to, err := availability.ParseInstant(query.To, time.UTC)
		if err != nil {
			return filter, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid to")
		}
		filter.To = &to
	}
	return filter, nil
}

func (s *BookingService) loadTutor(ctx context.Context, id string) (*models.Tutor, error) {
	tutor, err := s.tutors.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tutor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor")
	}
	return tutor, nil
}

func (s *BookingService) ownTutor(ctx context.Context, userID string) (*models.Tutor, error) {
	tutor, err := s.tutors.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tutor profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor profile")
	}
	return tutor, nil
}

func (s *BookingService) loadBooking(ctx context.Context, id string) (*models.BookingDetail, error) {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	return booking, nil
}

// scheduleOf reads the stored schedule leniently: malformed entries are
// dropped since they could never match.
func (s *BookingService) scheduleOf(tutor *models.Tutor) availability.Schedule {
	if !tutor.Availability.Valid {
		return availability.Schedule{}
	}
	schedule, issues, err := availability.Parse(tutor.Availability.JSONText)
	if err != nil {
		s.logger.Warn("stored availability unreadable", zap.String("tutor_id", tutor.ID), zap.Error(err))
		return availability.Schedule{}
	}
	if len(issues) > 0 {
		s.logger.Debug("ignoring malformed availability entries", zap.String("tutor_id", tutor.ID), zap.Int("issues", len(issues)))
	}
	return schedule
}

func (s *BookingService) notify(ctx context.Context, userID string, kind models.NotificationType, title, body, bookingID string) {
	if s.notifier == nil || userID == "" {
		return
	}
	id := bookingID
	s.notifier.Notify(ctx, models.Notification{
		UserID:    userID,
		Type:      kind,
		Title:     title,
		Body:      body,
		BookingID: &id,
	})
}

func describeSlot(b *models.Booking) string {
	loc, err := availability.ResolveZone(b.Timezone)
	if err != nil {
		loc = time.UTC
	}
	start := b.StartTime.In(loc)
	return fmt.Sprintf("%s at %s (%s)", start.Format("Monday, 2 Jan 2006"), availability.ClockOf(start).Format12h(), loc.String())
}

func tutorName(b *models.BookingDetail) string {
	if b.TutorName != "" {
		return b.TutorName
	}
	return "Your tutor"
}
