package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ncert-tutor-api/internal/availability"
	"github.com/noah-isme/ncert-tutor-api/internal/dto"
	"github.com/noah-isme/ncert-tutor-api/internal/models"
	appErrors "github.com/noah-isme/ncert-tutor-api/pkg/errors"
)

type tutorRepository interface {
	FindByID(ctx context.Context, id string) (*models.Tutor, error)
	FindByUserID(ctx context.Context, userID string) (*models.Tutor, error)
	List(ctx context.Context, filter models.TutorFilter) ([]models.Tutor, int, error)
	UpdateAvailability(ctx context.Context, tutorID, timezone string, schedule []byte) error
}

// TutorService manages tutor profiles and weekly availability.
type TutorService struct {
	repo            tutorRepository
	validator       *validator.Validate
	logger          *zap.Logger
	defaultTimezone string
}

// NewTutorService constructs a TutorService.
func NewTutorService(repo tutorRepository, validate *validator.Validate, logger *zap.Logger, defaultTimezone string) *TutorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TutorService{repo: repo, validator: validate, logger: logger, defaultTimezone: defaultTimezone}
}

// List returns active tutors plus pagination data.
func (s *TutorService) List(ctx context.Context, query dto.TutorListQuery) ([]models.Tutor, *models.Pagination, error) {
	page, size := models.NormalizePage(query.Page, query.PageSize)
	filter := models.TutorFilter{
		Search:   strings.TrimSpace(query.Search),
		Subject:  strings.TrimSpace(query.Subject),
		Page:     page,
		PageSize: size,
	}
	tutors, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tutors")
	}
	return tutors, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns an active tutor by id.
func (s *TutorService) Get(ctx context.Context, id string) (*models.Tutor, error) {
	tutor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tutor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor")
	}
	return tutor, nil
}

// ForUser returns the tutor profile owned by a TUTOR user.
func (s *TutorService) ForUser(ctx context.Context, userID string) (*models.Tutor, error) {
	tutor, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tutor profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor profile")
	}
	return tutor, nil
}

// GetSchedule returns the canonical view of a tutor's schedule. Stored entries
// that cannot be read are reported as issues and otherwise ignored.
func (s *TutorService) GetSchedule(ctx context.Context, tutorID string) (*dto.AvailabilityResponse, error) {
	tutor, err := s.Get(ctx, tutorID)
	if err != nil {
		return nil, err
	}
	schedule, issues := s.storedSchedule(tutor)
	return s.availabilityResponse(tutor.ID, s.timezoneOf(tutor), schedule, issues), nil
}

// UpdateSchedule replaces the schedule of the tutor owned by userID. Either
// accepted shape is read, and the canonical list form is stored.
func (s *TutorService) UpdateSchedule(ctx context.Context, userID string, req dto.UpdateAvailabilityRequest) (*dto.AvailabilityResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}

	tutor, err := s.ForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	schedule, issues, err := availability.Parse(req.Schedule)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability schedule")
	}
	if len(issues) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, describeIssues(issues))
	}

	timezone := strings.TrimSpace(req.Timezone)
	if timezone == "" {
		timezone = tutor.Timezone
	}
	if _, err := availability.ResolveZone(timezone); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timezone")
	}

	canonical, err := json.Marshal(schedule)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode schedule")
	}

	if err := s.repo.UpdateAvailability(ctx, tutor.ID, timezone, canonical); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tutor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update availability")
	}

	s.logger.Info("tutor availability updated", zap.String("tutor_id", tutor.ID), zap.Int("windows", len(schedule)))

	tutor.Timezone = timezone
	return s.availabilityResponse(tutor.ID, s.timezoneOf(tutor), schedule, nil), nil
}

func (s *TutorService) storedSchedule(tutor *models.Tutor) (availability.Schedule, []availability.Issue) {
	if !tutor.Availability.Valid {
		return availability.Schedule{}, nil
	}
	schedule, issues, err := availability.Parse(tutor.Availability.JSONText)
	if err != nil {
		s.logger.Warn("stored availability unreadable", zap.String("tutor_id", tutor.ID), zap.Error(err))
		return availability.Schedule{}, []availability.Issue{{Path: "$", Message: err.Error()}}
	}
	if len(issues) > 0 {
		s.logger.Warn("stored availability has malformed entries", zap.String("tutor_id", tutor.ID), zap.Int("issues", len(issues)))
	}
	return schedule, issues
}

func (s *TutorService) timezoneOf(tutor *models.Tutor) string {
	if tutor.Timezone != "" {
		return tutor.Timezone
	}
	if s.defaultTimezone != "" {
		return s.defaultTimezone
	}
	return "UTC"
}

func (s *TutorService) availabilityResponse(tutorID, timezone string, schedule availability.Schedule, issues []availability.Issue) *dto.AvailabilityResponse {
	days := make([]dto.DaySlots, 0, 7)
	for _, day := range schedule.Days() {
		windows := schedule.ForDay(day)
		slots := make([]string, 0, len(windows))
		for _, w := range windows {
			slots = append(slots, availability.FormatWindow(w))
		}
		days = append(days, dto.DaySlots{DayOfWeek: int(day), Day: day.String(), Slots: slots})
	}
	return &dto.AvailabilityResponse{
		TutorID:  tutorID,
		Timezone: timezone,
		Schedule: schedule.Entries(),
		Days:     days,
		Issues:   issues,
	}
}

func describeIssues(issues []availability.Issue) string {
	parts := make([]string, 0, len(issues))
	for _, issue := range issues {
		parts = append(parts, fmt.Sprintf("%s: %s", issue.Path, issue.Message))
	}
	return "invalid availability schedule: " + strings.Join(parts, "; ")
}
