package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ncert-tutor-api/internal/dto"
	"github.com/noah-isme/ncert-tutor-api/internal/models"
	appErrors "github.com/noah-isme/ncert-tutor-api/pkg/errors"
	"github.com/noah-isme/ncert-tutor-api/pkg/response"
)

type tutorService interface {
	List(ctx context.Context, query dto.TutorListQuery) ([]models.Tutor, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Tutor, error)
	ForUser(ctx context.Context, userID string) (*models.Tutor, error)
	GetSchedule(ctx context.Context, tutorID string) (*dto.AvailabilityResponse, error)
	UpdateSchedule(ctx context.Context, userID string, req dto.UpdateAvailabilityRequest) (*dto.AvailabilityResponse, error)
}

type availabilityChecker interface {
	CheckAvailability(ctx context.Context, tutorID string, query dto.AvailabilityCheckQuery) (*dto.AvailabilityCheckResponse, error)
}

// TutorHandler exposes tutor profiles and weekly availability.
type TutorHandler struct {
	tutors   tutorService
	bookings availabilityChecker
}

// NewTutorHandler constructs a TutorHandler.
func NewTutorHandler(tutors tutorService, bookings availabilityChecker) *TutorHandler {
	return &TutorHandler{tutors: tutors, bookings: bookings}
}

// List godoc
// @Summary List tutors
// @Tags Tutors
// @Produce json
// @Param search query string false "Name search"
// @Param subject query string false "Subject filter"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /tutors [get]
func (h *TutorHandler) List(c *gin.Context) {
	var query dto.TutorListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, pagination, err := h.tutors.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get tutor profile
// @Tags Tutors
// @Produce json
// @Param id path string true "Tutor ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tutors/{id} [get]
func (h *TutorHandler) Get(c *gin.Context) {
	tutor, err := h.tutors.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tutor, nil)
}

// Me godoc
// @Summary Get own tutor profile
// @Tags Tutors
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /tutors/me [get]
func (h *TutorHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	tutor, err := h.tutors.ForUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tutor, nil)
}

// Availability godoc
// @Summary Get tutor weekly availability
// @Description Returns the schedule normalized to the list shape, grouped by day
// @Tags Tutors
// @Produce json
// @Param id path string true "Tutor ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tutors/{id}/availability [get]
func (h *TutorHandler) Availability(c *gin.Context) {
	res, err := h.tutors.GetSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// UpdateAvailability godoc
// @Summary Replace own weekly availability
// @Description Accepts the list shape or the day map shape
// @Tags Tutors
// @Accept json
// @Produce json
// @Param payload body dto.UpdateAvailabilityRequest true "Schedule"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /tutors/me/availability [put]
func (h *TutorHandler) UpdateAvailability(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability payload"))
		return
	}
	res, err := h.tutors.UpdateSchedule(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// CheckAvailability godoc
// @Summary Check whether a tutor is free at a time
// @Description Runs the availability resolver without booking
// @Tags Tutors
// @Produce json
// @Param id path string true "Tutor ID"
// @Param startTime query string true "RFC 3339 instant or local wall clock time"
// @Param timezone query string false "IANA zone for wall clock times"
// @Success 200 {object} response.Envelope
// @Router /tutors/{id}/availability/check [get]
func (h *TutorHandler) CheckAvailability(c *gin.Context) {
	var query dto.AvailabilityCheckQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	res, err := h.bookings.CheckAvailability(c.Request.Context(), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
