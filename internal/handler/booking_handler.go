package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ncert-tutor-api/internal/dto"
	"github.com/noah-isme/ncert-tutor-api/internal/models"
	appErrors "github.com/noah-isme/ncert-tutor-api/pkg/errors"
	"github.com/noah-isme/ncert-tutor-api/pkg/export"
	"github.com/noah-isme/ncert-tutor-api/pkg/response"
)

type bookingService interface {
	Create(ctx context.Context, studentID string, req dto.CreateBookingRequest) (*dto.BookingCreated, error)
	ListForStudent(ctx context.Context, studentID string, query dto.BookingListQuery) ([]models.BookingDetail, *models.Pagination, error)
	ListForTutor(ctx context.Context, tutorUserID string, query dto.BookingListQuery) ([]models.BookingDetail, *models.Pagination, error)
	Respond(ctx context.Context, tutorUserID, bookingID string, accept bool) (*models.BookingDetail, error)
	Cancel(ctx context.Context, studentID, bookingID string) (*models.BookingDetail, error)
	ExportTutorBookings(ctx context.Context, tutorUserID string, query dto.BookingExportQuery) (*export.File, error)
}

// BookingHandler exposes lesson booking endpoints for students and tutors.
type BookingHandler struct {
	service bookingService
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(service bookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// Create godoc
// @Summary Request a lesson
// @Description Checks the tutor's weekly availability and existing bookings before storing a pending booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body dto.CreateBookingRequest true "Booking request"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}
	created, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// ListMine godoc
// @Summary List own bookings
// @Tags Bookings
// @Produce json
// @Param status query string false "Status filter"
// @Param from query string false "Start time lower bound (RFC 3339)"
// @Param to query string false "Start time upper bound (RFC 3339)"
// @Success 200 {object} response.Envelope
// @Router /bookings/me [get]
func (h *BookingHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query, ok := bindBookingQuery(c)
	if !ok {
		return
	}
	items, pagination, err := h.service.ListForStudent(c.Request.Context(), claims.UserID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Cancel godoc
// @Summary Cancel own booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	booking, err := h.service.Cancel(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// ListForTutor godoc
// @Summary List bookings for the signed in tutor
// @Tags Tutor Bookings
// @Produce json
// @Param status query string false "Status filter"
// @Success 200 {object} response.Envelope
// @Router /tutor/bookings [get]
func (h *BookingHandler) ListForTutor(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query, ok := bindBookingQuery(c)
	if !ok {
		return
	}
	items, pagination, err := h.service.ListForTutor(c.Request.Context(), claims.UserID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Accept godoc
// @Summary Accept a pending booking
// @Tags Tutor Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Router /tutor/bookings/{id}/accept [post]
func (h *BookingHandler) Accept(c *gin.Context) {
	h.respond(c, true)
}

// Reject godoc
// @Summary Reject a pending booking
// @Tags Tutor Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Router /tutor/bookings/{id}/reject [post]
func (h *BookingHandler) Reject(c *gin.Context) {
	h.respond(c, false)
}

func (h *BookingHandler) respond(c *gin.Context, accept bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	booking, err := h.service.Respond(c.Request.Context(), claims.UserID, c.Param("id"), accept)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// Export godoc
// @Summary Export tutor bookings
// @Tags Tutor Bookings
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Param status query string false "Status filter"
// @Success 200 {file} file
// @Router /tutor/bookings/export [get]
func (h *BookingHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var query dto.BookingExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	file, err := h.service.ExportTutorBookings(c.Request.Context(), claims.UserID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Name, file.ContentType, file.Data)
}

func bindBookingQuery(c *gin.Context) (dto.BookingListQuery, bool) {
	var query dto.BookingListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return query, false
	}
	return query, true
}
