package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ncert-tutor-api/internal/dto"
	"github.com/noah-isme/ncert-tutor-api/internal/middleware"
	appErrors "github.com/noah-isme/ncert-tutor-api/pkg/errors"
	"github.com/noah-isme/ncert-tutor-api/pkg/export"
	"github.com/noah-isme/ncert-tutor-api/pkg/response"
)

type summaryService interface {
	Summarize(ctx context.Context, req dto.SummaryRequest) (*dto.SummaryResponse, error)
	ExportPDF(ctx context.Context, req dto.SummaryRequest) (*export.File, error)
}

type chatService interface {
	Reply(ctx context.Context, req dto.ChatRequest) (*dto.ChatResponse, error)
}

type exerciseService interface {
	Generate(ctx context.Context, req dto.ExerciseRequest) (*dto.ExerciseResponse, error)
}

// ContentHandler exposes the textbook study tools.
type ContentHandler struct {
	summaries summaryService
	chat      chatService
	exercises exerciseService
}

// NewContentHandler constructs a ContentHandler.
func NewContentHandler(summaries summaryService, chat chatService, exercises exerciseService) *ContentHandler {
	return &ContentHandler{summaries: summaries, chat: chat, exercises: exercises}
}

// Summarize godoc
// @Summary Summarize textbook pages
// @Description Falls back to a study guide template when the document or the model is unavailable
// @Tags Content
// @Accept json
// @Produce json
// @Param payload body dto.SummaryRequest true "Summary request"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /content/summaries [post]
func (h *ContentHandler) Summarize(c *gin.Context) {
	var req dto.SummaryRequest
	if !bindContent(c, &req) {
		return
	}
	res, err := h.summaries.Summarize(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, res.Cached)
	middleware.SetFallback(c, res.Fallback)
	response.JSON(c, http.StatusOK, res, nil, middleware.ExtractMeta(c))
}

// SummaryPDF godoc
// @Summary Download a summary as PDF
// @Tags Content
// @Accept json
// @Produce application/pdf
// @Param payload body dto.SummaryRequest true "Summary request"
// @Success 200 {file} file
// @Router /content/summaries/pdf [post]
func (h *ContentHandler) SummaryPDF(c *gin.Context) {
	var req dto.SummaryRequest
	if !bindContent(c, &req) {
		return
	}
	file, err := h.summaries.ExportPDF(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Name, file.ContentType, file.Data)
}

// Chat godoc
// @Summary Ask the tutor a follow-up question
// @Description The client sends the summary and the full history on every call
// @Tags Content
// @Accept json
// @Produce json
// @Param payload body dto.ChatRequest true "Chat request"
// @Success 200 {object} response.Envelope
// @Router /content/chat [post]
func (h *ContentHandler) Chat(c *gin.Context) {
	var req dto.ChatRequest
	if !bindContent(c, &req) {
		return
	}
	res, err := h.chat.Reply(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetFallback(c, res.Fallback)
	response.JSON(c, http.StatusOK, res, nil, middleware.ExtractMeta(c))
}

// Exercises godoc
// @Summary Generate practice exercises
// @Tags Content
// @Accept json
// @Produce json
// @Param payload body dto.ExerciseRequest true "Exercise request"
// @Success 200 {object} response.Envelope
// @Router /content/exercises [post]
func (h *ContentHandler) Exercises(c *gin.Context) {
	var req dto.ExerciseRequest
	if !bindContent(c, &req) {
		return
	}
	res, err := h.exercises.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetFallback(c, res.Fallback)
	response.JSON(c, http.StatusOK, res, nil, middleware.ExtractMeta(c))
}

func bindContent(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid request payload"))
		return false
	}
	return true
}
