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

type notificationService interface {
	List(ctx context.Context, userID string, query dto.NotificationListQuery) ([]models.Notification, *models.Pagination, error)
	MarkRead(ctx context.Context, userID, id string) error
}

type conversationService interface {
	ListForUser(ctx context.Context, userID string) ([]models.ConversationSummary, error)
}

// InboxHandler serves a user's notifications and conversations.
type InboxHandler struct {
	notifications notificationService
	conversations conversationService
}

// NewInboxHandler constructs an InboxHandler.
func NewInboxHandler(notifications notificationService, conversations conversationService) *InboxHandler {
	return &InboxHandler{notifications: notifications, conversations: conversations}
}

// Notifications godoc
// @Summary List own notifications
// @Tags Inbox
// @Produce json
// @Param unread query bool false "Only unread"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *InboxHandler) Notifications(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var query dto.NotificationListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, pagination, err := h.notifications.List(c.Request.Context(), claims.UserID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// MarkRead godoc
// @Summary Mark a notification as read
// @Tags Inbox
// @Param id path string true "Notification ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /notifications/{id}/read [post]
func (h *InboxHandler) MarkRead(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.notifications.MarkRead(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Conversations godoc
// @Summary List own conversations
// @Tags Inbox
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /conversations [get]
func (h *InboxHandler) Conversations(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	items, err := h.conversations.ListForUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
