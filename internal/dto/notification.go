package dto

import "github.com/noah-isme/ncert-tutor-api/internal/models"

// NotificationListQuery binds notification list parameters.
type NotificationListQuery struct {
	Unread   bool `form:"unread"`
	Page     int  `form:"page"`
	PageSize int  `form:"page_size"`
}

// NotificationEvent is the payload published for live delivery.
type NotificationEvent struct {
	ID        string                  `json:"id"`
	UserID    string                  `json:"userId"`
	Type      models.NotificationType `json:"type"`
	Title     string                  `json:"title"`
	Body      string                  `json:"body"`
	BookingID *string                 `json:"bookingId,omitempty"`
	CreatedAt string                  `json:"createdAt"`
}
