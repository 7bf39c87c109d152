package models

import "time"

// NotificationType identifies what happened.
type NotificationType string

const (
	NotificationBookingRequested NotificationType = "booking_requested"
	NotificationBookingAccepted  NotificationType = "booking_accepted"
	NotificationBookingRejected  NotificationType = "booking_rejected"
	NotificationBookingCancelled NotificationType = "booking_cancelled"
)

// NotificationStatus tracks delivery.
type NotificationStatus string

const (
	NotificationPending    NotificationStatus = "pending"
	NotificationDelivering NotificationStatus = "delivering"
	NotificationDelivered  NotificationStatus = "delivered"
	NotificationFailed     NotificationStatus = "failed"
)

// Notification is an in-app message for a user.
type Notification struct {
	ID          string             `db:"id" json:"id"`
	UserID      string             `db:"user_id" json:"userId"`
	Type        NotificationType   `db:"type" json:"type"`
	Title       string             `db:"title" json:"title"`
	Body        string             `db:"body" json:"body"`
	BookingID   *string            `db:"booking_id" json:"bookingId,omitempty"`
	Status      NotificationStatus `db:"status" json:"status"`
	Attempts    int                `db:"attempts" json:"attempts"`
	ReadAt      *time.Time         `db:"read_at" json:"readAt,omitempty"`
	DeliveredAt *time.Time         `db:"delivered_at" json:"deliveredAt,omitempty"`
	ClaimedAt   *time.Time         `db:"claimed_at" json:"-"`
	CreatedAt   time.Time          `db:"created_at" json:"createdAt"`
}

// NotificationFilter narrows a user's notification list.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Page       int
	PageSize   int
}
