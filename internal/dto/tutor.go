package dto

import (
	"encoding/json"

	"github.com/noah-isme/ncert-tutor-api/internal/availability"
)

// UpdateAvailabilityRequest replaces a tutor's weekly schedule. Schedule may use
// the list or the day map shape.
type UpdateAvailabilityRequest struct {
	Timezone string          `json:"timezone" validate:"omitempty,max=64"`
	Schedule json.RawMessage `json:"schedule" validate:"required"`
}

// DaySlots groups the windows of one weekday for display.
type DaySlots struct {
	DayOfWeek int      `json:"dayOfWeek"`
	Day       string   `json:"day"`
	Slots     []string `json:"slots"`
}

// AvailabilityResponse is the canonical view of a tutor's schedule.
type AvailabilityResponse struct {
	TutorID  string               `json:"tutorId"`
	Timezone string               `json:"timezone"`
	Schedule []availability.Entry `json:"schedule"`
	Days     []DaySlots           `json:"days"`
	Issues   []availability.Issue `json:"issues,omitempty"`
}

// TutorListQuery binds tutor search parameters.
type TutorListQuery struct {
	Search   string `form:"search"`
	Subject  string `form:"subject"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}
