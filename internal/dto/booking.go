package dto

import (
	"github.com/noah-isme/ncert-tutor-api/internal/availability"
	"github.com/noah-isme/ncert-tutor-api/internal/models"
)

// CreateBookingRequest is submitted by a student. StartTime and EndTime accept
// RFC 3339 instants or wall clock values ("2024-01-01T10:30") read in Timezone.
type CreateBookingRequest struct {
	TutorID   string `json:"tutorId" validate:"required"`
	StartTime string `json:"startTime" validate:"required"`
	EndTime   string `json:"endTime" validate:"required"`
	Timezone  string `json:"timezone" validate:"omitempty,max=64"`
	Subject   string `json:"subject" validate:"omitempty,max=120"`
}

// BookingListQuery binds list filters from the query string.
type BookingListQuery struct {
	Status   string `form:"status" validate:"omitempty,oneof=pending accepted rejected cancelled"`
	From     string `form:"from"`
	To       string `form:"to"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// BookingCreated is returned after a successful booking request.
type BookingCreated struct {
	models.Booking
	ConversationID string `json:"conversationId"`
}

// BookingExportQuery binds the tutor export parameters.
type BookingExportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf CSV PDF"`
	Status string `form:"status" validate:"omitempty,oneof=pending accepted rejected cancelled"`
	From   string `form:"from"`
	To     string `form:"to"`
}

// AvailabilityCheckQuery binds the dry-run parameters.
type AvailabilityCheckQuery struct {
	StartTime string `form:"startTime" validate:"required"`
	Timezone  string `form:"timezone" validate:"omitempty,max=64"`
}

// AvailabilityCheckResponse reports a dry-run availability result.
type AvailabilityCheckResponse struct {
	TutorID   string              `json:"tutorId"`
	Timezone  string              `json:"timezone"`
	LocalDay  string              `json:"localDay"`
	LocalTime string              `json:"localTime"`
	Result    availability.Result `json:"result"`
}
