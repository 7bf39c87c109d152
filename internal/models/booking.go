package models

import "time"

// BookingStatus captures the lifecycle of a lesson booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusAccepted  BookingStatus = "accepted"
	BookingStatusRejected  BookingStatus = "rejected"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking is a reserved lesson between a student and a tutor.
type Booking struct {
	ID        string        `db:"id" json:"id"`
	TutorID   string        `db:"tutor_id" json:"tutorId"`
	StudentID string        `db:"student_id" json:"studentId"`
	StartTime time.Time     `db:"start_time" json:"startTime"`
	EndTime   time.Time     `db:"end_time" json:"endTime"`
	Subject   string        `db:"subject" json:"subject"`
	Timezone  string        `db:"timezone" json:"timezone"`
	Status    BookingStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time     `db:"updated_at" json:"updatedAt"`
}

// BookingDetail joins a booking with display names.
type BookingDetail struct {
	Booking
	TutorName   string `db:"tutor_name" json:"tutorName"`
	StudentName string `db:"student_name" json:"studentName"`
}

// BookingFilter narrows booking listings.
type BookingFilter struct {
	TutorID   string
	StudentID string
	Status    BookingStatus
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}
