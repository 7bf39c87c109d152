package models

import "time"

// Conversation links one student and one tutor.
type Conversation struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"studentId"`
	TutorID   string    `db:"tutor_id" json:"tutorId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// ConversationSummary is a conversation with the counterpart names.
type ConversationSummary struct {
	Conversation
	StudentName string `db:"student_name" json:"studentName"`
	TutorName   string `db:"tutor_name" json:"tutorName"`
}
