package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
)

// Tutor is the teaching profile attached to a TUTOR user.
type Tutor struct {
	ID         string         `db:"id" json:"id"`
	UserID     string         `db:"user_id" json:"userId"`
	FullName   string         `db:"full_name" json:"fullName"`
	Email      string         `db:"email" json:"email"`
	Bio        string         `db:"bio" json:"bio"`
	Subjects   pq.StringArray `db:"subjects" json:"subjects"`
	HourlyRate float64        `db:"hourly_rate" json:"hourlyRate"`
	Timezone   string         `db:"timezone" json:"timezone"`
	// Availability is stored as received historically: either the list or the
	// day map shape. Writes store the list shape.
	Availability types.NullJSONText `db:"availability" json:"-"`
	Active       bool               `db:"active" json:"active"`
	CreatedAt    time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time          `db:"updated_at" json:"updatedAt"`
}

// TutorFilter captures filtering options for listing tutors.
type TutorFilter struct {
	Search   string
	Subject  string
	Page     int
	PageSize int
}
