package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/ncert-tutor-api/internal/models"
)

// TutorRepository reads and updates tutor profiles.
type TutorRepository struct {
	db *sqlx.DB
}

// NewTutorRepository creates a tutor repository.
func NewTutorRepository(db *sqlx.DB) *TutorRepository {
	return &TutorRepository{db: db}
}

const tutorSelect = `SELECT t.id, t.user_id, u.full_name, u.email, t.bio, t.subjects, t.hourly_rate, t.timezone, t.availability, t.active, t.created_at, t.updated_at FROM tutors t JOIN users u ON u.id = t.user_id`

// FindByID returns an active tutor by identifier.
func (r *TutorRepository) FindByID(ctx context.Context, id string) (*models.Tutor, error) {
	const query = tutorSelect + ` WHERE t.id = $1 AND t.active = TRUE`
	var tutor models.Tutor
	if err := r.db.GetContext(ctx, &tutor, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find tutor: %w", err)
	}
	return &tutor, nil
}

// FindByUserID returns the tutor profile owned by a user.
func (r *TutorRepository) FindByUserID(ctx context.Context, userID string) (*models.Tutor, error) {
	const query = tutorSelect + ` WHERE t.user_id = $1`
	var tutor models.Tutor
	if err := r.db.GetContext(ctx, &tutor, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find tutor by user: %w", err)
	}
	return &tutor, nil
}

// List returns active tutors with a total count.
func (r *TutorRepository) List(ctx context.Context, filter models.TutorFilter) ([]models.Tutor, int, error) {
	conditions := []string{"t.active = TRUE"}
	var args []interface{}

	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(u.full_name) LIKE $%d OR LOWER(t.bio) LIKE $%d)", len(args), len(args)))
	}
	if filter.Subject != "" {
		args = append(args, strings.ToLower(filter.Subject))
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM unnest(t.subjects) s WHERE LOWER(s) = $%d)", len(args)))
	}

	where := " WHERE " + strings.Join(conditions, " AND ")
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	listQuery := fmt.Sprintf("%s%s ORDER BY u.full_name ASC LIMIT %d OFFSET %d", tutorSelect, where, size, offset)
	var tutors []models.Tutor
	if err := r.db.SelectContext(ctx, &tutors, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list tutors: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM tutors t JOIN users u ON u.id = t.user_id" + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count tutors: %w", err)
	}
	return tutors, total, nil
}

// UpdateAvailability replaces the stored schedule and timezone.
func (r *TutorRepository) UpdateAvailability(ctx context.Context, tutorID, timezone string, schedule []byte) error {
	const query = `UPDATE tutors SET availability = $2, timezone = $3, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, tutorID, types.JSONText(schedule), timezone, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update tutor availability: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tutor availability: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
