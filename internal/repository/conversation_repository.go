package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ncert-tutor-api/internal/models"
)

// ConversationRepository lists student and tutor conversations.
type ConversationRepository struct {
	db *sqlx.DB
}

// NewConversationRepository creates a conversation repository.
func NewConversationRepository(db *sqlx.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// ListForUser returns conversations where the user is the student or the tutor.
func (r *ConversationRepository) ListForUser(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	const query = `SELECT c.id, c.student_id, c.tutor_id, c.created_at, c.updated_at, su.full_name AS student_name, tu.full_name AS tutor_name
FROM conversations c
JOIN users su ON su.id = c.student_id
JOIN tutors t ON t.id = c.tutor_id
JOIN users tu ON tu.id = t.user_id
WHERE c.student_id = $1 OR t.user_id = $1
ORDER BY c.updated_at DESC`
	var items []models.ConversationSummary
	if err := r.db.SelectContext(ctx, &items, query, userID); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return items, nil
}
