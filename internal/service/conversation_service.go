package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/ncert-tutor-api/internal/models"
	appErrors "github.com/noah-isme/ncert-tutor-api/pkg/errors"
)

type conversationRepository interface {
	ListForUser(ctx context.Context, userID string) ([]models.ConversationSummary, error)
}

// ConversationService lists the conversations created by bookings.
type ConversationService struct {
	repo   conversationRepository
	logger *zap.Logger
}

// NewConversationService constructs a ConversationService.
func NewConversationService(repo conversationRepository, logger *zap.Logger) *ConversationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationService{repo: repo, logger: logger}
}

// ListForUser returns conversations where the user takes part, newest first.
func (s *ConversationService) ListForUser(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	items, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		s.logger.Error("list conversations", zap.String("user_id", userID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list conversations")
	}
	if items == nil {
		items = []models.ConversationSummary{}
	}
	return items, nil
}
