package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ncert-tutor-api/internal/dto"
	appErrors "github.com/noah-isme/ncert-tutor-api/pkg/errors"
	"github.com/noah-isme/ncert-tutor-api/pkg/llm"
	"github.com/noah-isme/ncert-tutor-api/pkg/storage"
)

// ChatService answers follow-up questions. The client resends the summary and
// the full history on every call; nothing is kept between requests.
type ChatService struct {
	loader    *ContentLoader
	llm       llm.Completer
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewChatService constructs a ChatService.
func NewChatService(loader *ContentLoader, completer llm.Completer, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ChatService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{loader: loader, llm: completer, metrics: metrics, validator: validate, logger: logger}
}

// Reply flattens the conversation into one prompt and returns the tutor's answer.
func (s *ChatService) Reply(ctx context.Context, req dto.ChatRequest) (*dto.ChatResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid chat payload")
	}

	data := chatPromptData{
		Summary: strings.TrimSpace(req.Summary),
		History: req.History,
		Message: strings.TrimSpace(req.Message),
	}

	if req.DocumentPath != "" && len(req.Pages) > 0 {
		if err := s.loader.CheckRequest(req.DocumentPath, req.Pages); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
		content, err := s.loader.Load(ctx, req.DocumentPath, req.Pages)
		switch {
		case err == nil:
			data.Context = content
		case errors.Is(err, storage.ErrDocumentNotFound):
			s.logger.Info("chat without document context", zap.String("document", req.DocumentPath))
		default:
			s.logger.Warn("chat document unreadable", zap.String("document", req.DocumentPath), zap.Error(err))
		}
	}

	start := time.Now()
	reply, fallback := s.complete(ctx, data)
	s.metrics.ObserveLLM("chat", fallback, time.Since(start))
	return &dto.ChatResponse{Reply: reply, Fallback: fallback}, nil
}

func (s *ChatService) complete(ctx context.Context, data chatPromptData) (string, bool) {
	prompt, err := renderPrompt("chat", data)
	if err == nil {
		var reply string
		reply, err = s.llm.Complete(ctx, tutorSystemPrompt, prompt)
		if err == nil && strings.TrimSpace(reply) != "" {
			return reply, false
		}
	}
	s.logger.Warn("chat falling back", zap.Error(err))
	text, renderErr := renderPrompt("chat_fallback", data)
	if renderErr != nil {
		return "The tutor is unavailable right now. Please try again later.", true
	}
	return strings.TrimSpace(text), true
}
