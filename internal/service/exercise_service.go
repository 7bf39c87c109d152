package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/ncert-tutor-api/internal/dto"
	"github.com/noah-isme/ncert-tutor-api/internal/exercise"
	appErrors "github.com/noah-isme/ncert-tutor-api/pkg/errors"
	"github.com/noah-isme/ncert-tutor-api/pkg/llm"
)

const defaultExerciseCount = 5

// ExerciseService generates matching and fill in the blank exercises.
type ExerciseService struct {
	loader    *ContentLoader
	llm       llm.Completer
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExerciseService constructs an ExerciseService.
func NewExerciseService(loader *ContentLoader, completer llm.Completer, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ExerciseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExerciseService{loader: loader, llm: completer, metrics: metrics, validator: validate, logger: logger}
}

// Generate builds the requested exercise kinds concurrently. Each kind falls
// back to a heuristic generator when the model fails or returns unusable JSON.
func (s *ExerciseService) Generate(ctx context.Context, req dto.ExerciseRequest) (*dto.ExerciseResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exercise payload")
	}
	if err := s.loader.CheckRequest(req.DocumentPath, req.Pages); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	kinds := req.Kinds
	if len(kinds) == 0 {
		kinds = []dto.ExerciseKind{dto.ExerciseMatching, dto.ExerciseFillBlank}
	}
	count := req.Count
	if count <= 0 {
		count = defaultExerciseCount
	}

	content, err := s.loader.Load(ctx, req.DocumentPath, req.Pages)
	documentOK := err == nil
	if !documentOK {
		s.logger.Warn("exercises falling back: document unavailable", zap.String("document", req.DocumentPath), zap.Error(err))
		content, _ = renderPrompt("summary_fallback", summaryPromptData{Pages: req.Pages})
	}

	res := &dto.ExerciseResponse{}
	var matchingFallback, fillFallback bool
	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range kinds {
		switch kind {
		case dto.ExerciseMatching:
			g.Go(func() error {
				res.Matching, matchingFallback = s.matching(gctx, content, count, documentOK)
				return gctx.Err()
			})
		case dto.ExerciseFillBlank:
			g.Go(func() error {
				res.FillBlank, fillFallback = s.fillBlank(gctx, content, count, documentOK)
				return gctx.Err()
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "exercise generation interrupted")
	}
	res.Fallback = matchingFallback || fillFallback
	return res, nil
}

type matchingOutput struct {
	Pairs []dto.MatchingPair `json:"pairs"`
}

type fillBlankOutput struct {
	Questions []dto.FillBlankQuestion `json:"questions"`
}

func (s *ExerciseService) matching(ctx context.Context, content string, count int, useModel bool) (*dto.MatchingExercise, bool) {
	if useModel {
		start := time.Now()
		var out matchingOutput
		err := s.completeJSON(ctx, "matching", exercisePromptData{Count: count, Content: content}, &out)
		pairs := validPairs(out.Pairs, count)
		if err == nil && len(pairs) > 0 {
			s.metrics.ObserveLLM("exercise_matching", false, time.Since(start))
			return &dto.MatchingExercise{Pairs: pairs}, false
		}
		s.metrics.ObserveLLM("exercise_matching", true, time.Since(start))
		s.logger.Warn("matching exercise falling back", zap.Error(err))
	}
	pairs := make([]dto.MatchingPair, 0, count)
	for _, p := range exercise.Matching(content, count) {
		pairs = append(pairs, dto.MatchingPair{Term: p.Term, Definition: p.Definition})
	}
	return &dto.MatchingExercise{Pairs: pairs}, true
}

func (s *ExerciseService) fillBlank(ctx context.Context, content string, count int, useModel bool) ([]dto.FillBlankQuestion, bool) {
	if useModel {
		start := time.Now()
		var out fillBlankOutput
		err := s.completeJSON(ctx, "fill_blank", exercisePromptData{Count: count, Content: content}, &out)
		questions := validQuestions(out.Questions, count)
		if err == nil && len(questions) > 0 {
			s.metrics.ObserveLLM("exercise_fill_blank", false, time.Since(start))
			return questions, false
		}
		s.metrics.ObserveLLM("exercise_fill_blank", true, time.Since(start))
		s.logger.Warn("fill in the blank exercise falling back", zap.Error(err))
	}
	generated := exercise.FillBlanks(content, count)
	questions := make([]dto.FillBlankQuestion, 0, len(generated))
	for _, q := range generated {
		questions = append(questions, dto.FillBlankQuestion{Sentence: q.Sentence, Answer: q.Answer, Options: q.Options})
	}
	return questions, true
}

func (s *ExerciseService) completeJSON(ctx context.Context, name string, data exercisePromptData, dest interface{}) error {
	prompt, err := renderPrompt(name, data)
	if err != nil {
		return fmt.Errorf("render %s prompt: %w", name, err)
	}
	raw, err := s.llm.Complete(ctx, tutorSystemPrompt, prompt)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), dest); err != nil {
		return fmt.Errorf("decode %s output: %w", name, err)
	}
	return nil
}

// stripCodeFence removes a surrounding ```json fence that models often add.
func stripCodeFence(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	raw = strings.TrimPrefix(raw, "```")
	if nl := strings.IndexByte(raw, '\n'); nl >= 0 {
		raw = raw[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "```"))
}

func validPairs(pairs []dto.MatchingPair, limit int) []dto.MatchingPair {
	out := make([]dto.MatchingPair, 0, len(pairs))
	for _, p := range pairs {
		p.Term, p.Definition = strings.TrimSpace(p.Term), strings.TrimSpace(p.Definition)
		if p.Term == "" || p.Definition == "" {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out
}

var errBadQuestion = errors.New("question has no blank or answer outside options")

func checkQuestion(q dto.FillBlankQuestion) error {
	if !strings.Contains(q.Sentence, exercise.Blank) || strings.TrimSpace(q.Answer) == "" {
		return errBadQuestion
	}
	if len(q.Options) == 0 {
		return nil
	}
	for _, o := range q.Options {
		if strings.EqualFold(strings.TrimSpace(o), strings.TrimSpace(q.Answer)) {
			return nil
		}
	}
	return errBadQuestion
}

func validQuestions(questions []dto.FillBlankQuestion, limit int) []dto.FillBlankQuestion {
	out := make([]dto.FillBlankQuestion, 0, len(questions))
	for _, q := range questions {
		if checkQuestion(q) != nil {
			continue
		}
		out = append(out, q)
		if len(out) == limit {
			break
		}
	}
	return out
}
