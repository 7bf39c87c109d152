package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ncert-tutor-api/internal/dto"
	appErrors "github.com/noah-isme/ncert-tutor-api/pkg/errors"
	"github.com/noah-isme/ncert-tutor-api/pkg/export"
	"github.com/noah-isme/ncert-tutor-api/pkg/llm"
	"github.com/noah-isme/ncert-tutor-api/pkg/storage"
)

// SummaryService produces summaries of textbook pages.
type SummaryService struct {
	loader    *ContentLoader
	llm       llm.Completer
	cache     *CacheService
	metrics   *MetricsService
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
	ttl       time.Duration
}

// NewSummaryService constructs a SummaryService. cache may be nil.
func NewSummaryService(loader *ContentLoader, completer llm.Completer, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, ttl time.Duration) *SummaryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SummaryService{
		loader:    loader,
		llm:       completer,
		cache:     cache,
		metrics:   metrics,
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
		ttl:       ttl,
	}
}

// Summarize returns the summary for the requested pages. Document and model
// failures produce a templated summary flagged as a fallback.
func (s *SummaryService) Summarize(ctx context.Context, req dto.SummaryRequest) (*dto.SummaryResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid summary payload")
	}
	if req.SummaryKind == "" {
		req.SummaryKind = dto.SummaryBrief
	}
	if err := s.loader.CheckRequest(req.DocumentPath, req.Pages); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	key := summaryCacheKey(req)
	if req.Refresh {
		s.cache.Invalidate(ctx, key)
	} else {
		var cached dto.SummaryResponse
		if s.cache.Get(ctx, key, &cached) {
			cached.Cached = true
			return &cached, nil
		}
	}

	start := time.Now()
	text, fallback := s.generate(ctx, req)
	s.metrics.ObserveLLM("summary", fallback, time.Since(start))

	res := &dto.SummaryResponse{
		SummaryText: text,
		SummaryKind: req.SummaryKind,
		Pages:       req.Pages,
		Fallback:    fallback,
	}
	if !fallback {
		s.cache.Set(ctx, key, res, s.ttl)
	}
	return res, nil
}

// ExportPDF renders the summary for req as a PDF document.
func (s *SummaryService) ExportPDF(ctx context.Context, req dto.SummaryRequest) (*export.File, error) {
	summary, err := s.Summarize(ctx, req)
	if err != nil {
		return nil, err
	}
	title := req.Title
	if title == "" {
		title = "Chapter summary"
	}
	subtitle := fmt.Sprintf("%s, pages %s (%s)", req.DocumentPath, joinPages(req.Pages), strings.ReplaceAll(string(summary.SummaryKind), "_", " "))
	data, err := s.pdf.RenderText(title, subtitle, summary.SummaryText)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render summary pdf")
	}
	return &export.File{
		Name:        "summary-" + strings.TrimPrefix(summaryCacheKey(req), "summary:")[:12] + ".pdf",
		ContentType: export.FormatPDF.ContentType(),
		Data:        data,
	}, nil
}

func (s *SummaryService) generate(ctx context.Context, req dto.SummaryRequest) (string, bool) {
	data := summaryPromptData{Title: req.Title, Pages: req.Pages, Instruction: summaryInstructions[req.SummaryKind]}

	content, err := s.loader.Load(ctx, req.DocumentPath, req.Pages)
	if err != nil {
		level := s.logger.Warn
		if errors.Is(err, storage.ErrDocumentNotFound) {
			level = s.logger.Info
		}
		level("summary falling back: document unavailable", zap.String("document", req.DocumentPath), zap.Error(err))
		return s.fallback(data), true
	}
	data.Content = content

	prompt, err := renderPrompt("summary", data)
	if err != nil {
		s.logger.Error("render summary prompt", zap.Error(err))
		return s.fallback(data), true
	}
	text, err := s.llm.Complete(ctx, tutorSystemPrompt, prompt)
	if err != nil || strings.TrimSpace(text) == "" {
		s.logger.Warn("summary falling back: completion failed", zap.String("document", req.DocumentPath), zap.Error(err))
		return s.fallback(data), true
	}
	return text, false
}

func (s *SummaryService) fallback(data summaryPromptData) string {
	text, err := renderPrompt("summary_fallback", data)
	if err != nil {
		return "Summary unavailable."
	}
	return strings.TrimSpace(text)
}

func summaryCacheKey(req dto.SummaryRequest) string {
	cleaned, err := storage.Clean(req.DocumentPath)
	if err != nil {
		cleaned = req.DocumentPath
	}
	sum := sha256.Sum256([]byte(strings.Join([]string{cleaned, string(req.SummaryKind), joinPages(req.Pages), req.Title}, "|")))
	return "summary:" + hex.EncodeToString(sum[:])
}

func joinPages(pages []int) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		parts = append(parts, fmt.Sprint(p))
	}
	return strings.Join(parts, ", ")
}
