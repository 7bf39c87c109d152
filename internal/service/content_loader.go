package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/ncert-tutor-api/internal/pagetext"
	"github.com/noah-isme/ncert-tutor-api/pkg/config"
	"github.com/noah-isme/ncert-tutor-api/pkg/pdftext"
	"github.com/noah-isme/ncert-tutor-api/pkg/storage"
)

// errNoDocumentText marks documents that resolved but yielded no text.
var errNoDocumentText = errors.New("document has no extractable text")

type documentResolver interface {
	Resolve(rel string) (string, error)
}

// ContentLoader turns a textbook path and page list into prompt-ready text.
type ContentLoader struct {
	library   documentResolver
	extractor pdftext.Extractor
	pageMode  string
	maxPages  int
	logger    *zap.Logger
}

// NewContentLoader builds a loader. pageMode is config.PageModeEstimate or config.PageModeExact.
func NewContentLoader(library documentResolver, extractor pdftext.Extractor, pageMode string, maxPages int, logger *zap.Logger) *ContentLoader {
	if extractor == nil {
		extractor = pdftext.LedongthucExtractor{}
	}
	if pageMode != config.PageModeExact {
		pageMode = config.PageModeEstimate
	}
	if maxPages <= 0 {
		maxPages = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContentLoader{library: library, extractor: extractor, pageMode: pageMode, maxPages: maxPages, logger: logger}
}

// MaxPages is the largest page list accepted per request.
func (l *ContentLoader) MaxPages() int {
	return l.maxPages
}

// CheckRequest validates the path and page count without touching the disk.
func (l *ContentLoader) CheckRequest(path string, pages []int) error {
	if _, err := storage.Clean(path); err != nil {
		return err
	}
	if len(pages) > l.maxPages {
		return fmt.Errorf("at most %d pages may be requested at once", l.maxPages)
	}
	return nil
}

// Load returns the text of pages. Missing, unreadable and empty documents are
// reported as errors so callers can fall back to templated content.
func (l *ContentLoader) Load(ctx context.Context, path string, pages []int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	file, err := l.library.Resolve(path)
	if err != nil {
		return "", err
	}
	doc, err := l.extractor.Extract(file)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", path, err)
	}
	if doc.PageCount == 0 || strings.TrimSpace(doc.Text) == "" {
		return "", errNoDocumentText
	}

	if l.pageMode == config.PageModeExact && len(doc.Pages) == doc.PageCount {
		return pagetext.FromPages(doc.Pages, pages), nil
	}
	return pagetext.Estimate(doc.Text, doc.PageCount, pages), nil
}
