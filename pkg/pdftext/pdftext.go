// Package pdftext extracts plain text from PDF files.
package pdftext

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Document is the extracted text of a PDF.
type Document struct {
	Text      string
	PageCount int
	// Pages holds per-page text, index 0 is page 1. Pages that failed to
	// extract are empty strings.
	Pages []string
}

// Extractor reads a PDF at path.
type Extractor interface {
	Extract(path string) (*Document, error)
}

// LedongthucExtractor extracts text with github.com/ledongthuc/pdf.
type LedongthucExtractor struct{}

// Extract opens the file and collects the plain text of every page.
func (e LedongthucExtractor) Extract(path string) (*Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	total := r.NumPage()

	doc := &Document{PageCount: total, Pages: make([]string, total)}
	var text strings.Builder
	for i := 1; i <= total; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		doc.Pages[i-1] = content
		text.WriteString(content)
		text.WriteString("\n")
	}
	doc.Text = text.String()
	return doc, nil
}
