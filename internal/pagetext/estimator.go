// Package pagetext selects the text belonging to requested PDF pages.
//
// Text extraction flattens a document into lines and loses reliable page
// breaks, so Estimate assigns each page an equal share of the non-empty lines.
// The result is approximate: a page's slice can drift from the printed page by
// several lines on documents with uneven text density. FromPages is used when
// the extractor kept per-page text.
package pagetext

import (
	"fmt"
	"strings"
)

// NoContent is returned when nothing could be produced for the requested pages.
const NoContent = "No content found for the requested pages."

// Range is the half-open line range [Start, End) assigned to a page.
type Range struct {
	Page    int
	Start   int
	End     int
	InRange bool
}

// NonEmptyLines splits text into lines and drops the blank ones.
func NonEmptyLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// LinesPerPage is floor(lineCount / totalPages), or zero when totalPages is not positive.
func LinesPerPage(lineCount, totalPages int) int {
	if totalPages <= 0 {
		return 0
	}
	return lineCount / totalPages
}

// Ranges computes the line range of each requested page, in request order.
func Ranges(lineCount, totalPages int, pages []int) []Range {
	perPage := LinesPerPage(lineCount, totalPages)
	ranges := make([]Range, 0, len(pages))
	for _, page := range pages {
		if page < 1 || page > totalPages {
			ranges = append(ranges, Range{Page: page})
			continue
		}
		start := (page - 1) * perPage
		end := page * perPage
		if end > lineCount {
			end = lineCount
		}
		if start > end {
			start = end
		}
		ranges = append(ranges, Range{Page: page, Start: start, End: end, InRange: true})
	}
	return ranges
}

// Estimate builds the text for pages from a flat extraction of a document with
// totalPages pages. Out of range pages and empty slices produce explicit
// placeholders, so the output is never empty.
func Estimate(text string, totalPages int, pages []int) string {
	lines := NonEmptyLines(text)
	blocks := make([]string, 0, len(pages))
	for _, r := range Ranges(len(lines), totalPages, pages) {
		if !r.InRange {
			blocks = append(blocks, block(r.Page, unavailable(r.Page, totalPages)))
			continue
		}
		body := strings.TrimSpace(strings.Join(lines[r.Start:r.End], "\n"))
		if body == "" {
			body = empty(r.Page)
		}
		blocks = append(blocks, block(r.Page, body))
	}
	return finish(blocks)
}

// FromPages builds the same output as Estimate from real per-page text.
// pageTexts[0] holds page 1.
func FromPages(pageTexts []string, pages []int) string {
	total := len(pageTexts)
	blocks := make([]string, 0, len(pages))
	for _, page := range pages {
		if page < 1 || page > total {
			blocks = append(blocks, block(page, unavailable(page, total)))
			continue
		}
		body := strings.TrimSpace(strings.Join(NonEmptyLines(pageTexts[page-1]), "\n"))
		if body == "" {
			body = empty(page)
		}
		blocks = append(blocks, block(page, body))
	}
	return finish(blocks)
}

func block(page int, body string) string {
	return fmt.Sprintf("--- Page %d ---\n%s", page, body)
}

func unavailable(page, total int) string {
	return fmt.Sprintf("[Page %d is not available. The document has %d pages.]", page, total)
}

func empty(page int) string {
	return fmt.Sprintf("[No text content found on page %d.]", page)
}

func finish(blocks []string) string {
	out := strings.TrimSpace(strings.Join(blocks, "\n\n"))
	if out == "" {
		return NoContent
	}
	return out
}
