package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidPath is returned for absolute, escaping or non-PDF document paths.
	ErrInvalidPath = errors.New("invalid document path")
	// ErrDocumentNotFound is returned when the document does not exist under the root.
	ErrDocumentNotFound = errors.New("document not found")
)

// Library serves textbook documents stored on disk under a root directory.
type Library struct {
	root string
}

// NewLibrary returns a library rooted at dir. The directory is created when missing.
func NewLibrary(dir string) (*Library, error) {
	if dir == "" {
		dir = "./public/ncert"
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve content root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create content root: %w", err)
	}
	return &Library{root: abs}, nil
}

// Root returns the absolute root directory.
func (l *Library) Root() string {
	return l.root
}

// Clean validates a document path relative to the root and returns it in slash form.
func Clean(rel string) (string, error) {
	rel = strings.TrimSpace(strings.ReplaceAll(rel, "\\", "/"))
	rel = strings.TrimPrefix(rel, "/pdfs/")
	if rel == "" || strings.HasPrefix(rel, "/") || filepath.IsAbs(rel) {
		return "", ErrInvalidPath
	}
	for _, part := range strings.Split(rel, "/") {
		if part == ".." {
			return "", ErrInvalidPath
		}
	}
	if !strings.EqualFold(filepath.Ext(rel), ".pdf") {
		return "", ErrInvalidPath
	}
	return filepath.ToSlash(filepath.Clean(rel)), nil
}

// Resolve maps a relative document path to an existing file on disk.
func (l *Library) Resolve(rel string) (string, error) {
	cleaned, err := Clean(rel)
	if err != nil {
		return "", err
	}
	path := filepath.Join(l.root, filepath.FromSlash(cleaned))
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrDocumentNotFound
		}
		return "", fmt.Errorf("stat document: %w", err)
	}
	if info.IsDir() {
		return "", ErrDocumentNotFound
	}
	return path, nil
}
