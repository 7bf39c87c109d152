package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ncert-tutor-api/internal/dto"
	"github.com/noah-isme/ncert-tutor-api/pkg/config"
	appErrors "github.com/noah-isme/ncert-tutor-api/pkg/errors"
	"github.com/noah-isme/ncert-tutor-api/pkg/pdftext"
	"github.com/noah-isme/ncert-tutor-api/pkg/storage"
)

type stubCompleter struct {
	mu      sync.Mutex
	prompts []string
	respond func(prompt string) (string, error)
}

func (c *stubCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, user)
	c.mu.Unlock()
	if c.respond == nil {
		return "", errors.New("no model")
	}
	return c.respond(user)
}

func (c *stubCompleter) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prompts)
}

type stubExtractor struct {
	doc *pdftext.Document
	err error
}

func (e stubExtractor) Extract(path string) (*pdftext.Document, error) {
	return e.doc, e.err
}

type memoryCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = make(map[string][]byte)
	}
	m.items[key] = raw
	return nil
}

func (m *memoryCache) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

const chapterPath = "class10/science/chapter1.pdf"

func hundredLineDocument() *pdftext.Document {
	var b strings.Builder
	for i := 1; i <= 100; i++ {
		fmt.Fprintf(&b, "line %d\n\n", i)
	}
	return &pdftext.Document{Text: b.String(), PageCount: 10}
}

func newTestLoader(t *testing.T, extractor pdftext.Extractor) *ContentLoader {
	t.Helper()
	root := t.TempDir()
	full := filepath.Join(root, filepath.FromSlash(chapterPath))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte("%PDF-1.4"), 0o644))
	library, err := storage.NewLibrary(root)
	require.NoError(t, err)
	return NewContentLoader(library, extractor, config.PageModeEstimate, 5, nil)
}

func TestSummaryServiceSendsEstimatedPageText(t *testing.T) {
	completer := &stubCompleter{respond: func(string) (string, error) { return "Plants make food.", nil }}
	cache := NewCacheService(&memoryCache{}, nil, time.Hour, nil, true)
	svc := NewSummaryService(newTestLoader(t, stubExtractor{doc: hundredLineDocument()}), completer, cache, nil, nil, nil, time.Hour)

	req := dto.SummaryRequest{DocumentPath: chapterPath, Pages: []int{3}, SummaryKind: dto.SummaryKeyPoints}
	res, err := svc.Summarize(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Plants make food.", res.SummaryText)
	assert.False(t, res.Fallback)
	assert.False(t, res.Cached)

	require.Equal(t, 1, completer.calls())
	prompt := completer.prompts[0]
	assert.Contains(t, prompt, "--- Page 3 ---\nline 21\n")
	assert.Contains(t, prompt, "line 30")
	assert.NotContains(t, prompt, "line 31")
	assert.NotContains(t, prompt, "line 20\n")
	assert.Contains(t, prompt, "bullet lines")

	again, err := svc.Summarize(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, 1, completer.calls())

	req.Refresh = true
	_, err = svc.Summarize(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, completer.calls())
}

func TestSummaryServiceMarksOutOfRangePages(t *testing.T) {
	completer := &stubCompleter{respond: func(string) (string, error) { return "ok", nil }}
	svc := NewSummaryService(newTestLoader(t, stubExtractor{doc: hundredLineDocument()}), completer, nil, nil, nil, nil, time.Hour)

	_, err := svc.Summarize(context.Background(), dto.SummaryRequest{DocumentPath: chapterPath, Pages: []int{1, 50}})
	require.NoError(t, err)
	prompt := completer.prompts[0]
	first := strings.Index(prompt, "--- Page 1 ---")
	last := strings.Index(prompt, "[Page 50 is not available. The document has 10 pages.]")
	require.GreaterOrEqual(t, first, 0)
	require.Greater(t, last, first)
}

func TestSummaryServiceFallsBackWhenDocumentMissing(t *testing.T) {
	completer := &stubCompleter{respond: func(string) (string, error) { return "never", nil }}
	cache := NewCacheService(&memoryCache{}, nil, time.Hour, nil, true)
	svc := NewSummaryService(newTestLoader(t, stubExtractor{doc: hundredLineDocument()}), completer, cache, nil, nil, nil, time.Hour)

	res, err := svc.Summarize(context.Background(), dto.SummaryRequest{DocumentPath: "class10/maths/missing.pdf", Pages: []int{1}, Title: "Real Numbers"})
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Contains(t, res.SummaryText, "# Real Numbers")
	assert.Equal(t, 0, completer.calls())

	again, err := svc.Summarize(context.Background(), dto.SummaryRequest{DocumentPath: "class10/maths/missing.pdf", Pages: []int{1}, Title: "Real Numbers"})
	require.NoError(t, err)
	assert.False(t, again.Cached)
}

func TestSummaryServiceFallsBackOnEmptyExtraction(t *testing.T) {
	completer := &stubCompleter{respond: func(string) (string, error) { return "never", nil }}
	svc := NewSummaryService(newTestLoader(t, stubExtractor{doc: &pdftext.Document{Text: "  \n", PageCount: 4}}), completer, nil, nil, nil, nil, time.Hour)

	res, err := svc.Summarize(context.Background(), dto.SummaryRequest{DocumentPath: chapterPath, Pages: []int{1}})
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, 0, completer.calls())
}

func TestSummaryServiceFallsBackOnModelError(t *testing.T) {
	completer := &stubCompleter{}
	svc := NewSummaryService(newTestLoader(t, stubExtractor{doc: hundredLineDocument()}), completer, nil, nil, nil, nil, time.Hour)

	res, err := svc.Summarize(context.Background(), dto.SummaryRequest{DocumentPath: chapterPath, Pages: []int{2}})
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, dto.SummaryBrief, res.SummaryKind)
	assert.Contains(t, res.SummaryText, "Pages 2")
}

func TestSummaryServiceValidation(t *testing.T) {
	svc := NewSummaryService(newTestLoader(t, stubExtractor{doc: hundredLineDocument()}), &stubCompleter{}, nil, nil, nil, nil, time.Hour)

	cases := map[string]dto.SummaryRequest{
		"traversal":      {DocumentPath: "../secrets.pdf", Pages: []int{1}},
		"absolute":       {DocumentPath: "/etc/book.pdf", Pages: []int{1}},
		"not a pdf":      {DocumentPath: "class10/notes.txt", Pages: []int{1}},
		"no pages":       {DocumentPath: chapterPath},
		"too many pages": {DocumentPath: chapterPath, Pages: []int{1, 2, 3, 4, 5, 6}},
		"unknown kind":   {DocumentPath: chapterPath, Pages: []int{1}, SummaryKind: "poem"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Summarize(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestSummaryServiceExportPDF(t *testing.T) {
	completer := &stubCompleter{respond: func(string) (string, error) { return "# Key ideas\n- Plants make food", nil }}
	svc := NewSummaryService(newTestLoader(t, stubExtractor{doc: hundredLineDocument()}), completer, nil, nil, nil, nil, time.Hour)

	file, err := svc.ExportPDF(context.Background(), dto.SummaryRequest{DocumentPath: chapterPath, Pages: []int{1}, Title: "Life Processes"})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasPrefix(file.Name, "summary-"))
	assert.True(t, strings.HasPrefix(string(file.Data), "%PDF"))
}

func TestChatServiceFlattensConversation(t *testing.T) {
	completer := &stubCompleter{respond: func(string) (string, error) { return "Chlorophyll absorbs light.", nil }}
	svc := NewChatService(newTestLoader(t, stubExtractor{doc: hundredLineDocument()}), completer, nil, nil, nil)

	res, err := svc.Reply(context.Background(), dto.ChatRequest{
		Summary: "Plants make food using sunlight.",
		History: []dto.ChatTurn{
			{Role: "user", Content: "What do plants need?"},
			{Role: "assistant", Content: "Sunlight, water and carbon dioxide."},
		},
		Message:      "Why are leaves green?",
		DocumentPath: chapterPath,
		Pages:        []int{1},
	})
	require.NoError(t, err)
	assert.False(t, res.Fallback)
	assert.Equal(t, "Chlorophyll absorbs light.", res.Reply)

	prompt := completer.prompts[0]
	assert.Contains(t, prompt, "Plants make food using sunlight.")
	assert.Contains(t, prompt, "Student: What do plants need?\nTutor: Sunlight, water and carbon dioxide.\n")
	assert.Contains(t, prompt, "--- Page 1 ---")
	assert.True(t, strings.HasSuffix(prompt, "Student: Why are leaves green?\nTutor:"))
}

func TestChatServiceFallback(t *testing.T) {
	svc := NewChatService(newTestLoader(t, stubExtractor{doc: hundredLineDocument()}), &stubCompleter{}, nil, nil, nil)

	res, err := svc.Reply(context.Background(), dto.ChatRequest{Message: "What is osmosis?"})
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Contains(t, res.Reply, `"What is osmosis?"`)

	_, err = svc.Reply(context.Background(), dto.ChatRequest{Message: "hi", History: []dto.ChatTurn{{Role: "system", Content: "x"}}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

const definitionText = "Photosynthesis is the process by which green plants make their food.\n" +
	"The stomata are tiny pores present on the surface of leaves.\n" +
	"Chlorophyll captures energy from sunlight during daylight hours."

func TestExerciseServiceMixesModelAndHeuristic(t *testing.T) {
	completer := &stubCompleter{respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, "matching exercise pairs") {
			return "```json\n{\"pairs\":[{\"term\":\"Stomata\",\"definition\":\"Pores on leaves.\"}]}\n```", nil
		}
		return "not json", nil
	}}
	doc := &pdftext.Document{Text: definitionText, PageCount: 1}
	svc := NewExerciseService(newTestLoader(t, stubExtractor{doc: doc}), completer, nil, nil, nil)

	res, err := svc.Generate(context.Background(), dto.ExerciseRequest{DocumentPath: chapterPath, Pages: []int{1}, Count: 3})
	require.NoError(t, err)
	require.NotNil(t, res.Matching)
	assert.Equal(t, []dto.MatchingPair{{Term: "Stomata", Definition: "Pores on leaves."}}, res.Matching.Pairs)
	require.NotEmpty(t, res.FillBlank)
	assert.Equal(t, "Photosynthesis", res.FillBlank[0].Answer)
	assert.True(t, res.Fallback)
	assert.Equal(t, 2, completer.calls())
}

func TestExerciseServiceOnlyRequestedKinds(t *testing.T) {
	doc := &pdftext.Document{Text: definitionText, PageCount: 1}
	svc := NewExerciseService(newTestLoader(t, stubExtractor{doc: doc}), &stubCompleter{}, nil, nil, nil)

	res, err := svc.Generate(context.Background(), dto.ExerciseRequest{DocumentPath: chapterPath, Pages: []int{1}, Kinds: []dto.ExerciseKind{dto.ExerciseMatching}})
	require.NoError(t, err)
	require.NotNil(t, res.Matching)
	assert.Nil(t, res.FillBlank)
	assert.True(t, res.Fallback)
	require.Len(t, res.Matching.Pairs, 2)
	assert.Equal(t, "Photosynthesis", res.Matching.Pairs[0].Term)
	assert.Equal(t, "Stomata", res.Matching.Pairs[1].Term)

	_, err = svc.Generate(context.Background(), dto.ExerciseRequest{DocumentPath: chapterPath, Pages: []int{1}, Kinds: []dto.ExerciseKind{"essay"}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExerciseServiceWithoutDocumentSkipsModel(t *testing.T) {
	completer := &stubCompleter{respond: func(string) (string, error) { return "{}", nil }}
	svc := NewExerciseService(newTestLoader(t, stubExtractor{err: errors.New("corrupt xref")}), completer, nil, nil, nil)

	res, err := svc.Generate(context.Background(), dto.ExerciseRequest{DocumentPath: chapterPath, Pages: []int{1}})
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, 0, completer.calls())
	assert.NotEmpty(t, res.FillBlank)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence(`  {"a":1} `))
}
