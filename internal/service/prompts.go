package service

import (
	"bytes"
	"text/template"

	"github.com/noah-isme/ncert-tutor-api/internal/dto"
)

const tutorSystemPrompt = "You are a patient tutor for Indian school students working from NCERT textbooks. " +
	"Answer in clear, simple English suitable for the student's class. Stay within the supplied material."

var summaryInstructions = map[dto.SummaryKind]string{
	dto.SummaryBrief:         "Write a short summary of one or two paragraphs covering the main ideas.",
	dto.SummaryDetailed:      "Write a detailed summary that walks through every concept, definition and example in order.",
	dto.SummaryKeyPoints:     "List the key points as bullet lines starting with \"- \". Keep each point to one sentence.",
	dto.SummaryRevisionNotes: "Write revision notes with headings starting with \"# \", bullet points, important terms and likely exam questions.",
}

type summaryPromptData struct {
	Title       string
	Pages       []int
	Instruction string
	Content     string
}

type chatPromptData struct {
	Summary string
	Context string
	History []dto.ChatTurn
	Message string
}

type exercisePromptData struct {
	Title   string
	Count   int
	Content string
}

var prompts = template.Must(template.New("prompts").Parse(`
{{define "summary"}}{{if .Title}}Chapter: {{.Title}}
{{end}}Pages: {{range $i, $p := .Pages}}{{if $i}}, {{end}}{{$p}}{{end}}

{{.Instruction}}

Textbook content:
{{.Content}}{{end}}

{{define "summary_fallback"}}# {{if .Title}}{{.Title}}{{else}}Chapter overview{{end}}
Pages {{range $i, $p := .Pages}}{{if $i}}, {{end}}{{$p}}{{end}}

The generated summary is unavailable right now. Use these steps to review the pages yourself:
- Read the headings on each page and note the main idea of every section.
- Write down new terms with their meaning in your own words.
- Re-read the solved examples and try one without looking at the solution.
- Answer the in-text questions at the end of the section.{{end}}

{{define "chat"}}{{if .Summary}}Summary the student is studying:
{{.Summary}}

{{end}}{{if .Context}}Textbook pages:
{{.Context}}

{{end}}{{if .History}}Conversation so far:
{{range .History}}{{if eq .Role "assistant"}}Tutor{{else}}Student{{end}}: {{.Content}}
{{end}}
{{end}}Student: {{.Message}}
Tutor:{{end}}

{{define "chat_fallback"}}I can't reach the tutoring service at the moment, so I can't answer "{{.Message}}" in detail. {{if .Summary}}Try re-reading the summary above and look for the part that mentions your question. {{end}}Please ask again in a little while.{{end}}

{{define "matching"}}Create {{.Count}} matching exercise pairs from the textbook content below.
Return only JSON of the form {"pairs":[{"term":"...","definition":"..."}]}.
Each term must appear in the content and each definition must be one sentence.

Textbook content:
{{.Content}}{{end}}

{{define "fill_blank"}}Create {{.Count}} fill in the blank questions from the textbook content below.
Return only JSON of the form {"questions":[{"sentence":"... _____ ...","answer":"...","options":["...","...","...","..."]}]}.
Each sentence must contain exactly one blank written as _____ and the answer must be one of the options.

Textbook content:
{{.Content}}{{end}}
`))

func renderPrompt(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
