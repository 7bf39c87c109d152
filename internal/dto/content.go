package dto

// SummaryKind selects the summary prompt.
type SummaryKind string

const (
	SummaryBrief         SummaryKind = "brief"
	SummaryDetailed      SummaryKind = "detailed"
	SummaryKeyPoints     SummaryKind = "key_points"
	SummaryRevisionNotes SummaryKind = "revision_notes"
)

// SummaryRequest asks for a summary of selected pages of a document.
type SummaryRequest struct {
	DocumentPath string      `json:"documentPath" validate:"required,max=512"`
	Pages        []int       `json:"pages" validate:"required,min=1,max=50"`
	SummaryKind  SummaryKind `json:"summaryKind" validate:"omitempty,oneof=brief detailed key_points revision_notes"`
	Title        string      `json:"title" validate:"omitempty,max=200"`
	// Refresh bypasses and replaces any cached summary.
	Refresh bool `json:"refresh"`
}

// SummaryResponse carries the generated text.
type SummaryResponse struct {
	SummaryText string      `json:"summaryText"`
	SummaryKind SummaryKind `json:"summaryKind"`
	Pages       []int       `json:"pages"`
	// Fallback is true when the text came from the generic template.
	Fallback bool `json:"fallback"`
	Cached   bool `json:"cached"`
}

// ChatTurn is one prior exchange resent by the client.
type ChatTurn struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required,max=4000"`
}

// ChatRequest carries the whole conversation; nothing is remembered server side.
type ChatRequest struct {
	Summary      string     `json:"summary" validate:"max=20000"`
	History      []ChatTurn `json:"history" validate:"max=40,dive"`
	Message      string     `json:"message" validate:"required,max=4000"`
	DocumentPath string     `json:"documentPath" validate:"omitempty,max=512"`
	Pages        []int      `json:"pages" validate:"max=50"`
}

// ChatResponse is the tutor's reply.
type ChatResponse struct {
	Reply    string `json:"reply"`
	Fallback bool   `json:"fallback"`
}

// ExerciseKind selects an exercise generator.
type ExerciseKind string

const (
	ExerciseMatching  ExerciseKind = "matching"
	ExerciseFillBlank ExerciseKind = "fill_blank"
)

// ExerciseRequest asks for exercises built from document pages.
type ExerciseRequest struct {
	DocumentPath string         `json:"documentPath" validate:"required,max=512"`
	Pages        []int          `json:"pages" validate:"required,min=1,max=50"`
	Kinds        []ExerciseKind `json:"kinds" validate:"omitempty,max=2,unique,dive,oneof=matching fill_blank"`
	Count        int            `json:"count" validate:"omitempty,min=1,max=20"`
}

// MatchingPair is a term and its definition.
type MatchingPair struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

// MatchingExercise asks the learner to pair terms with definitions.
type MatchingExercise struct {
	Pairs []MatchingPair `json:"pairs"`
}

// FillBlankQuestion is a sentence with one word removed.
type FillBlankQuestion struct {
	Sentence string   `json:"sentence"`
	Answer   string   `json:"answer"`
	Options  []string `json:"options,omitempty"`
}

// ExerciseResponse groups generated exercises.
type ExerciseResponse struct {
	Matching  *MatchingExercise   `json:"matching,omitempty"`
	FillBlank []FillBlankQuestion `json:"fillBlank,omitempty"`
	Fallback  bool                `json:"fallback"`
}
