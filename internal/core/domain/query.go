package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

type Category string

const (
	CategoryFactual       Category = "factual"
	CategoryAnalytical    Category = "analytical"
	CategorySummarization Category = "summarization"
	CategoryCoding        Category = "coding"
)

const (
	// DefaultContextBudget is the maximum number of characters handed to a model as context.
	DefaultContextBudget = 4000

	// TrimMarker is appended once to context cut down to the budget.
	TrimMarker = "\n...[context trimmed]..."

	// SessionNotFoundContext replaces the context when the session cannot be resolved.
	SessionNotFoundContext = "[Session not found - please re-upload the document]"

	// BackendNone is reported when synthesis short-circuits without calling a backend.
	BackendNone = "none"
)

// QueryState is the per-query record passed through the pipeline stages.
type QueryState struct {
	SessionID string
	Question  string

	Category     Category
	Context      string
	Answer       string
	BackendUsed  string
	ChunkCount   int
	ContextChars int

	ClassifyElapsed   time.Duration
	RetrieveElapsed   time.Duration
	SynthesizeElapsed time.Duration
}

// Generation is a successful answer from one tier of the answer chain.
type Generation struct {
	Text    string
	Backend string
	Elapsed time.Duration
}

type QueryDebug struct {
	BackendUsed      string  `json:"backend_used"`
	ChunkCount       int     `json:"chunk_count"`
	ContextCharCount int     `json:"context_char_count"`
	TotalElapsed     float64 `json:"total_elapsed_s"`
	ClassifyElapsed  float64 `json:"classify_s"`
	RetrieveElapsed  float64 `json:"retrieve_s"`
	SynthElapsed     float64 `json:"synthesize_s"`
}

type QueryResult struct {
	Answer   string     `json:"answer"`
	Category Category   `json:"category"`
	Filename string     `json:"filename"`
	Debug    QueryDebug `json:"debug"`
}

// ClipToBudget cuts text so that the result, marker included, holds at most budget
// characters. The marker is appended exactly once and only when text was cut.
func ClipToBudget(text string, budget int, marker string) (string, bool) {
	if budget <= 0 || utf8.RuneCountInString(text) <= budget {
		return text, false
	}
	keep := budget - utf8.RuneCountInString(marker)
	if keep < 0 {
		keep = 0
	}
	return truncateRunes(text, keep) + marker, true
}

// Preview returns the first max characters of text, trimmed, with "..." when cut.
func Preview(text string, max int) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	return strings.TrimSpace(truncateRunes(text, max)) + "..."
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
