package usecase

import (
	"strings"

	"github.com/kirillkom/docqa/internal/core/domain"
)

const (
	contextSeparator = "\n\n-----\n\n"
	systemPreamble   = "You are an expert document analyst and AI assistant. "
	contextOpen      = "=== DOCUMENT CONTEXT ===\n"
	contextClose     = "\n=== END OF CONTEXT ==="

	noContextAnswer = "WARN No document context available. Please re-upload the file."
)

var answerStyles = map[domain.Category]string{
	domain.CategoryFactual: "Answer directly based on the document, but add your customized perspective. " +
		"Rephrase everything in your own words - never copy verbatim. " +
		"If the document doesn't explicitly say, offer your reasoned expert opinion.",
	domain.CategoryAnalytical: "Think step-by-step and show your reasoning. Draw insights, explain causality and connections. " +
		"Provide analytical depth and insert your own expert opinion where relevant. " +
		"Structure your response logically with clear formatting.",
	domain.CategorySummarization: "Write a clear, structured summary with sections or headings where helpful. " +
		"Use flowing prose with no copy-paste from the source. " +
		"End with a brief 'Expert Take' giving a critical opinion on the summarized content.",
	domain.CategoryCoding: "You are an elite software engineer. Provide robust, clean code using modern best practices. " +
		"Explain the reasoning behind your design choices. Use markdown code blocks. " +
		"Offer your opinion on potential optimizations and alternative approaches.",
}

// buildSystemInstruction wraps the retrieved context with the style template
// for the question's category. Unknown categories use the factual template.
func buildSystemInstruction(category domain.Category, context string) string {
	style, ok := answerStyles[category]
	if !ok {
		style = answerStyles[domain.CategoryFactual]
	}

	var b strings.Builder
	b.Grow(len(systemPreamble) + len(style) + len(context) + 64)
	b.WriteString(systemPreamble)
	b.WriteString(style)
	b.WriteString("\n\n")
	b.WriteString(contextOpen)
	b.WriteString(context)
	b.WriteString(contextClose)
	return b.String()
}
