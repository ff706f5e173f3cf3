package usecase

import (
	"strings"

	"github.com/kirillkom/docqa/internal/core/domain"
)

type categoryRule struct {
	category domain.Category
	keywords []string
}

// Checked in order; the first rule with a matching keyword wins.
var categoryRules = []categoryRule{
	{domain.CategoryCoding, []string{"code", "script", "program", "function", "write", "debug", "python", "javascript", "react", "html"}},
	{domain.CategorySummarization, []string{"summar", "overview", "tldr", "describe", "explain the doc"}},
	{domain.CategoryAnalytical, []string{"why", "how does", "explain how", "analyse", "analyze", "compare", "impact", "differ", "opinion", "think"}},
}

// Classify picks a synthesis category from keywords in the question.
func Classify(question string) domain.Category {
	q := strings.ToLower(question)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(q, kw) {
				return rule.category
			}
		}
	}
	return domain.CategoryFactual
}

func retrievalDepth(category domain.Category) int {
	if category == domain.CategorySummarization {
		return 3
	}
	return 4
}
