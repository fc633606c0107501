package router

import (
	"strings"

	"github.com/ShayCichocki/researchmind/pkg/models"
)

// ComplexityKeywords maps request descriptions to a complexity estimate.
// Medium is the default and has no keywords.
type ComplexityKeywords struct {
	// Low keywords mark quick lookups that need no ordering between steps.
	Low []string
	// High keywords mark work where later steps should build on earlier ones.
	High []string
}

// DefaultComplexityKeywords are used when complexity inference is enabled.
var DefaultComplexityKeywords = ComplexityKeywords{
	Low: []string{
		"quick",
		"lookup",
		"look up",
		"list",
		"find",
		"check",
		"summary",
		"summarize",
		"overview",
	},
	High: []string{
		"comprehensive",
		"end-to-end",
		"in-depth",
		"systematic",
		"mechanism",
		"optimize",
		"optimise",
		"discovery",
		"screening",
		"validate",
		"novel",
	},
}

// ComplexitySelection is an inferred complexity with how it was reached.
type ComplexitySelection struct {
	Complexity models.Complexity
	// Confidence is between 0 and 1. Unmatched descriptions get the lowest.
	Confidence float64
	// MatchedKeyword is empty when no keyword matched.
	MatchedKeyword string
}

// ClassifyComplexity estimates a request's complexity from its description.
// High keywords win over low ones; no match yields medium.
func ClassifyComplexity(description string) ComplexitySelection {
	return DefaultComplexityKeywords.Classify(description)
}

// Classify estimates complexity using k.
func (k ComplexityKeywords) Classify(description string) ComplexitySelection {
	lower := strings.ToLower(description)

	for _, kw := range k.High {
		if strings.Contains(lower, kw) {
			return ComplexitySelection{Complexity: models.ComplexityHigh, Confidence: 0.8, MatchedKeyword: kw}
		}
	}
	for _, kw := range k.Low {
		if strings.Contains(lower, kw) {
			return ComplexitySelection{Complexity: models.ComplexityLow, Confidence: 0.75, MatchedKeyword: kw}
		}
	}
	return ComplexitySelection{Complexity: models.ComplexityMedium, Confidence: 0.5}
}
