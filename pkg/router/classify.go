package router

import (
	"regexp"
	"strings"
)

// Complexity is the bucket classify() assigns to a prompt.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Classification is the result of classify().
type Classification struct {
	Complexity Complexity
	Score      float64
	Factors    []string
}

var (
	numberedListItem = regexp.MustCompile(`(?m)^\s*(\d+[.)]|[-*])\s+`)
	qualityCues      = compileCues("detailed", "comprehensive", "in depth", "in-depth")
	taskTypeCues     = compileCues("analyze", "compare", "research", "design")
	reasoningCues    = compileCues("why", "how", "explain")
)

func compileCues(words ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(words))
	for i, w := range words {
		out[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(w) + `\b`)
	}
	return out
}

// Classify scores a prompt's complexity using heuristic, language-agnostic
// signals: word count, multi-step phrasing, quality cues, task-type cues,
// and reasoning cues. Thresholds and weights here are part
// of the contract and must not be retuned casually.
func Classify(prompt string) Classification {
	lower := strings.ToLower(prompt)
	words := strings.Fields(prompt)
	wordCount := len(words)

	var score float64
	var factors []string

	switch {
	case wordCount >= 50:
		score += 0.4
		factors = append(factors, "word_count>=50")
	case wordCount >= 20:
		score += 0.2
		factors = append(factors, "word_count>=20")
	}

	numberedItems := len(numberedListItem.FindAllString(prompt, -1))
	hasAndThen := strings.Contains(lower, "and then")
	switch {
	case numberedItems >= 3:
		score += 0.4
		factors = append(factors, "multi_step>=3")
	case numberedItems >= 1 || hasAndThen:
		score += 0.2
		factors = append(factors, "multi_step>=1")
	}

	if containsAny(lower, qualityCues) {
		score += 0.3
		factors = append(factors, "quality_cue")
	}

	if containsAny(lower, taskTypeCues) {
		score += 0.3
		factors = append(factors, "task_type_cue")
	}

	if containsAny(lower, reasoningCues) {
		score += 0.2
		factors = append(factors, "reasoning_cue")
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}

	var complexity Complexity
	switch {
	case score <= 0.3:
		complexity = ComplexitySimple
	case score <= 0.6:
		complexity = ComplexityModerate
	default:
		complexity = ComplexityComplex
	}

	return Classification{Complexity: complexity, Score: score, Factors: factors}
}

func containsAny(haystack string, needles []*regexp.Regexp) bool {
	for _, n := range needles {
		if n.MatchString(haystack) {
			return true
		}
	}
	return false
}
