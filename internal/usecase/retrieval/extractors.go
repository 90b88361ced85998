package retrieval

import (
	"context"

	"github.com/kailas-cloud/staysearch/internal/domain/search/filter"
)

// Extractor names accepted in configuration.
const (
	ExtractorLLM   = "llm"
	ExtractorRules = "rules"
	ExtractorNone  = "none"
)

// NoopExtractor never constrains the search.
type NoopExtractor struct{}

// Extract returns the empty predicate.
func (NoopExtractor) Extract(context.Context, string) (filter.Predicate, error) {
	return filter.Predicate{}, nil
}

// RuleExtractor parses price phrases and catalog neighbourhood names with regular expressions.
type RuleExtractor struct {
	neighbourhoods []string
}

// NewRuleExtractor creates a rule-based extractor over the given neighbourhood names.
func NewRuleExtractor(neighbourhoods []string) *RuleExtractor {
	return &RuleExtractor{neighbourhoods: neighbourhoods}
}

// Extract parses text into a predicate.
func (e *RuleExtractor) Extract(_ context.Context, text string) (filter.Predicate, error) {
	return filter.Parse(text, e.neighbourhoods)
}
