package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/staysearch/internal/domain"
	"github.com/kailas-cloud/staysearch/internal/domain/search/filter"
)

const extractionPrompt = `You extract search filters from a question about places to stay.
Reply with a JSON object with exactly these keys:
  "min_price": number or null (lowest nightly price the user accepts),
  "max_price": number or null (highest nightly price the user accepts),
  "neighborhood": string or null (the area the user asks for).
Use null for anything the user did not state. Prices are plain numbers without currency symbols.`

// ExtractorConfig holds the JSON-mode extraction settings.
type ExtractorConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// Limiter is shared with other outbound chat calls. Nil disables limiting.
	Limiter *rate.Limiter
}

// FilterExtractor asks a chat model for price and neighborhood constraints.
type FilterExtractor struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
}

// NewFilterExtractor creates an LLM-backed filter extractor.
func NewFilterExtractor(cfg *ExtractorConfig) *FilterExtractor {
	return &FilterExtractor{
		client:  newClient(cfg.APIKey, cfg.BaseURL),
		model:   cfg.Model,
		limiter: cfg.Limiter,
	}
}

type extraction struct {
	MinPrice     *float64 `json:"min_price"`
	MaxPrice     *float64 `json:"max_price"`
	Neighborhood *string  `json:"neighborhood"`
}

// Extract returns the predicate stated in text. Out-of-range values wrap domain.ErrInvalidFilter.
func (e *FilterExtractor) Extract(ctx context.Context, text string) (filter.Predicate, error) {
	if err := wait(ctx, e.limiter); err != nil {
		return filter.Predicate{}, err
	}

	c := startCall(opExtraction, e.model)
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: extractionPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		c.fail("api_error")
		return filter.Predicate{}, parseAPIError("extraction", err, domain.ErrExtractionFailed)
	}
	if len(resp.Choices) == 0 {
		c.fail("empty_response")
		return filter.Predicate{}, fmt.Errorf("empty extraction response: %w", domain.ErrExtractionFailed)
	}
	c.ok(resp.Usage.PromptTokens, resp.Usage.TotalTokens)

	return parseExtraction(resp.Choices[0].Message.Content)
}

func parseExtraction(content string) (filter.Predicate, error) {
	var out extraction
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &out); err != nil {
		return filter.Predicate{}, fmt.Errorf("decode extraction: %w: %w", domain.ErrInvalidFilter, err)
	}
	var hood string
	if out.Neighborhood != nil {
		hood = *out.Neighborhood
	}
	p, err := filter.New(out.MinPrice, out.MaxPrice, hood)
	if err != nil {
		return filter.Predicate{}, fmt.Errorf("extraction: %w", err)
	}
	return p, nil
}
