package openai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/staysearch/internal/domain"
)

// Config holds the embedding provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// Dimensions is sent to providers that support shortening and checked on every response.
	Dimensions int
	// SendDimensions passes Dimensions in the request. Ollama and older models reject the field.
	SendDimensions bool
	User           string
}

// Embedder vectorizes queries through an OpenAI-compatible /embeddings endpoint
// (OpenAI, Ollama, Nebius).
type Embedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	cfg    Config
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	return &Embedder{
		client: newClient(cfg.APIKey, cfg.BaseURL),
		model:  openai.EmbeddingModel(cfg.Model),
		cfg:    *cfg,
	}
}

// Embed returns the query vector and provider token usage.
// A vector of the wrong length is a DimensionMismatchError, never a provider error.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.cfg.User,
	}
	if e.cfg.SendDimensions && e.cfg.Dimensions > 0 {
		req.Dimensions = e.cfg.Dimensions
	}

	c := startCall(opEmbedding, e.cfg.Model)
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		c.fail("api_error")
		return domain.EmbeddingResult{}, parseAPIError("embedding", err, domain.ErrEmbeddingProviderError)
	}
	if len(resp.Data) == 0 {
		c.fail("empty_response")
		return domain.EmbeddingResult{}, fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingProviderError)
	}

	vec := resp.Data[0].Embedding
	if e.cfg.Dimensions > 0 && len(vec) != e.cfg.Dimensions {
		c.fail("dimension_mismatch")
		return domain.EmbeddingResult{}, domain.NewDimensionMismatch(e.cfg.Dimensions, len(vec))
	}

	c.ok(resp.Usage.PromptTokens, resp.Usage.TotalTokens)
	return domain.EmbeddingResult{
		Embedding:    vec,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck lists models, which costs no tokens.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
