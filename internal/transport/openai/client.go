package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/staysearch/internal/domain"
	"github.com/kailas-cloud/staysearch/internal/metrics"
)

// Operation labels for provider metrics.
const (
	opEmbedding  = "embedding"
	opChat       = "chat"
	opExtraction = "extraction"
)

// call records provider metrics for one request.
type call struct {
	op    string
	model string
	start time.Time
}

func startCall(op, model string) call {
	return call{op: op, model: model, start: time.Now()}
}

func (c call) ok(promptTokens, totalTokens int) {
	metrics.ProviderRequestsTotal.WithLabelValues(c.op, c.model, "success").Inc()
	metrics.ProviderRequestDuration.WithLabelValues(c.op, c.model).Observe(time.Since(c.start).Seconds())
	if totalTokens > 0 {
		metrics.ProviderTokensTotal.WithLabelValues(c.op, c.model, "prompt").Add(float64(promptTokens))
		metrics.ProviderTokensTotal.WithLabelValues(c.op, c.model, "total").Add(float64(totalTokens))
	}
}

func (c call) fail(reason string) {
	metrics.ProviderRequestsTotal.WithLabelValues(c.op, c.model, "error").Inc()
	metrics.ProviderErrorsTotal.WithLabelValues(c.op, c.model, reason).Inc()
}

func newClient(apiKey, baseURL string) *openai.Client {
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}

// NewLimiter creates the token bucket shared by outbound chat calls.
// rps <= 0 disables limiting and returns nil.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func wait(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	if err := l.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrRateLimited, err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response and wraps it with kind.
func parseAPIError(op string, err error, kind error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("%s API error %d: %s: %w", op, reqErr.HTTPStatusCode, detail, kind)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s API error %d: %s: %w", op, apiErr.HTTPStatusCode, apiErr.Message, kind)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s request: %w: %w", op, kind, err)
	}
	return fmt.Errorf("%s request failed: %w", op, kind)
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
