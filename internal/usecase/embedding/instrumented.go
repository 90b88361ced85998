package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/staysearch/internal/domain"
)

// InstrumentedEmbedder bounds each query embedding with a timeout, rejects unusable vectors,
// records usage on the request context and logs the outcome.
// Provider metrics are recorded in transport/openai.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewInstrumentedEmbedder wraps inner. A zero timeout leaves the caller's deadline in charge.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string,
	timeout time.Duration, logger *zap.Logger,
) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:    inner,
		provider: provider,
		model:    model,
		timeout:  timeout,
		logger:   logger,
	}
}

// Embed delegates to inner. A vector with zero norm or non-finite components
// cannot be ranked by cosine similarity and wraps domain.ErrEmbeddingProviderError.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	callCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := p.inner.Embed(callCtx, text)
	took := time.Since(start)

	fields := []zap.Field{
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", took),
	}

	if err != nil {
		switch {
		case ctx.Err() != nil:
			// caller went away; not a provider problem
			p.logger.Debug("Embedding abandoned", append(fields, zap.Error(err))...)
		case errors.Is(err, context.DeadlineExceeded):
			p.logger.Warn("Embedding timed out", append(fields, zap.Duration("timeout", p.timeout))...)
		default:
			p.logger.Error("Embedding request failed", append(fields, zap.Error(err))...)
		}
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	if err := checkVector(res.Embedding); err != nil {
		p.logger.Error("Embedding unusable", append(fields, zap.Error(err))...)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w: %w", domain.ErrEmbeddingProviderError, err)
	}

	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)

	p.logger.Debug("Embedding completed", append(fields,
		zap.Int("dimensions", len(res.Embedding)),
		zap.Int("total_tokens", res.TotalTokens),
	)...)
	return res, nil
}

func checkVector(v []float32) error {
	if len(v) == 0 {
		return errors.New("empty vector")
	}
	var sum float64
	for i, f := range v {
		x := float64(f)
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("component %d is not finite", i)
		}
		sum += x * x
	}
	if sum == 0 {
		return errors.New("zero vector")
	}
	return nil
}
