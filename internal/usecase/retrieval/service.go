package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/kailas-cloud/staysearch/internal/domain"
	"github.com/kailas-cloud/staysearch/internal/domain/search/filter"
	"github.com/kailas-cloud/staysearch/internal/domain/search/request"
	"github.com/kailas-cloud/staysearch/internal/domain/search/result"
	"github.com/kailas-cloud/staysearch/internal/logger"
	"github.com/kailas-cloud/staysearch/internal/metrics"
)

// Config tunes the retrieval pipeline.
type Config struct {
	// Extractor labels extraction failure metrics.
	Extractor      string
	ExtractTimeout time.Duration
	// RetryInitialInterval is the delay before the single store retry.
	RetryInitialInterval time.Duration
}

// Service turns a query into a context set: extract filters, embed, search.
type Service struct {
	store   VectorStore
	embed   Embedder
	extract FilterExtractor
	cfg     Config
}

// New creates a retrieval service. A nil extractor disables filter extraction.
func New(store VectorStore, embed Embedder, extract FilterExtractor, cfg Config) *Service {
	if extract == nil {
		extract = NoopExtractor{}
		cfg.Extractor = ExtractorNone
	}
	return &Service{store: store, embed: embed, extract: extract, cfg: cfg}
}

// Retrieve returns up to k listings scoring above threshold together with the predicate applied.
// Extraction failures fall back to no filter. Embedding failures abort before the store is touched.
// A transient store failure is retried once.
func (s *Service) Retrieve(
	ctx context.Context, query string, k int, threshold float64,
) (result.ContextSet, filter.Predicate, error) {
	start := time.Now()

	if err := validate(query, k, threshold); err != nil {
		return result.ContextSet{}, filter.Predicate{}, err
	}
	if k > request.MaxTopK {
		k = request.MaxTopK
	}

	pred := s.extractFilters(ctx, query)

	emb, err := s.embed.Embed(ctx, query)
	if err != nil {
		s.observe(start, "embedding_error", 0)
		return result.ContextSet{}, pred, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}

	cs, err := s.search(ctx, emb.Embedding, threshold, k, pred)
	if err != nil {
		s.observe(start, "store_error", 0)
		return result.ContextSet{}, pred, err
	}

	s.observe(start, "ok", cs.Len())
	logger.FromContext(ctx).Debug("Retrieved context set",
		zap.Int("results", cs.Len()),
		zap.Int("k", k),
		zap.Float64("threshold", threshold),
		zap.Stringer("filters", pred),
		zap.Duration("duration", time.Since(start)),
	)
	return cs, pred, nil
}

func validate(query string, k int, threshold float64) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("%w: query is required", domain.ErrInvalidRequest)
	}
	if len(query) > request.MaxQueryLength {
		return fmt.Errorf("%w: query too long (max %d bytes)", domain.ErrInvalidRequest, request.MaxQueryLength)
	}
	if k <= 0 {
		return fmt.Errorf("%w: k must be positive", domain.ErrInvalidRequest)
	}
	if math.IsNaN(threshold) || threshold < -1 || threshold >= 1 {
		return fmt.Errorf("%w: threshold must be in [-1, 1)", domain.ErrInvalidRequest)
	}
	return nil
}

func (s *Service) extractFilters(ctx context.Context, query string) filter.Predicate {
	log := logger.FromContext(ctx)

	ectx := ctx
	if s.cfg.ExtractTimeout > 0 {
		var cancel context.CancelFunc
		ectx, cancel = context.WithTimeout(ctx, s.cfg.ExtractTimeout)
		defer cancel()
	}

	pred, err := s.extract.Extract(ectx, query)
	if err == nil {
		return pred
	}

	reason := "error"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		reason = "timeout"
	case errors.Is(err, domain.ErrInvalidFilter):
		reason = "invalid"
	}
	metrics.FilterExtractionFailuresTotal.WithLabelValues(s.cfg.Extractor, reason).Inc()
	log.Warn("Filter extraction failed, searching without filters",
		zap.String("extractor", s.cfg.Extractor),
		zap.String("reason", reason),
		zap.Error(err),
	)
	return filter.Predicate{}
}

func (s *Service) search(
	ctx context.Context, vec []float32, threshold float64, k int, pred filter.Predicate,
) (result.ContextSet, error) {
	var cs result.ContextSet
	op := func() error {
		var err error
		cs, err = s.store.Search(ctx, vec, threshold, k, pred)
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrStoreUnavailable) {
			return err
		}
		return backoff.Permanent(err)
	}

	eb := backoff.NewExponentialBackOff()
	if s.cfg.RetryInitialInterval > 0 {
		eb.InitialInterval = s.cfg.RetryInitialInterval
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, 1), ctx)

	notify := func(err error, wait time.Duration) {
		metrics.StoreRetriesTotal.Inc()
		logger.FromContext(ctx).Warn("Vector store unavailable, retrying",
			zap.Duration("backoff", wait), zap.Error(err))
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return result.ContextSet{}, fmt.Errorf("search: %w", err)
	}
	return cs, nil
}

func (s *Service) observe(start time.Time, status string, n int) {
	metrics.RetrievalDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	if status == "ok" {
		metrics.RetrievalResults.Observe(float64(n))
	}
}
