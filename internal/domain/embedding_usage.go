package domain

import (
	"context"
	"sync"
)

type embeddingUsageKey struct{}

// EmbeddingUsage accumulates embedding cost for one request.
// The handler installs it, the embedder chain records into it, the handler reports it.
// Safe for concurrent use.
type EmbeddingUsage struct {
	mu        sync.Mutex
	tokens    int
	calls     int
	cacheHits int
}

// NewContextWithUsage returns ctx carrying a fresh usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, embeddingUsageKey{}, u), u
}

// UsageFromContext returns the collector on ctx, or nil. All methods accept a nil receiver.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(embeddingUsageKey{}).(*EmbeddingUsage)
	return u
}

// AddTokens records one embedding call costing n tokens.
func (u *EmbeddingUsage) AddTokens(n int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.tokens += n
	u.calls++
	u.mu.Unlock()
}

// CacheHit records a vector served without calling the provider.
func (u *EmbeddingUsage) CacheHit() {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.cacheHits++
	u.mu.Unlock()
}

// Tokens returns the total provider tokens consumed.
func (u *EmbeddingUsage) Tokens() int {
	if u == nil {
		return 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.tokens
}

// Used reports whether any embedding was produced, cached or not.
func (u *EmbeddingUsage) Used() bool {
	if u == nil {
		return false
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls > 0 || u.cacheHits > 0
}

// Cached reports whether every embedding in the request came from the cache.
func (u *EmbeddingUsage) Cached() bool {
	if u == nil {
		return false
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.cacheHits > 0 && u.tokens == 0
}
