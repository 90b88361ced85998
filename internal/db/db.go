package db

import (
	"context"
	"time"

	"github.com/kailas-cloud/staysearch/internal/domain/search/filter"
	"github.com/kailas-cloud/staysearch/internal/domain/search/result"
)

// Store is the cache database facade combining its sub-interfaces.
type Store interface {
	Pinger
	KVStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// VectorStore runs filtered cosine similarity search over the listing catalog.
// Implementations must be safe for concurrent Search calls.
type VectorStore interface {
	Search(ctx context.Context, vec []float32, threshold float64, k int, p filter.Predicate) (result.ContextSet, error)
	Dimension() int
	Len() int
}
