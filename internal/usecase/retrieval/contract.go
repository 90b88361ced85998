package retrieval

import (
	"context"

	"github.com/kailas-cloud/staysearch/internal/domain"
	"github.com/kailas-cloud/staysearch/internal/domain/search/filter"
	"github.com/kailas-cloud/staysearch/internal/domain/search/result"
)

// VectorStore runs filtered similarity search over the catalog.
type VectorStore interface {
	Search(ctx context.Context, vec []float32, threshold float64, k int, p filter.Predicate) (result.ContextSet, error)
}

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// FilterExtractor derives structured constraints from the query text. Best effort.
type FilterExtractor interface {
	Extract(ctx context.Context, text string) (filter.Predicate, error)
}
