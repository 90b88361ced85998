// Package memory is the in-process listing catalog. It is built once at startup
// and never mutated, so Search needs no locking.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/kailas-cloud/staysearch/internal/db"
	"github.com/kailas-cloud/staysearch/internal/domain"
	"github.com/kailas-cloud/staysearch/internal/domain/listing"
	"github.com/kailas-cloud/staysearch/internal/domain/search/filter"
	"github.com/kailas-cloud/staysearch/internal/domain/search/result"
)

// Compile-time check: Store implements db.VectorStore.
var _ db.VectorStore = (*Store)(nil)

type entry struct {
	listing listing.Listing
	vec     []float32
	norm    float64
}

// Store is an immutable catalog with brute-force cosine search.
type Store struct {
	dim     int
	entries []entry
	hoods   []string
}

// New builds a catalog of the given dimension.
// Every listing must carry exactly dim components and a unique id.
func New(dim int, listings []listing.Listing) (*Store, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("catalog dimension must be positive, got %d", dim)
	}
	seen := make(map[int64]struct{}, len(listings))
	hoodSet := make(map[string]struct{})
	entries := make([]entry, 0, len(listings))
	for _, l := range listings {
		if l.Dimension() != dim {
			return nil, fmt.Errorf("listing %d: %w", l.ID(), domain.NewDimensionMismatch(dim, l.Dimension()))
		}
		if _, dup := seen[l.ID()]; dup {
			return nil, fmt.Errorf("listing %d: %w", l.ID(), domain.ErrDuplicateListing)
		}
		seen[l.ID()] = struct{}{}
		if h := strings.TrimSpace(l.Neighbourhood()); h != "" {
			hoodSet[h] = struct{}{}
		}
		vec := l.Embedding()
		entries = append(entries, entry{listing: l, vec: vec, norm: norm(vec)})
	}

	hoods := make([]string, 0, len(hoodSet))
	for h := range hoodSet {
		hoods = append(hoods, h)
	}
	sort.Strings(hoods)

	return &Store{dim: dim, entries: entries, hoods: hoods}, nil
}

// Dimension returns the fixed embedding dimension.
func (s *Store) Dimension() int { return s.dim }

// Len returns the number of listings.
func (s *Store) Len() int { return len(s.entries) }

// Neighbourhoods returns the distinct neighbourhood names, sorted.
func (s *Store) Neighbourhoods() []string {
	out := make([]string, len(s.hoods))
	copy(out, s.hoods)
	return out
}

// Search returns up to k listings matching p whose similarity to vec is above threshold.
func (s *Store) Search(
	ctx context.Context, vec []float32, threshold float64, k int, p filter.Predicate,
) (result.ContextSet, error) {
	if len(vec) != s.dim {
		return result.ContextSet{}, domain.NewDimensionMismatch(s.dim, len(vec))
	}
	if k <= 0 {
		return result.ContextSet{}, fmt.Errorf("%w: k must be positive", domain.ErrInvalidRequest)
	}
	if err := ctx.Err(); err != nil {
		return result.ContextSet{}, fmt.Errorf("search: %w", err)
	}

	qn := norm(vec)
	hits := make([]result.Result, 0, k)
	for i := range s.entries {
		e := &s.entries[i]
		if !p.Matches(e.listing) {
			continue
		}
		score := cosine(vec, qn, e.vec, e.norm)
		if score > threshold {
			hits = append(hits, result.New(e.listing, score))
		}
	}
	return result.NewContextSet(hits, threshold, k), nil
}

// HealthCheck reports an empty catalog as unhealthy.
func (s *Store) HealthCheck(_ context.Context) error {
	if len(s.entries) == 0 {
		return fmt.Errorf("catalog is empty")
	}
	return nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosine returns 0 when either vector has zero norm.
func cosine(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	s := dot / (an * bn)
	// float rounding can push identical vectors past 1
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
