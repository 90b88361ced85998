package result

import (
	"sort"

	"github.com/kailas-cloud/staysearch/internal/domain/listing"
)

// Result is a single similarity hit.
type Result struct {
	listing listing.Listing
	score   float64
}

// New creates a similarity result.
func New(l listing.Listing, score float64) Result {
	return Result{listing: l, score: score}
}

// Listing returns the matched listing.
func (r Result) Listing() listing.Listing { return r.listing }

// Score returns the cosine similarity in [-1, 1].
func (r Result) Score() float64 { return r.score }

// Less orders by score descending, then listing id ascending.
func Less(a, b Result) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.listing.ID() < b.listing.ID()
}

// ContextSet is the ordered, capped retrieval output for one query.
type ContextSet struct {
	results []Result
}

// NewContextSet sorts results, drops anything not above threshold and keeps at most k.
func NewContextSet(results []Result, threshold float64, k int) ContextSet {
	kept := make([]Result, 0, len(results))
	for _, r := range results {
		if r.score > threshold {
			kept = append(kept, r)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return Less(kept[i], kept[j]) })
	if k >= 0 && len(kept) > k {
		kept = kept[:k]
	}
	return ContextSet{results: kept}
}

// Results returns a copy of the ordered results.
func (c ContextSet) Results() []Result {
	out := make([]Result, len(c.results))
	copy(out, c.results)
	return out
}

// Len returns the number of results.
func (c ContextSet) Len() int { return len(c.results) }

// IsEmpty reports whether nothing was retrieved.
func (c ContextSet) IsEmpty() bool { return len(c.results) == 0 }

// IDs returns listing ids in rank order.
func (c ContextSet) IDs() []int64 {
	ids := make([]int64, len(c.results))
	for i, r := range c.results {
		ids[i] = r.listing.ID()
	}
	return ids
}
