package filter

import (
	"fmt"
	"math"
	"strings"

	"github.com/kailas-cloud/staysearch/internal/domain"
	"github.com/kailas-cloud/staysearch/internal/domain/listing"
)

// MaxNeighborhoodLength bounds the neighborhood term.
const MaxNeighborhoodLength = 128

// Predicate is a conjunction of optional listing constraints.
// The zero value imposes no constraint.
type Predicate struct {
	minPrice     *float64
	maxPrice     *float64
	neighborhood string
	needle       string
}

// New validates and creates a Predicate.
// Prices must be finite and non-negative; min > max is accepted and matches nothing.
func New(minPrice, maxPrice *float64, neighborhood string) (Predicate, error) {
	if err := checkPrice("min_price", minPrice); err != nil {
		return Predicate{}, err
	}
	if err := checkPrice("max_price", maxPrice); err != nil {
		return Predicate{}, err
	}
	term := strings.TrimSpace(neighborhood)
	if len(term) > MaxNeighborhoodLength {
		return Predicate{}, fmt.Errorf("%w: neighborhood too long (max %d)", domain.ErrInvalidFilter, MaxNeighborhoodLength)
	}
	p := Predicate{neighborhood: term, needle: strings.ToLower(term)}
	if minPrice != nil {
		v := *minPrice
		p.minPrice = &v
	}
	if maxPrice != nil {
		v := *maxPrice
		p.maxPrice = &v
	}
	return p, nil
}

func checkPrice(name string, v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return fmt.Errorf("%w: %s must be finite", domain.ErrInvalidFilter, name)
	}
	if *v < 0 {
		return fmt.Errorf("%w: %s must be non-negative", domain.ErrInvalidFilter, name)
	}
	return nil
}

// MinPrice returns the inclusive lower price bound.
func (p Predicate) MinPrice() (float64, bool) {
	if p.minPrice == nil {
		return 0, false
	}
	return *p.minPrice, true
}

// MaxPrice returns the inclusive upper price bound.
func (p Predicate) MaxPrice() (float64, bool) {
	if p.maxPrice == nil {
		return 0, false
	}
	return *p.maxPrice, true
}

// Neighborhood returns the trimmed neighborhood term, or "".
func (p Predicate) Neighborhood() string { return p.neighborhood }

// IsEmpty reports whether the predicate has no constraints.
func (p Predicate) IsEmpty() bool {
	return p.minPrice == nil && p.maxPrice == nil && p.neighborhood == ""
}

// Matches reports whether l satisfies every constraint.
func (p Predicate) Matches(l listing.Listing) bool {
	if p.minPrice != nil && l.Price() < *p.minPrice {
		return false
	}
	if p.maxPrice != nil && l.Price() > *p.maxPrice {
		return false
	}
	if p.needle != "" && !strings.Contains(strings.ToLower(l.Neighbourhood()), p.needle) {
		return false
	}
	return true
}

// View is the wire form of a predicate. Absent constraints are null.
type View struct {
	MinPrice     *float64 `json:"min_price"`
	MaxPrice     *float64 `json:"max_price"`
	Neighborhood *string  `json:"neighborhood"`
}

// View returns the wire form of p.
func (p Predicate) View() View {
	var v View
	if m, ok := p.MinPrice(); ok {
		v.MinPrice = &m
	}
	if m, ok := p.MaxPrice(); ok {
		v.MaxPrice = &m
	}
	if n := p.Neighborhood(); n != "" {
		v.Neighborhood = &n
	}
	return v
}

// String renders the predicate for logs.
func (p Predicate) String() string {
	if p.IsEmpty() {
		return "none"
	}
	var parts []string
	if p.minPrice != nil {
		parts = append(parts, fmt.Sprintf("price>=%g", *p.minPrice))
	}
	if p.maxPrice != nil {
		parts = append(parts, fmt.Sprintf("price<=%g", *p.maxPrice))
	}
	if p.neighborhood != "" {
		parts = append(parts, fmt.Sprintf("neighborhood~%q", p.neighborhood))
	}
	return strings.Join(parts, " AND ")
}
