package listing

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// Fields is the raw catalog row used to construct a Listing.
type Fields struct {
	ID            int64
	Name          string
	URL           string
	Latitude      float64
	Longitude     float64
	Price         float64
	Neighbourhood string
	RoomType      string
	Accommodates  int
	Document      string
	Embedding     []float32
}

// Listing is a catalog entry (immutable value object).
type Listing struct {
	id            int64
	name          string
	url           string
	latitude      float64
	longitude     float64
	price         float64
	neighbourhood string
	roomType      string
	accommodates  int
	document      string
	embedding     []float32
}

// New validates and creates a Listing. The embedding slice is copied.
// Dimension consistency across listings is checked by the catalog, not here.
func New(f Fields) (Listing, error) {
	if f.ID <= 0 {
		return Listing{}, fmt.Errorf("listing id must be positive, got %d", f.ID)
	}
	if strings.TrimSpace(f.Name) == "" {
		return Listing{}, fmt.Errorf("listing %d: name is required", f.ID)
	}
	if math.IsNaN(f.Price) || math.IsInf(f.Price, 0) || f.Price < 0 {
		return Listing{}, fmt.Errorf("listing %d: invalid price %v", f.ID, f.Price)
	}
	if len(f.Embedding) == 0 {
		return Listing{}, fmt.Errorf("listing %d: embedding is required", f.ID)
	}
	return Listing{
		id:            f.ID,
		name:          f.Name,
		url:           f.URL,
		latitude:      f.Latitude,
		longitude:     f.Longitude,
		price:         f.Price,
		neighbourhood: f.Neighbourhood,
		roomType:      f.RoomType,
		accommodates:  f.Accommodates,
		document:      f.Document,
		embedding:     slices.Clone(f.Embedding),
	}, nil
}

// ID returns the listing primary key.
func (l Listing) ID() int64 { return l.id }

// Name returns the display name.
func (l Listing) Name() string { return l.name }

// URL returns the public listing page.
func (l Listing) URL() string { return l.url }

// Latitude returns the geographic latitude.
func (l Listing) Latitude() float64 { return l.latitude }

// Longitude returns the geographic longitude.
func (l Listing) Longitude() float64 { return l.longitude }

// Price returns the nightly price in catalog currency.
func (l Listing) Price() float64 { return l.price }

// Neighbourhood returns the cleansed neighbourhood name.
func (l Listing) Neighbourhood() string { return l.neighbourhood }

// RoomType returns the room type label.
func (l Listing) RoomType() string { return l.roomType }

// Accommodates returns the guest capacity.
func (l Listing) Accommodates() int { return l.accommodates }

// Document returns the text that was embedded at ingestion time.
func (l Listing) Document() string { return l.document }

// Dimension returns the embedding length.
func (l Listing) Dimension() int { return len(l.embedding) }

// Embedding returns a copy of the embedding vector.
func (l Listing) Embedding() []float32 { return slices.Clone(l.embedding) }
