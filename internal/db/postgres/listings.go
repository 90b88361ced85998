package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/kailas-cloud/staysearch/internal/db"
	"github.com/kailas-cloud/staysearch/internal/domain"
	"github.com/kailas-cloud/staysearch/internal/domain/listing"
	"github.com/kailas-cloud/staysearch/internal/domain/search/filter"
	"github.com/kailas-cloud/staysearch/internal/domain/search/result"
)

// Compile-time check: ListingStore implements db.VectorStore.
var _ db.VectorStore = (*ListingStore)(nil)

const listingColumns = `id, listing_url, name, neighbourhood_cleansed, latitude, longitude,
	room_type, accommodates, price_cleaned, rag_document, embedding`

// ListingStore reads the listings table and searches it through match_listings.
type ListingStore struct {
	pool  *pgxpool.Pool
	dim   int
	count int
}

// NewListingStore binds the store to a catalog of dimension dim.
// It fails with DimensionMismatch if the stored vectors have a different length.
func NewListingStore(ctx context.Context, pool *pgxpool.Pool, dim int) (*ListingStore, error) {
	var count int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM listings`).Scan(&count); err != nil {
		return nil, storeErr(db.OpLoadListings, err)
	}

	if count > 0 {
		var stored int
		err := pool.QueryRow(ctx, `SELECT vector_dims(embedding) FROM listings LIMIT 1`).Scan(&stored)
		if err != nil {
			return nil, storeErr(db.OpLoadListings, err)
		}
		if stored != dim {
			return nil, domain.NewDimensionMismatch(dim, stored)
		}
	}

	return &ListingStore{pool: pool, dim: dim, count: count}, nil
}

// Dimension returns the catalog embedding dimension.
func (s *ListingStore) Dimension() int { return s.dim }

// Len returns the row count observed at open time.
func (s *ListingStore) Len() int { return s.count }

// HealthCheck pings the pool.
func (s *ListingStore) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// LoadAll reads every listing, ordered by id.
func (s *ListingStore) LoadAll(ctx context.Context) ([]listing.Listing, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+listingColumns+` FROM listings ORDER BY id`)
	if err != nil {
		return nil, storeErr(db.OpLoadListings, err)
	}
	defer rows.Close()

	var out []listing.Listing
	for rows.Next() {
		l, _, err := scanListing(rows, false)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(db.OpLoadListings, err)
	}
	return out, nil
}

// Neighbourhoods returns the distinct non-empty neighbourhood names, sorted.
func (s *ListingStore) Neighbourhoods(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT neighbourhood_cleansed FROM listings
		WHERE neighbourhood_cleansed <> '' ORDER BY 1`)
	if err != nil {
		return nil, storeErr(db.OpLoadListings, err)
	}
	hoods, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, storeErr(db.OpLoadListings, err)
	}
	return hoods, nil
}

// Search calls match_listings and re-applies ordering and caps in Go.
func (s *ListingStore) Search(
	ctx context.Context, vec []float32, threshold float64, k int, p filter.Predicate,
) (result.ContextSet, error) {
	if len(vec) != s.dim {
		return result.ContextSet{}, domain.NewDimensionMismatch(s.dim, len(vec))
	}
	if k <= 0 {
		return result.ContextSet{}, fmt.Errorf("%w: k must be positive", domain.ErrInvalidRequest)
	}

	var minPrice, maxPrice *float64
	if v, ok := p.MinPrice(); ok {
		minPrice = &v
	}
	if v, ok := p.MaxPrice(); ok {
		maxPrice = &v
	}
	var hood *string
	if h := p.Neighborhood(); h != "" {
		hood = &h
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+listingColumns+`, similarity FROM match_listings($1, $2, $3, $4, $5, $6)`,
		pgvector.NewVector(vec), threshold, k, minPrice, maxPrice, hood)
	if err != nil {
		return result.ContextSet{}, storeErr(db.OpMatchListings, err)
	}
	defer rows.Close()

	var hits []result.Result
	for rows.Next() {
		l, score, err := scanListing(rows, true)
		if err != nil {
			return result.ContextSet{}, err
		}
		if p.Matches(l) {
			hits = append(hits, result.New(l, score))
		}
	}
	if err := rows.Err(); err != nil {
		return result.ContextSet{}, storeErr(db.OpMatchListings, err)
	}
	return result.NewContextSet(hits, threshold, k), nil
}

func scanListing(rows pgx.Rows, withScore bool) (listing.Listing, float64, error) {
	var (
		f     listing.Fields
		vec   pgvector.Vector
		score float64
	)
	dest := []any{
		&f.ID, &f.URL, &f.Name, &f.Neighbourhood, &f.Latitude, &f.Longitude,
		&f.RoomType, &f.Accommodates, &f.Price, &f.Document, &vec,
	}
	if withScore {
		dest = append(dest, &score)
	}
	if err := rows.Scan(dest...); err != nil {
		return listing.Listing{}, 0, fmt.Errorf("scan listing: %w", err)
	}
	f.Embedding = vec.Slice()
	l, err := listing.New(f)
	if err != nil {
		return listing.Listing{}, 0, fmt.Errorf("hydrate listing: %w", err)
	}
	return l, score, nil
}

// storeErr marks connection and query failures as transient.
func storeErr(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return &db.Error{Op: op, Err: err}
	}
	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, &db.Error{Op: op, Err: err})
}
