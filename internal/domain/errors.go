package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest signals a malformed query or out-of-range search parameter.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidFilter signals a filter predicate with unusable bounds.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrDimensionMismatch signals a vector whose length differs from the catalog dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrDuplicateListing signals two catalog rows sharing an id.
	ErrDuplicateListing = errors.New("duplicate listing")
	// ErrEmbeddingUnavailable signals that the query could not be embedded.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrStoreUnavailable signals a transient vector store failure.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrGenerationFailed signals an answer generator failure.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrExtractionFailed signals a filter extractor failure.
	ErrExtractionFailed = errors.New("filter extraction failed")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
)

// DimensionMismatchError wraps ErrDimensionMismatch with the expected and actual lengths.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: want %d, got %d", ErrDimensionMismatch.Error(), e.Want, e.Got)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// NewDimensionMismatch creates a dimension mismatch error.
func NewDimensionMismatch(want, got int) error {
	return &DimensionMismatchError{Want: want, Got: got}
}
