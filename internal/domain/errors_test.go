package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDimensionMismatchError_UnwrapsSentinel(t *testing.T) {
	err := fmt.Errorf("search: %w", NewDimensionMismatch(1536, 768))

	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	var dm *DimensionMismatchError
	if !errors.As(err, &dm) {
		t.Fatalf("expected *DimensionMismatchError, got %T", err)
	}
	if dm.Want != 1536 || dm.Got != 768 {
		t.Errorf("Want/Got = %d/%d", dm.Want, dm.Got)
	}
}

func TestDimensionMismatchError_Message(t *testing.T) {
	err := NewDimensionMismatch(3, 2)
	want := "vector dimension mismatch: want 3, got 2"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
