package result

import (
	"slices"
	"testing"

	"github.com/kailas-cloud/staysearch/internal/domain/listing"
)

func mk(t *testing.T, id int64, score float64) Result {
	t.Helper()
	l, err := listing.New(listing.Fields{ID: id, Name: "n", Embedding: []float32{1}})
	if err != nil {
		t.Fatalf("listing.New: %v", err)
	}
	return New(l, score)
}

func TestNew(t *testing.T) {
	r := mk(t, 7, 0.95)
	if r.Listing().ID() != 7 {
		t.Errorf("Listing().ID() = %d", r.Listing().ID())
	}
	if r.Score() != 0.95 {
		t.Errorf("Score() = %f", r.Score())
	}
}

func TestNewContextSet_OrderAndTieBreak(t *testing.T) {
	cs := NewContextSet([]Result{
		mk(t, 3, 0.8), mk(t, 1, 0.9), mk(t, 2, 0.8), mk(t, 9, 0.95),
	}, 0, 10)

	want := []int64{9, 1, 2, 3}
	if got := cs.IDs(); !slices.Equal(got, want) {
		t.Errorf("IDs() = %v, want %v", got, want)
	}
}

func TestNewContextSet_StrictThreshold(t *testing.T) {
	cs := NewContextSet([]Result{mk(t, 1, 0.5), mk(t, 2, 0.5000001), mk(t, 3, 0.4)}, 0.5, 10)

	if got := cs.IDs(); !slices.Equal(got, []int64{2}) {
		t.Errorf("IDs() = %v, want [2]", got)
	}
}

func TestNewContextSet_CapsAtK(t *testing.T) {
	cs := NewContextSet([]Result{mk(t, 1, 0.9), mk(t, 2, 0.8), mk(t, 3, 0.7)}, 0, 2)
	if cs.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", cs.Len())
	}
	if got := cs.IDs(); !slices.Equal(got, []int64{1, 2}) {
		t.Errorf("IDs() = %v", got)
	}
}

func TestContextSet_ResultsIsCopy(t *testing.T) {
	cs := NewContextSet([]Result{mk(t, 1, 0.9)}, 0, 5)
	rs := cs.Results()
	rs[0] = mk(t, 99, 0.1)
	if cs.IDs()[0] != 1 {
		t.Error("Results() exposes internal slice")
	}
}

func TestContextSet_Empty(t *testing.T) {
	var cs ContextSet
	if !cs.IsEmpty() || cs.Len() != 0 {
		t.Error("zero value should be empty")
	}
}
