package listing

import (
	"math"
	"testing"
)

func validFields() Fields {
	return Fields{
		ID:            42,
		Name:          "Shinjuku Loft",
		URL:           "https://www.airbnb.com/rooms/42",
		Price:         12000,
		Neighbourhood: "Shinjuku Ku",
		RoomType:      "Entire home/apt",
		Accommodates:  3,
		Document:      "Name: Shinjuku Loft",
		Embedding:     []float32{0.1, 0.2, 0.3},
	}
}

func TestNew_Valid(t *testing.T) {
	l, err := New(validFields())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.ID() != 42 {
		t.Errorf("ID() = %d", l.ID())
	}
	if l.Name() != "Shinjuku Loft" {
		t.Errorf("Name() = %q", l.Name())
	}
	if l.Price() != 12000 {
		t.Errorf("Price() = %f", l.Price())
	}
	if l.Dimension() != 3 {
		t.Errorf("Dimension() = %d", l.Dimension())
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Fields)
	}{
		{"zero id", func(f *Fields) { f.ID = 0 }},
		{"blank name", func(f *Fields) { f.Name = "  " }},
		{"negative price", func(f *Fields) { f.Price = -1 }},
		{"nan price", func(f *Fields) { f.Price = math.NaN() }},
		{"inf price", func(f *Fields) { f.Price = math.Inf(1) }},
		{"no embedding", func(f *Fields) { f.Embedding = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validFields()
			tt.mutate(&f)
			if _, err := New(f); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNew_EmbeddingIsolated(t *testing.T) {
	f := validFields()
	l, err := New(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.Embedding[0] = 9
	if l.Embedding()[0] != 0.1 {
		t.Error("listing shares the caller's embedding slice")
	}

	got := l.Embedding()
	got[1] = 9
	if l.Embedding()[1] != 0.2 {
		t.Error("Embedding() exposes internal slice")
	}
}
