package request

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/kailas-cloud/staysearch/internal/domain"
)

func floatPtr(f float64) *float64 { return &f }

func TestNew_Defaults(t *testing.T) {
	r, err := New("  cheap stay  ", 0, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Query() != "cheap stay" {
		t.Errorf("Query() = %q", r.Query())
	}
	if r.TopK() != DefaultTopK {
		t.Errorf("TopK() = %d, want %d", r.TopK(), DefaultTopK)
	}
	if r.Threshold() != DefaultThreshold {
		t.Errorf("Threshold() = %f, want %f", r.Threshold(), DefaultThreshold)
	}
	if len(r.History()) != 0 {
		t.Errorf("History() = %v", r.History())
	}
}

func TestNew_ExplicitValues(t *testing.T) {
	r, err := New("q", 10, floatPtr(0), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.TopK() != 10 {
		t.Errorf("TopK() = %d", r.TopK())
	}
	if r.Threshold() != 0 {
		t.Errorf("Threshold() = %f, explicit zero lost", r.Threshold())
	}
}

func TestNew_TopKClamped(t *testing.T) {
	r, err := New("q", 1000, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.TopK() != MaxTopK {
		t.Errorf("TopK() = %d, want %d", r.TopK(), MaxTopK)
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		k         int
		threshold *float64
		history   []Message
	}{
		{"empty query", "", 0, nil, nil},
		{"blank query", " \t\n", 0, nil, nil},
		{"too long", strings.Repeat("a", MaxQueryLength+1), 0, nil, nil},
		{"negative k", "q", -1, nil, nil},
		{"threshold one", "q", 0, floatPtr(1), nil},
		{"threshold below -1", "q", 0, floatPtr(-1.5), nil},
		{"threshold nan", "q", 0, floatPtr(math.NaN()), nil},
		{"bad role", "q", 0, nil, []Message{{Role: "system", Content: "x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.query, tt.k, tt.threshold, tt.history)
			if !errors.Is(err, domain.ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestNew_HistoryWindow(t *testing.T) {
	hist := []Message{
		{Role: RoleUser, Content: "one"},
		{Role: RoleAssistant, Content: "two"},
		{Role: RoleUser, Content: "three"},
	}
	r, err := New("q", 0, nil, hist)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := r.History()
	if len(got) != HistoryWindow {
		t.Fatalf("len(History()) = %d, want %d", len(got), HistoryWindow)
	}
	if got[0].Content != "two" || got[1].Content != "three" {
		t.Errorf("History() = %v, want last two", got)
	}
}

func TestNew_ThresholdNegativeOneAllowed(t *testing.T) {
	if _, err := New("q", 0, floatPtr(-1), nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
