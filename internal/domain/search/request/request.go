package request

import (
	"fmt"
	"math"
	"strings"

	"github.com/kailas-cloud/staysearch/internal/domain"
)

// Query parameter limits.
const (
	// MaxQueryLength is the maximum allowed query length in bytes.
	MaxQueryLength   = 4096
	DefaultTopK      = 5
	MaxTopK          = 50
	DefaultThreshold = 0.5
	// HistoryWindow is how many trailing chat messages reach the prompt.
	HistoryWindow = 2
	// MaxMessageLength bounds a single history message.
	MaxMessageLength = 8192
)

// Chat roles accepted in history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one prior chat turn.
type Message struct {
	Role    string
	Content string
}

// Request is a validated question.
type Request struct {
	query     string
	topK      int
	threshold float64
	history   []Message
}

// New validates and normalizes query parameters.
// Defaults: topK=5, threshold=0.5. topK is clamped to MaxTopK, threshold must lie in [-1, 1).
// Only the last HistoryWindow messages are kept.
func New(query string, topK int, threshold *float64, history []Message) (Request, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Request{}, fmt.Errorf("%w: query is required", domain.ErrInvalidRequest)
	}
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("%w: query too long (max %d bytes)", domain.ErrInvalidRequest, MaxQueryLength)
	}
	if topK < 0 {
		return Request{}, fmt.Errorf("%w: k must be positive", domain.ErrInvalidRequest)
	}
	if topK == 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	th := DefaultThreshold
	if threshold != nil {
		th = *threshold
	}
	if math.IsNaN(th) || th < -1 || th >= 1 {
		return Request{}, fmt.Errorf("%w: threshold must be in [-1, 1)", domain.ErrInvalidRequest)
	}

	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}
	kept := make([]Message, 0, len(history))
	for i, m := range history {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return Request{}, fmt.Errorf("%w: history[%d]: unknown role %q", domain.ErrInvalidRequest, i, m.Role)
		}
		if len(m.Content) > MaxMessageLength {
			return Request{}, fmt.Errorf("%w: history[%d]: message too long", domain.ErrInvalidRequest, i)
		}
		kept = append(kept, m)
	}

	return Request{query: query, topK: topK, threshold: th, history: kept}, nil
}

// Query returns the trimmed query text.
func (r Request) Query() string { return r.query }

// TopK returns the maximum number of listings to retrieve.
func (r Request) TopK() int { return r.topK }

// Threshold returns the exclusive similarity lower bound.
func (r Request) Threshold() float64 { return r.threshold }

// History returns the retained chat turns, oldest first.
func (r Request) History() []Message {
	out := make([]Message, len(r.history))
	copy(out, r.history)
	return out
}
