package answer

import (
	"context"

	"github.com/kailas-cloud/staysearch/internal/domain/search/filter"
	"github.com/kailas-cloud/staysearch/internal/domain/search/request"
	"github.com/kailas-cloud/staysearch/internal/domain/search/result"
)

// Retriever produces the grounding context for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, threshold float64) (result.ContextSet, filter.Predicate, error)
}

// Prompt is a chat-shaped generation request.
type Prompt struct {
	System  string
	History []request.Message
	User    string
}

// Generator opens a one-shot token stream for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt Prompt) (TokenStream, error)
}

// TokenStream yields answer fragments. Recv returns io.EOF after the last token.
// Close releases the underlying connection and is safe to call more than once.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// Sink receives progress and tokens as the answer is produced.
// A Token error means the consumer is gone; nothing more is written after it.
type Sink interface {
	Transition(s State)
	Token(text string) error
}

// TokenCounter trims text to a token budget.
type TokenCounter interface {
	Truncate(text string, maxTokens int) string
}
