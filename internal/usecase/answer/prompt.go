package answer

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/staysearch/internal/domain/search/request"
	"github.com/kailas-cloud/staysearch/internal/domain/search/result"
)

const systemPrompt = `You are a helpful Tokyo accommodation assistant.
Answer the user's question using ONLY the listings provided in the context.

Rules:
1. Answer only from the context. If the context does not answer the question, say so.
2. Use the chat history only to understand follow-up questions.
3. Do not make up information. Be concise.
4. End your answer with a section titled "Listings Found:".
5. In that section, list the name of every listing you used as a bullet point.`

// PromptBuilder assembles the grounding prompt from display fields of the context set.
type PromptBuilder struct {
	prices       *PriceFormatter
	counter      TokenCounter
	maxDocTokens int
}

// NewPromptBuilder creates a builder. A nil counter or non-positive maxDocTokens
// leaves listing documents untruncated.
func NewPromptBuilder(prices *PriceFormatter, counter TokenCounter, maxDocTokens int) *PromptBuilder {
	return &PromptBuilder{prices: prices, counter: counter, maxDocTokens: maxDocTokens}
}

// Build returns the chat prompt for query over set.
func (b *PromptBuilder) Build(query string, history []request.Message, set result.ContextSet) Prompt {
	var sb strings.Builder
	sb.WriteString("--- CONTEXT ---\n")
	for i, r := range set.Results() {
		l := r.Listing()
		fmt.Fprintf(&sb, "Result %d:\n", i+1)
		fmt.Fprintf(&sb, "Name: %s\n", l.Name())
		if l.Neighbourhood() != "" {
			fmt.Fprintf(&sb, "Neighbourhood: %s\n", l.Neighbourhood())
		}
		if l.RoomType() != "" {
			fmt.Fprintf(&sb, "Room type: %s\n", l.RoomType())
		}
		if l.Accommodates() > 0 {
			fmt.Fprintf(&sb, "Accommodates: %d\n", l.Accommodates())
		}
		fmt.Fprintf(&sb, "Price per night: %s\n", b.prices.Format(l.Price()))
		if doc := b.document(l.Document()); doc != "" {
			fmt.Fprintf(&sb, "Details: %s\n", doc)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("--- END CONTEXT ---\n\n")
	sb.WriteString("User Question: ")
	sb.WriteString(query)

	return Prompt{
		System:  systemPrompt,
		History: tail(history, request.HistoryWindow),
		User:    sb.String(),
	}
}

func (b *PromptBuilder) document(doc string) string {
	doc = strings.TrimSpace(doc)
	if b.counter == nil || b.maxDocTokens <= 0 || doc == "" {
		return doc
	}
	return b.counter.Truncate(doc, b.maxDocTokens)
}

func tail(history []request.Message, n int) []request.Message {
	if len(history) > n {
		history = history[len(history)-n:]
	}
	out := make([]request.Message, len(history))
	copy(out, history)
	return out
}
