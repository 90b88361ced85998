package answer

// State is a step of the per-query state machine.
type State string

// States in the order a successful query visits them.
const (
	StateStart        State = "start"
	StateRetrieving   State = "retrieving"
	StateEmptyContext State = "empty_context"
	StateGenerating   State = "generating"
	StateStreaming    State = "streaming"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// Message is the user-facing progress line for s.
func (s State) Message() string {
	switch s {
	case StateRetrieving:
		return "Searching for relevant listings..."
	case StateGenerating:
		return "Found matches! Asking the assistant..."
	case StateEmptyContext:
		return "No matching listings."
	default:
		return ""
	}
}

// Terminal reports whether no transition follows s.
func (s State) Terminal() bool {
	return s == StateEmptyContext || s == StateDone || s == StateFailed
}

// Kind classifies the outcome of an answer.
type Kind string

// Answer outcome kinds.
const (
	KindAnswer         Kind = "answer"
	KindNoMatch        Kind = "no_match"
	KindUnavailable    Kind = "unavailable"
	KindTruncated      Kind = "truncated"
	KindInvalidRequest Kind = "invalid_request"
)

// Canned replies.
const (
	NoMatchMessage        = "I couldn't find any listings that match your request. Try rephrasing your search."
	UnavailableMessage    = "I'm temporarily unable to search listings. Please try again in a moment."
	InvalidRequestMessage = "I couldn't understand that request. Please ask a question about a place to stay."
	TruncationMarker      = "\n\n[answer truncated]"
)
