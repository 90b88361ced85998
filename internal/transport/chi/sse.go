package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	answeruc "github.com/kailas-cloud/staysearch/internal/usecase/answer"
)

// SSE event names.
const (
	eventState = "state"
	eventToken = "token"
	eventDone  = "done"
)

var errStreamClosed = errors.New("event stream closed")

type stateEvent struct {
	State   string `json:"state"`
	Message string `json:"message,omitempty"`
}

type tokenEvent struct {
	Text string `json:"text"`
}

type doneEvent struct {
	QueryID         string                    `json:"query_id"`
	Kind            string                    `json:"kind"`
	Text            string                    `json:"text"`
	Filters         Filters                   `json:"filters"`
	Listings        []answeruc.ListingSummary `json:"listings"`
	EmbeddingTokens int                       `json:"embedding_tokens"`
	EmbeddingCached bool                      `json:"embedding_cached"`
}

// sseSink writes answer progress as server-sent events.
// After the first failed write every call is a no-op returning errStreamClosed.
type sseSink struct {
	ctx     context.Context
	w       http.ResponseWriter
	flusher http.Flusher
	err     error
}

func newSSESink(ctx context.Context, w http.ResponseWriter) (*sseSink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support flushing")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseSink{ctx: ctx, w: w, flusher: flusher}, nil
}

func (s *sseSink) Transition(st answeruc.State) {
	_ = s.write(eventState, stateEvent{State: string(st), Message: st.Message()})
}

func (s *sseSink) Token(text string) error {
	return s.write(eventToken, tokenEvent{Text: text})
}

func (s *sseSink) done(ev doneEvent) error {
	return s.write(eventDone, ev)
}

func (s *sseSink) closed() bool { return s.err != nil }

func (s *sseSink) write(event string, v any) error {
	if s.err != nil {
		return errStreamClosed
	}
	if err := s.ctx.Err(); err != nil {
		s.err = err
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		s.err = err
		return err
	}
	s.flusher.Flush()
	return nil
}
