package answer

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/staysearch/internal/domain"
	"github.com/kailas-cloud/staysearch/internal/domain/search/filter"
	"github.com/kailas-cloud/staysearch/internal/domain/search/request"
	"github.com/kailas-cloud/staysearch/internal/domain/search/result"
	"github.com/kailas-cloud/staysearch/internal/logger"
	"github.com/kailas-cloud/staysearch/internal/metrics"
)

// ListingSummary is the display view of a listing used to ground an answer.
type ListingSummary struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	URL           string  `json:"listing_url"`
	Price         float64 `json:"price"`
	PriceDisplay  string  `json:"price_display"`
	Neighbourhood string  `json:"neighbourhood"`
	RoomType      string  `json:"room_type,omitempty"`
	Accommodates  int     `json:"accommodates,omitempty"`
	Score         float64 `json:"score"`
}

// Result is the outcome of one query. Raw errors never appear here.
type Result struct {
	QueryID  string
	Kind     Kind
	Text     string
	Filters  filter.Predicate
	Listings []ListingSummary
}

// Config tunes answer generation.
type Config struct {
	// Model labels generation metrics.
	Model             string
	GenerationTimeout time.Duration
}

// Service runs the per-query state machine: retrieve, then generate and stream.
type Service struct {
	retriever Retriever
	generator Generator
	prompts   *PromptBuilder
	prices    *PriceFormatter
	cfg       Config
}

// New creates an answer service.
func New(retriever Retriever, generator Generator, prompts *PromptBuilder, prices *PriceFormatter, cfg Config) *Service {
	return &Service{
		retriever: retriever,
		generator: generator,
		prompts:   prompts,
		prices:    prices,
		cfg:       cfg,
	}
}

// Answer retrieves grounding listings for req and streams a generated answer into sink.
func (s *Service) Answer(ctx context.Context, req request.Request, sink Sink) Result {
	qid := uuid.NewString()
	ctx, log := logger.With(ctx, zap.String("query_id", qid))

	q := &query{ctx: ctx, log: log, sink: sink, res: Result{QueryID: qid}}
	q.transition(StateStart)
	q.transition(StateRetrieving)

	set, pred, err := s.retriever.Retrieve(ctx, req.Query(), req.TopK(), req.Threshold())
	q.res.Filters = pred
	if err != nil {
		return s.finishRetrievalError(q, err)
	}
	q.res.Listings = Summaries(set, s.prices)

	if set.IsEmpty() {
		q.transition(StateEmptyContext)
		return s.finishCanned(q, KindNoMatch, NoMatchMessage)
	}

	q.transition(StateGenerating)
	prompt := s.prompts.Build(req.Query(), req.History(), set)
	return s.generate(q, prompt, set)
}

func (s *Service) finishRetrievalError(q *query, err error) Result {
	q.transition(StateFailed)
	if q.ctx.Err() != nil {
		return s.finish(q, KindTruncated, err)
	}
	if errors.Is(err, domain.ErrInvalidRequest) {
		return s.finishCanned(q, KindInvalidRequest, InvalidRequestMessage, err)
	}
	return s.finishCanned(q, KindUnavailable, UnavailableMessage, err)
}

func (s *Service) generate(q *query, prompt Prompt, set result.ContextSet) Result {
	ctx := q.ctx
	if s.cfg.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.GenerationTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		metrics.GenerationDuration.WithLabelValues(s.cfg.Model).Observe(time.Since(start).Seconds())
	}()

	stream, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		q.transition(StateFailed)
		if q.ctx.Err() != nil {
			return s.finish(q, KindTruncated, err)
		}
		return s.finishCanned(q, KindUnavailable, UnavailableMessage, err)
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			q.log.Debug("Close generator stream", zap.Error(cerr))
		}
	}()

	q.transition(StateStreaming)
	var buf strings.Builder
	for {
		if q.ctx.Err() != nil {
			q.res.Text = Linkify(buf.String(), set)
			q.transition(StateFailed)
			return s.finish(q, KindTruncated, q.ctx.Err())
		}

		tok, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return s.streamFailed(q, &buf, set, err)
		}
		if tok == "" {
			continue
		}

		buf.WriteString(tok)
		if err := q.sink.Token(tok); err != nil {
			q.res.Text = Linkify(buf.String(), set)
			q.transition(StateFailed)
			return s.finish(q, KindTruncated, err)
		}
	}

	q.res.Text = Linkify(buf.String(), set)
	q.transition(StateDone)
	return s.finish(q, KindAnswer, nil)
}

func (s *Service) streamFailed(q *query, buf *strings.Builder, set result.ContextSet, err error) Result {
	q.transition(StateFailed)
	if q.ctx.Err() != nil {
		q.res.Text = Linkify(buf.String(), set)
		return s.finish(q, KindTruncated, err)
	}
	if buf.Len() == 0 {
		return s.finishCanned(q, KindUnavailable, UnavailableMessage, err)
	}
	buf.WriteString(TruncationMarker)
	q.res.Text = Linkify(buf.String(), set)
	_ = q.sink.Token(TruncationMarker)
	return s.finish(q, KindTruncated, err)
}

// finishCanned streams msg as the only token and records it as the answer text.
func (s *Service) finishCanned(q *query, kind Kind, msg string, causes ...error) Result {
	q.res.Text = msg
	if err := q.sink.Token(msg); err != nil {
		q.log.Debug("Sink closed before canned reply", zap.Error(err))
	}
	return s.finish(q, kind, errors.Join(causes...))
}

func (s *Service) finish(q *query, kind Kind, cause error) Result {
	q.res.Kind = kind
	metrics.AnswersTotal.WithLabelValues(string(kind)).Inc()

	fields := []zap.Field{
		zap.String("kind", string(kind)),
		zap.Int("listings", len(q.res.Listings)),
		zap.String("filters", q.res.Filters.String()),
		zap.Int("answer_len", len(q.res.Text)),
	}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	switch kind {
	case KindUnavailable:
		q.log.Warn("Answer failed", fields...)
	default:
		q.log.Info("Answer finished", fields...)
	}
	return q.res
}

type query struct {
	ctx  context.Context
	log  *zap.Logger
	sink Sink
	res  Result
}

func (q *query) transition(st State) {
	q.log.Debug("Answer state", zap.String("state", string(st)))
	q.sink.Transition(st)
}

// Summaries renders the display view of every listing in set, best first.
func Summaries(set result.ContextSet, prices *PriceFormatter) []ListingSummary {
	results := set.Results()
	out := make([]ListingSummary, 0, len(results))
	for _, r := range results {
		l := r.Listing()
		out = append(out, ListingSummary{
			ID:            l.ID(),
			Name:          l.Name(),
			URL:           l.URL(),
			Price:         l.Price(),
			PriceDisplay:  prices.Format(l.Price()),
			Neighbourhood: l.Neighbourhood(),
			RoomType:      l.RoomType(),
			Accommodates:  l.Accommodates(),
			Score:         r.Score(),
		})
	}
	return out
}
