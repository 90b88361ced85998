package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/staysearch/internal/domain"
	"github.com/kailas-cloud/staysearch/internal/domain/search/filter"
	"github.com/kailas-cloud/staysearch/internal/domain/search/request"
	"github.com/kailas-cloud/staysearch/internal/domain/search/result"
	"github.com/kailas-cloud/staysearch/internal/logger"
	answeruc "github.com/kailas-cloud/staysearch/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/staysearch/internal/usecase/health"
)

const maxBodyBytes = 1 << 20

// Answerer runs the full question answering pipeline.
type Answerer interface {
	Answer(ctx context.Context, req request.Request, sink answeruc.Sink) answeruc.Result
}

// Retriever runs retrieval only.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, threshold float64) (result.ContextSet, filter.Predicate, error)
}

// Server serves the HTTP API.
type Server struct {
	answers       Answerer
	retriever     Retriever
	prices        *answeruc.PriceFormatter
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	answers Answerer,
	retriever Retriever,
	prices *answeruc.PriceFormatter,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	return &Server{
		answers:       answers,
		retriever:     retriever,
		prices:        prices,
		health:        health,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// HistoryMessage is a prior chat turn sent by the client.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AnswerRequest is the body of POST /api/v1/answer.
type AnswerRequest struct {
	Query     string           `json:"query"`
	History   []HistoryMessage `json:"history,omitempty"`
	K         int               `json:"k,omitempty"`
	Threshold *float64          `json:"threshold,omitempty"`
}

// Filters is the JSON view of an applied predicate.
type Filters = filter.View

// SearchResponse is the body of GET /api/v1/search.
type SearchResponse struct {
	Filters Filters                   `json:"filters"`
	Results []answeruc.ListingSummary `json:"results"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Answer handles POST /api/v1/answer and streams server-sent events.
func (s *Server) Answer(w http.ResponseWriter, r *http.Request) {
	var body AnswerRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	history := make([]request.Message, 0, len(body.History))
	for _, m := range body.History {
		history = append(history, request.Message{Role: m.Role, Content: m.Content})
	}
	req, err := request.New(body.Query, body.K, body.Threshold, history)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	sink, err := newSSESink(r.Context(), w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "streaming unsupported")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res := s.answers.Answer(ctx, req, sink)
	if sink.closed() {
		return
	}
	if err := sink.done(doneEvent{
		QueryID:         res.QueryID,
		Kind:            string(res.Kind),
		Text:            res.Text,
		Filters:         res.Filters.View(),
		Listings:        nonNil(res.Listings),
		EmbeddingTokens: usage.Tokens(),
		EmbeddingCached: usage.Cached(),
	}); err != nil {
		logger.FromContext(r.Context()).Debug("Write done event", zap.Error(err))
	}
}

// Search handles GET /api/v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var (
		q         string
		k         *int
		threshold *float64
	)
	if err := runtime.BindQueryParameter("form", true, true, "q", query, &q); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid parameter q: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "k", query, &k); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid parameter k: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "threshold", query, &threshold); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid parameter threshold: "+err.Error())
		return
	}

	topK := 0
	if k != nil {
		topK = *k
	}
	req, err := request.New(q, topK, threshold, nil)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	set, pred, err := s.retriever.Retrieve(ctx, req.Query(), req.TopK(), req.Threshold())
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Filters: pred.View(),
		Results: nonNil(answeruc.Summaries(set, s.prices)),
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if !usage.Used() {
		return
	}
	w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.Tokens()))
	w.Header().Set("X-Embedding-Cached", strconv.FormatBool(usage.Cached()))
}

func nonNil(s []answeruc.ListingSummary) []answeruc.ListingSummary {
	if s == nil {
		return []answeruc.ListingSummary{}
	}
	return s
}
