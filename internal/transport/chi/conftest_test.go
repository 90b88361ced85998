package chi

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/staysearch/internal/domain"
	"github.com/kailas-cloud/staysearch/internal/domain/listing"
	"github.com/kailas-cloud/staysearch/internal/domain/search/filter"
	"github.com/kailas-cloud/staysearch/internal/domain/search/request"
	"github.com/kailas-cloud/staysearch/internal/domain/search/result"
	answeruc "github.com/kailas-cloud/staysearch/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/staysearch/internal/usecase/health"
)

type mockAnswerer struct {
	answerFn func(ctx context.Context, req request.Request, sink answeruc.Sink) answeruc.Result
	reqs     []request.Request
}

func (m *mockAnswerer) Answer(ctx context.Context, req request.Request, sink answeruc.Sink) answeruc.Result {
	m.reqs = append(m.reqs, req)
	if m.answerFn != nil {
		return m.answerFn(ctx, req, sink)
	}
	return answeruc.Result{}
}

type retrieveCall struct {
	query     string
	k         int
	threshold float64
}

type mockRetriever struct {
	set   result.ContextSet
	pred  filter.Predicate
	err   error
	calls []retrieveCall
}

func (m *mockRetriever) Retrieve(
	ctx context.Context, query string, k int, threshold float64,
) (result.ContextSet, filter.Predicate, error) {
	m.calls = append(m.calls, retrieveCall{query: query, k: k, threshold: threshold})
	domain.UsageFromContext(ctx).AddTokens(7)
	return m.set, m.pred, m.err
}

type mockChecker struct{ err error }

func (m *mockChecker) HealthCheck(context.Context) error { return m.err }

type sseEvent struct {
	name string
	data string
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var (
		events []sseEvent
		cur    sseEvent
	)
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if cur.name != "" {
				events = append(events, cur)
			}
			cur = sseEvent{}
		}
	}
	return events
}

func decode[T any](t *testing.T, data string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	return v
}

func testPrices(t *testing.T) *answeruc.PriceFormatter {
	t.Helper()
	p, err := answeruc.NewPriceFormatter("¥", "ja")
	if err != nil {
		t.Fatalf("NewPriceFormatter: %v", err)
	}
	return p
}

func testSet(t *testing.T) result.ContextSet {
	t.Helper()
	l, err := listing.New(listing.Fields{
		ID:            42,
		Name:          "Shinjuku Loft",
		URL:           "https://example.com/rooms/42",
		Price:         12000,
		Neighbourhood: "Shinjuku Ku",
		RoomType:      "Entire home/apt",
		Accommodates:  3,
		Embedding:     []float32{1, 0},
	})
	if err != nil {
		t.Fatalf("listing.New: %v", err)
	}
	return result.NewContextSet([]result.Result{result.New(l, 0.87)}, 0.5, 5)
}

func newTestServer(t *testing.T, a Answerer, r Retriever, catalogErr error) *Server {
	t.Helper()
	health := healthuc.New(&mockChecker{err: catalogErr}, nil, nil)
	return NewServer(a, r, testPrices(t), health, zap.NewNop())
}
