package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/staysearch/internal/domain"
	"github.com/kailas-cloud/staysearch/internal/domain/search/request"
	"github.com/kailas-cloud/staysearch/internal/usecase/answer"
)

func chunk(content string) string {
	return fmt.Sprintf(`data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"m",`+
		`"choices":[{"index":0,"delta":{"content":%q}}]}`+"\n\n", content)
}

func sseServer(t *testing.T, body string, inspect func(req map[string]any)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if inspect != nil {
			var req map[string]any
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode request: %v", err)
			}
			inspect(req)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, body)
	}))
}

func drain(t *testing.T, s answer.TokenStream) (string, error) {
	t.Helper()
	var b strings.Builder
	for {
		tok, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		b.WriteString(tok)
	}
}

func TestGenerator_Streams(t *testing.T) {
	body := chunk("Shin") + chunk("juku") + "data: [DONE]\n\n"
	var got map[string]any
	server := sseServer(t, body, func(req map[string]any) { got = req })
	defer server.Close()

	gen := NewGenerator(&GeneratorConfig{APIKey: "k", BaseURL: server.URL, Model: "chat-model", Logger: zap.NewNop()})
	stream, err := gen.Generate(context.Background(), answer.Prompt{
		System:  "sys",
		History: []request.Message{{Role: request.RoleAssistant, Content: "earlier"}},
		User:    "question",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	defer stream.Close()

	text, err := drain(t, stream)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if text != "Shinjuku" {
		t.Errorf("text = %q, want Shinjuku", text)
	}

	if got["model"] != "chat-model" || got["stream"] != true {
		t.Errorf("unexpected request: %v", got)
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("messages = %v", msgs)
	}
	roles := make([]string, 0, len(msgs))
	for _, m := range msgs {
		roles = append(roles, m.(map[string]any)["role"].(string))
	}
	if strings.Join(roles, ",") != "system,assistant,user" {
		t.Errorf("roles = %v", roles)
	}
}

func TestGenerator_MidStreamError(t *testing.T) {
	body := chunk("Shin") + "data: {not json\n\n"
	server := sseServer(t, body, nil)
	defer server.Close()

	gen := NewGenerator(&GeneratorConfig{APIKey: "k", BaseURL: server.URL, Model: "m"})
	stream, err := gen.Generate(context.Background(), answer.Prompt{User: "q"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	defer stream.Close()

	text, err := drain(t, stream)
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
	if text != "Shin" {
		t.Errorf("partial = %q", text)
	}
}

func TestGenerator_OpenError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
	}))
	defer server.Close()

	gen := NewGenerator(&GeneratorConfig{APIKey: "k", BaseURL: server.URL, Model: "m"})
	_, err := gen.Generate(context.Background(), answer.Prompt{User: "q"})
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
}

func TestGenerator_CloseIdempotent(t *testing.T) {
	server := sseServer(t, "data: [DONE]\n\n", nil)
	defer server.Close()

	gen := NewGenerator(&GeneratorConfig{APIKey: "k", BaseURL: server.URL, Model: "m"})
	stream, err := gen.Generate(context.Background(), answer.Prompt{User: "q"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	first := stream.Close()
	if second := stream.Close(); second != first {
		t.Errorf("Close() = %v then %v", first, second)
	}
}

func TestGenerator_RateLimitedByContext(t *testing.T) {
	limiter := NewLimiter(0.001)
	limiter.Allow() // drain the single burst token

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := NewGenerator(&GeneratorConfig{APIKey: "k", BaseURL: "http://unused", Model: "m", Limiter: limiter})
	_, err := gen.Generate(ctx, answer.Prompt{User: "q"})
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}
