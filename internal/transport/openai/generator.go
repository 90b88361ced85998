package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/staysearch/internal/domain"
	"github.com/kailas-cloud/staysearch/internal/domain/search/request"
	"github.com/kailas-cloud/staysearch/internal/usecase/answer"
)

// GeneratorConfig holds the chat completion settings.
type GeneratorConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	// Limiter is shared with other outbound chat calls. Nil disables limiting.
	Limiter *rate.Limiter
	Logger  *zap.Logger
}

// Generator streams grounded answers from an OpenAI-compatible chat endpoint.
type Generator struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// NewGenerator creates a streaming chat generator.
func NewGenerator(cfg *GeneratorConfig) *Generator {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{
		client:      newClient(cfg.APIKey, cfg.BaseURL),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		limiter:     cfg.Limiter,
		logger:      log,
	}
}

// Generate opens a token stream for prompt.
func (g *Generator) Generate(ctx context.Context, prompt answer.Prompt) (answer.TokenStream, error) {
	if err := wait(ctx, g.limiter); err != nil {
		return nil, err
	}

	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    chatMessages(prompt),
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
		Stream:      true,
	}

	c := startCall(opChat, g.model)
	stream, err := g.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		c.fail("api_error")
		return nil, parseAPIError("chat", err, domain.ErrGenerationFailed)
	}
	g.logger.Debug("Chat stream opened",
		zap.String("model", g.model),
		zap.Int("messages", len(req.Messages)),
		zap.Int("history", len(prompt.History)),
	)
	return &chatStream{stream: stream, call: c}, nil
}

func chatMessages(p answer.Prompt) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(p.History)+2)
	if p.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: p.System})
	}
	for _, m := range p.History {
		role := openai.ChatMessageRoleUser
		if m.Role == request.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: p.User})
}

type chatStream struct {
	stream *openai.ChatCompletionStream
	call   call
	once   sync.Once
	err    error
}

// Recv returns the next content delta. Chunks without content yield an empty string.
func (s *chatStream) Recv() (string, error) {
	resp, err := s.stream.Recv()
	if errors.Is(err, io.EOF) {
		s.call.ok(0, 0)
		return "", io.EOF
	}
	if err != nil {
		s.call.fail("stream_error")
		return "", fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Delta.Content, nil
}

func (s *chatStream) Close() error {
	s.once.Do(func() { s.err = s.stream.Close() })
	return s.err
}
