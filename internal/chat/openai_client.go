package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/calebwren/portfolio-ai/pkg/logging"
)

// OpenAIClient speaks the OpenAI-compatible completion API. It works
// against the hosted service or any compatible gateway via BaseURL.
type OpenAIClient struct {
	client *openai.Client
	logger *logging.Logger
}

// NewOpenAIClient builds a client for the given key and optional base URL.
func NewOpenAIClient(apiKey, baseURL string, logger *logging.Logger) *OpenAIClient {
	if apiKey == "" {
		panic("chat: LLM API key required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		logger: logger.WithComponent("openai_client"),
	}
}

func (c *OpenAIClient) Name() string { return "openai" }

// Complete performs a blocking completion.
func (c *OpenAIClient) Complete(ctx context.Context, req LLMRequest) (*LLMResponse, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  toOpenAIMessages(req.Messages),
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return nil, classifyOpenAIError(req.Model, err)
	}
	if len(resp.Choices) == 0 {
		return nil, MarkTransient(fmt.Errorf("chat: model %s returned no choices", req.Model))
	}
	return &LLMResponse{Text: resp.Choices[0].Message.Content, Model: req.Model}, nil
}

// CompleteStream opens a streamed completion. The returned channel carries
// incremental text and closes after a terminal chunk. Open errors are
// returned synchronously so callers can fail over before any output is
// emitted.
func (c *OpenAIClient) CompleteStream(ctx context.Context, req LLMRequest) (<-chan StreamChunk, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  toOpenAIMessages(req.Messages),
		MaxTokens: req.MaxTokens,
		Stream:    true,
	})
	if err != nil {
		return nil, classifyOpenAIError(req.Model, err)
	}

	chunks := make(chan StreamChunk, 16)
	go func() {
		defer close(chunks)
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				chunks <- StreamChunk{Model: req.Model, Done: true}
				return
			}
			if err != nil {
				chunks <- StreamChunk{Model: req.Model, Err: classifyOpenAIError(req.Model, err), Done: true}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if delta := resp.Choices[0].Delta.Content; delta != "" {
				select {
				case chunks <- StreamChunk{Text: delta, Model: req.Model}:
				case <-ctx.Done():
					chunks <- StreamChunk{Model: req.Model, Err: ctx.Err(), Done: true}
					return
				}
			}
		}
	}()
	return chunks, nil
}

// classifyOpenAIError maps provider failures onto the retry taxonomy.
func classifyOpenAIError(model string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code, _ := apiErr.Code.(string)
		if apiErr.HTTPStatusCode == http.StatusNotFound || code == "model_not_found" ||
			strings.Contains(strings.ToLower(apiErr.Message), "model") && strings.Contains(strings.ToLower(apiErr.Message), "does not exist") {
			return fmt.Errorf("chat: model %s: %w", model, ErrModelNotFound)
		}
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500 {
			return MarkTransient(fmt.Errorf("chat: model %s: %w", model, err))
		}
		return fmt.Errorf("chat: model %s: %w", model, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	// Network level failures are worth another attempt.
	return MarkTransient(fmt.Errorf("chat: model %s: %w", model, err))
}

func toOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}
