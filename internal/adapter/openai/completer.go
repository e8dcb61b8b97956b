package openai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"caselaw-orchestrator/internal/domain"
	"caselaw-orchestrator/internal/infra/resilience"

	openai "github.com/sashabaranov/go-openai"
)

// Completer implements domain.Completer on the chat-completions endpoint.
// The reranker and classifier build their own prompts; this adapter only
// moves text and meters tokens.
type Completer struct {
	client *Client
	model  string
	logger *slog.Logger
}

// NewCompleter creates the plain completion adapter.
func NewCompleter(client *Client, model string, logger *slog.Logger) *Completer {
	return &Completer{client: client, model: model, logger: logger}
}

func (c *Completer) Complete(ctx context.Context, prompt string, maxTokens int) (*domain.CompletionResult, error) {
	start := time.Now()
	resp, err := resilience.Do(ctx, resilience.DefaultPolicy(), c.logger, "create_chat_completion", func() (openai.ChatCompletionResponse, error) {
		if err := c.client.wait(ctx); err != nil {
			return openai.ChatCompletionResponse{}, fmt.Errorf("rate limiter: %w", err)
		}
		resp, err := c.client.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:     c.model,
			MaxTokens: maxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			return openai.ChatCompletionResponse{}, classifyAPIError(err, domain.ErrRateLimited, domain.ErrBackendUnavailable)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty completion response: %w", domain.ErrBackendUnavailable)
	}

	c.logger.Debug("completion_call_finished",
		slog.String("model", c.model),
		slog.Int("prompt_tokens", resp.Usage.PromptTokens),
		slog.Int("completion_tokens", resp.Usage.CompletionTokens),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return &domain.CompletionResult{
		Text: resp.Choices[0].Message.Content,
		Usage: domain.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
