package openai

import (
	"context"
	"fmt"
	"log/slog"

	"caselaw-orchestrator/internal/domain"
	"caselaw-orchestrator/internal/infra/resilience"

	lru "github.com/hashicorp/golang-lru/v2"
	openai "github.com/sashabaranov/go-openai"
)

// Embedder implements domain.Embedder on the embeddings endpoint with an
// in-process LRU cache. The planner tends to re-run near-identical queries
// across rounds and sessions; cache hits cost nothing and keep dense search
// responsive.
type Embedder struct {
	client *Client
	model  openai.EmbeddingModel
	cache  *lru.Cache[string, []float32]
	logger *slog.Logger
}

// NewEmbedder creates the caching embedder. cacheSize <= 0 disables the cache.
func NewEmbedder(client *Client, model string, cacheSize int, logger *slog.Logger) (*Embedder, error) {
	e := &Embedder{
		client: client,
		model:  openai.EmbeddingModel(model),
		logger: logger,
	}
	if cacheSize > 0 {
		cache, err := lru.New[string, []float32](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding cache: %w", err)
		}
		e.cache = cache
	}
	return e, nil
}

func (e *Embedder) Model() string { return string(e.model) }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, domain.TokenUsage, error) {
	if e.cache != nil {
		if vector, ok := e.cache.Get(text); ok {
			return vector, domain.TokenUsage{}, nil
		}
	}

	resp, err := resilience.Do(ctx, resilience.DefaultPolicy(), e.logger, "create_embeddings", func() (openai.EmbeddingResponse, error) {
		if err := e.client.wait(ctx); err != nil {
			return openai.EmbeddingResponse{}, fmt.Errorf("rate limiter: %w", err)
		}
		resp, err := e.client.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input:          []string{text},
			Model:          e.model,
			EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		})
		if err != nil {
			return openai.EmbeddingResponse{}, classifyAPIError(err, domain.ErrRateLimited, domain.ErrBackendUnavailable)
		}
		return resp, nil
	})
	if err != nil {
		return nil, domain.TokenUsage{}, err
	}
	if len(resp.Data) == 0 {
		return nil, domain.TokenUsage{}, fmt.Errorf("empty embedding response: %w", domain.ErrBackendUnavailable)
	}

	usage := domain.TokenUsage{
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}
	vector := resp.Data[0].Embedding
	if e.cache != nil {
		e.cache.Add(text, vector)
	}
	return vector, usage, nil
}
