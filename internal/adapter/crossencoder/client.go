// Package crossencoder calls the pairwise scoring service that hosts the
// cross-encoder model. It is the reranker's fast tier.
package crossencoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"caselaw-orchestrator/internal/domain"
	"caselaw-orchestrator/internal/infra/httpclient"
)

// rerankRequest is the request payload for the scoring endpoint.
type rerankRequest struct {
	Query      string   `json:"query"`
	Candidates []string `json:"candidates"`
	Model      string   `json:"model,omitempty"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

type rerankResponse struct {
	Results []rerankResult `json:"results"`
	Model   string         `json:"model"`
}

// Client implements domain.CrossEncoder over HTTP.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient constructs the cross-encoder client. baseURL is the scoring
// service root (e.g. http://reranker:8001).
func NewClient(baseURL, model string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http:    httpclient.NewPooledClient(timeout),
		logger:  logger,
	}
}

func (c *Client) ModelName() string { return c.model }

// Score returns one relevance score per passage, positionally aligned with
// the input.
func (c *Client) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(rerankRequest{
		Query:      query,
		Candidates: passages,
		Model:      c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	url := c.baseURL + "/v1/rerank"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call rerank endpoint: %w", domain.ErrRerankerUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("cross_encoder_request_failed",
			slog.Int("status_code", resp.StatusCode),
			slog.String("body", string(body)))
		return nil, fmt.Errorf("rerank endpoint returned %d: %w", resp.StatusCode, domain.ErrRerankerUnavailable)
	}

	var decoded rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}

	scores := make([]float64, len(passages))
	for _, r := range decoded.Results {
		if r.Index < 0 || r.Index >= len(passages) {
			return nil, fmt.Errorf("invalid result index %d for %d passages", r.Index, len(passages))
		}
		scores[r.Index] = r.Score
	}

	c.logger.Debug("cross_encoder_scoring_completed",
		slog.Int("passage_count", len(passages)),
		slog.String("model", decoded.Model),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))

	return scores, nil
}
