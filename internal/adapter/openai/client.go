// Package openai adapts the OpenAI-compatible chat and embedding APIs to the
// domain interfaces. One shared client carries the credentials and a
// process-wide rate limiter so planner, reranker, and classifier traffic
// never stampedes the provider together.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// ClientConfig holds the provider connection settings.
type ClientConfig struct {
	APIKey  string
	BaseURL string
	// RequestsPerSecond bounds outbound calls across all adapters sharing
	// this client. Zero disables the limiter.
	RequestsPerSecond float64
	Burst             int
}

// Client is the shared provider handle.
type Client struct {
	api     *openai.Client
	limiter *rate.Limiter
}

// NewClient creates the shared provider client.
func NewClient(cfg ClientConfig) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		api:     openai.NewClientWithConfig(clientCfg),
		limiter: limiter,
	}
}

// wait blocks until the limiter admits one call.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// classifyAPIError maps a provider error onto the domain error taxonomy.
func classifyAPIError(err error, sentinelRateLimited, sentinelUnavailable error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			return fmt.Errorf("provider throttled: %w", sentinelRateLimited)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("provider rejected credentials: %w", sentinelUnavailable)
		}
		return fmt.Errorf("provider error %d: %w", apiErr.HTTPStatusCode, sentinelUnavailable)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("provider throttled: %w", sentinelRateLimited)
		}
		return fmt.Errorf("provider error %d: %w", reqErr.HTTPStatusCode, sentinelUnavailable)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("provider timed out: %w", sentinelRateLimited)
	}
	return fmt.Errorf("provider request failed: %w", sentinelUnavailable)
}
