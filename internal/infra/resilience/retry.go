// Package resilience centralizes the retry policy for provider calls. Every
// outbound integration retries the same way: bounded exponential backoff,
// no retry on errors that cannot heal (bad credentials, bad model output).
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"caselaw-orchestrator/internal/domain"

	"github.com/cenkalti/backoff/v5"
)

// Policy holds the retry parameters.
type Policy struct {
	// MaxTries counts the first attempt.
	MaxTries uint
	// InitialInterval seeds the exponential backoff.
	InitialInterval time.Duration
	// MaxElapsed bounds total time across attempts.
	MaxElapsed time.Duration
}

// DefaultPolicy returns the provider-call defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxTries:        3,
		InitialInterval: 500 * time.Millisecond,
		MaxElapsed:      20 * time.Second,
	}
}

// Do runs op with the policy's backoff. Errors wrapping ErrParse or plain
// credential rejections are permanent: retrying the same request reproduces
// them.
func Do[T any](ctx context.Context, p Policy, logger *slog.Logger, name string, op func() (T, error)) (T, error) {
	attempt := 0
	wrapped := func() (T, error) {
		attempt++
		result, err := op()
		if err == nil {
			return result, nil
		}
		if !retryable(err) {
			return result, backoff.Permanent(err)
		}
		logger.Warn("retrying_provider_call",
			slog.String("operation", name),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
		return result, err
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = p.InitialInterval

	return backoff.Retry(ctx, wrapped,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(p.MaxTries),
		backoff.WithMaxElapsedTime(p.MaxElapsed),
	)
}

// retryable reports whether another attempt can plausibly succeed.
func retryable(err error) bool {
	if errors.Is(err, domain.ErrParse) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
