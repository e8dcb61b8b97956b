package resilience

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"caselaw-orchestrator/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy() Policy {
	return Policy{
		MaxTries:        3,
		InitialInterval: time.Millisecond,
		MaxElapsed:      time.Second,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDo_SucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), testPolicy(), testLogger(), "embed", func() (int, error) {
		calls++
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesTransientFailure(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), testPolicy(), testLogger(), "embed", func() (string, error) {
		calls++
		if calls < 3 {
			return "", domain.ErrBackendUnavailable
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsAtMaxTries(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), testPolicy(), testLogger(), "embed", func() (int, error) {
		calls++
		return 0, domain.ErrRateLimited
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, 3, calls)
}

func TestDo_ParseErrorIsPermanent(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), testPolicy(), testLogger(), "classify", func() (int, error) {
		calls++
		return 0, errors.Join(domain.ErrParse, errors.New("missing engagement field"))
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrParse)
	assert.Equal(t, 1, calls, "parse failures must not be retried")
}

func TestDo_RespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Do(ctx, testPolicy(), testLogger(), "embed", func() (int, error) {
		calls++
		return 0, domain.ErrBackendUnavailable
	})
	require.Error(t, err)
	assert.LessOrEqual(t, calls, 1)
}
