package crossencoder

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"caselaw-orchestrator/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestScore_AlignsResultsPositionally(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/rerank", r.URL.Path)

		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "limitation periods", req.Query)
		assert.Len(t, req.Candidates, 3)

		// The service returns results sorted by score, not input order.
		_ = json.NewEncoder(w).Encode(rerankResponse{
			Model: "bge-reranker-v2-m3",
			Results: []rerankResult{
				{Index: 2, Score: 0.91},
				{Index: 0, Score: 0.40},
				{Index: 1, Score: 0.12},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bge-reranker-v2-m3", time.Second, testLogger())
	scores, err := c.Score(context.Background(), "limitation periods", []string{"p0", "p1", "p2"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.40, 0.12, 0.91}, scores)
}

func TestScore_ServerErrorIsRerankerUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "m", time.Second, testLogger())
	_, err := c.Score(context.Background(), "q", []string{"p"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRerankerUnavailable))
}

func TestScore_ConnectionRefusedIsRerankerUnavailable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "m", 200*time.Millisecond, testLogger())
	_, err := c.Score(context.Background(), "q", []string{"p"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRerankerUnavailable))
}

func TestScore_OutOfRangeIndexRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(rerankResponse{
			Results: []rerankResult{{Index: 7, Score: 0.5}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "m", time.Second, testLogger())
	_, err := c.Score(context.Background(), "q", []string{"p"})
	assert.Error(t, err)
}

func TestScore_EmptyInput(t *testing.T) {
	c := NewClient("http://unused", "m", time.Second, testLogger())
	scores, err := c.Score(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Nil(t, scores)
}
