package retrieval_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"caselaw-orchestrator/internal/domain"
	"caselaw-orchestrator/internal/usecase/retrieval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEncoder returns fixed scores or an error.
type stubEncoder struct {
	scores []float64
	err    error
	calls  int
}

func (s *stubEncoder) Score(_ context.Context, _ string, passages []string) ([]float64, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.scores) != len(passages) {
		return nil, fmt.Errorf("stub has %d scores for %d passages", len(s.scores), len(passages))
	}
	return s.scores, nil
}

func (s *stubEncoder) ModelName() string { return "stub-cross-encoder" }

// stubCompleter replays canned completions and records batch sizes.
type stubCompleter struct {
	responses  []string
	err        error
	calls      int
	batchSizes []int
}

func (s *stubCompleter) Complete(_ context.Context, prompt string, _ int) (*domain.CompletionResult, error) {
	s.calls++
	s.batchSizes = append(s.batchSizes, strings.Count(prompt, "\n[")) // one "[i]" header per passage
	if s.err != nil {
		return nil, s.err
	}
	i := s.calls - 1
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return &domain.CompletionResult{
		Text:  s.responses[i],
		Usage: domain.TokenUsage{PromptTokens: 100, CompletionTokens: 20},
	}, nil
}

func rerankConfig() retrieval.RerankConfig {
	cfg := retrieval.DefaultRerankConfig()
	cfg.TrustThreshold = 0.5
	cfg.BatchSize = 2
	return cfg
}

func makePool(scores ...float64) []*domain.CandidateDocument {
	pool := make([]*domain.CandidateDocument, len(scores))
	for i, s := range scores {
		pool[i] = &domain.CandidateDocument{
			DocID:      fmt.Sprintf("case-%d", i),
			Snippet:    fmt.Sprintf("snippet %d", i),
			DenseScore: s,
		}
	}
	return pool
}

func TestRerank_Tier1Only(t *testing.T) {
	enc := &stubEncoder{scores: []float64{0.9, 0.8, 0.7}}
	comp := &stubCompleter{responses: []string{"[]"}}
	r := retrieval.NewReranker(enc, comp, nil, retrieval.DefaultPreviewConfig(), rerankConfig(), discardLogger())

	pool := makePool(0.5, 0.4, 0.3)
	ledger := &domain.CostLedger{}
	outcome := r.Rerank(context.Background(), "s-1", "q", pool, ledger)

	assert.False(t, outcome.Degraded)
	assert.Equal(t, 3, outcome.Scored)
	assert.Zero(t, comp.calls, "no candidate fell below the trust threshold")
	assert.InDelta(t, 0.9, pool[0].RerankScore, 1e-9)
}

func TestRerank_EscalatesLowConfidenceInFixedBatches(t *testing.T) {
	enc := &stubEncoder{scores: []float64{0.9, 0.2, 0.3, 0.1}}
	comp := &stubCompleter{responses: []string{
		`[{"index": 0, "score": 0.75}, {"index": 1, "score": 0.1}]`,
		`[{"index": 0, "score": 0.6}]`,
	}}
	r := retrieval.NewReranker(enc, comp, nil, retrieval.DefaultPreviewConfig(), rerankConfig(), discardLogger())

	pool := makePool(0.5, 0.5, 0.5, 0.5)
	ledger := &domain.CostLedger{}
	outcome := r.Rerank(context.Background(), "s-1", "q", pool, ledger)

	assert.Equal(t, 2, comp.calls, "three escalated candidates at batch size 2 = 2 batches")
	for _, size := range comp.batchSizes {
		assert.LessOrEqual(t, size, 2, "the fixed batch size is enforced")
	}

	// Final score is max(tier1, tier2): the 0.2 candidate was rescued to
	// 0.75, the 0.3 one kept its tier-2 0.1 rejected (0.3 > 0.1).
	assert.InDelta(t, 0.9, pool[0].RerankScore, 1e-9)
	assert.InDelta(t, 0.75, pool[1].RerankScore, 1e-9)
	assert.InDelta(t, 0.3, pool[2].RerankScore, 1e-9)
	assert.InDelta(t, 0.6, pool[3].RerankScore, 1e-9)

	assert.Positive(t, ledger.Snapshot().TotalTokens)
	assert.False(t, outcome.Degraded)
}

func TestRerank_PureTier2WhenEncoderDown(t *testing.T) {
	enc := &stubEncoder{err: errors.New("connection refused")}
	comp := &stubCompleter{responses: []string{
		`[{"index": 0, "score": 0.8}, {"index": 1, "score": 0.7}]`,
	}}
	r := retrieval.NewReranker(enc, comp, nil, retrieval.DefaultPreviewConfig(), rerankConfig(), discardLogger())

	pool := makePool(0.5, 0.4)
	outcome := r.Rerank(context.Background(), "s-1", "q", pool, &domain.CostLedger{})

	assert.False(t, outcome.Degraded)
	assert.Equal(t, 1, comp.calls)
	assert.InDelta(t, 0.8, pool[0].RerankScore, 1e-9)
	assert.InDelta(t, 0.7, pool[1].RerankScore, 1e-9)
}

func TestRerank_TotalFailureDegrades(t *testing.T) {
	enc := &stubEncoder{err: errors.New("down")}
	comp := &stubCompleter{err: errors.New("also down")}
	r := retrieval.NewReranker(enc, comp, nil, retrieval.DefaultPreviewConfig(), rerankConfig(), discardLogger())

	pool := makePool(0.9, 0.8, 0.7)
	outcome := r.Rerank(context.Background(), "s-1", "q", pool, &domain.CostLedger{})

	assert.True(t, outcome.Degraded)
	for _, c := range pool {
		assert.Zero(t, c.RerankScore, "scores stay untouched on total failure")
	}

	// The fallback never returns an empty set while candidates exist.
	kept := r.FallbackKeep(pool)
	assert.Equal(t, 3, kept)
	assert.True(t, pool[0].Kept)
}

func TestRerank_UnparsableBatchKeepsTier1Score(t *testing.T) {
	enc := &stubEncoder{scores: []float64{0.2, 0.3}}
	comp := &stubCompleter{responses: []string{"I cannot score these documents."}}
	r := retrieval.NewReranker(enc, comp, nil, retrieval.DefaultPreviewConfig(), rerankConfig(), discardLogger())

	pool := makePool(0.5, 0.5)
	outcome := r.Rerank(context.Background(), "s-1", "q", pool, &domain.CostLedger{})

	assert.False(t, outcome.Degraded, "tier 1 succeeded")
	assert.InDelta(t, 0.2, pool[0].RerankScore, 1e-9)
	assert.InDelta(t, 0.3, pool[1].RerankScore, 1e-9)
}

func TestRerank_BatchCeilingBoundsCost(t *testing.T) {
	cfg := rerankConfig()
	cfg.BatchSize = 1
	cfg.MaxBatches = 2

	enc := &stubEncoder{scores: []float64{0.1, 0.1, 0.1, 0.1, 0.1}}
	comp := &stubCompleter{responses: []string{`[{"index": 0, "score": 0.9}]`}}
	r := retrieval.NewReranker(enc, comp, nil, retrieval.DefaultPreviewConfig(), cfg, discardLogger())

	pool := makePool(0.5, 0.5, 0.5, 0.5, 0.5)
	r.Rerank(context.Background(), "s-1", "q", pool, &domain.CostLedger{})

	assert.Equal(t, 2, comp.calls, "tier-2 cost is capped at MaxBatches")
}

func TestRerank_EmptyPool(t *testing.T) {
	r := retrieval.NewReranker(nil, nil, nil, retrieval.DefaultPreviewConfig(), rerankConfig(), discardLogger())
	outcome := r.Rerank(context.Background(), "s-1", "q", nil, &domain.CostLedger{})
	require.Zero(t, outcome.Scored)
	assert.False(t, outcome.Degraded)
}
