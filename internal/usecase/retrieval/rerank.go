package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"caselaw-orchestrator/internal/domain"
)

// RerankConfig holds the two-tier reranker parameters.
type RerankConfig struct {
	// TrustThreshold: tier-1 scores below it escalate to the LLM tier.
	TrustThreshold float64
	// BatchSize is the fixed tier-2 batch size. It is a calibration
	// control, not an implementation detail: large batches make the LLM
	// lose discriminative power and under-score everything.
	BatchSize int
	// MaxBatches bounds worst-case tier-2 cost.
	MaxBatches int
	// FallbackTopN is how many candidates survive, by prior score, when
	// both tiers are down.
	FallbackTopN int
	// Timeout applies per external call.
	Timeout time.Duration
}

// DefaultRerankConfig returns the calibrated defaults.
func DefaultRerankConfig() RerankConfig {
	return RerankConfig{
		TrustThreshold: 0.50,
		BatchSize:      5,
		MaxBatches:     8,
		FallbackTopN:   10,
		Timeout:        30 * time.Second,
	}
}

// Validate checks the reranker configuration.
func (c RerankConfig) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("tier-2 batch size must be positive, got %d", c.BatchSize)
	}
	if c.MaxBatches <= 0 {
		return fmt.Errorf("tier-2 max batches must be positive, got %d", c.MaxBatches)
	}
	if c.FallbackTopN <= 0 {
		return fmt.Errorf("fallback topN must be positive, got %d", c.FallbackTopN)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	return nil
}

// RerankOutcome summarizes one rerank pass.
type RerankOutcome struct {
	Scored    int
	Escalated int
	// Degraded: both tiers failed; scores were left untouched and callers
	// should fall back to prior-score order rather than returning nothing.
	Degraded bool
}

// Reranker is the two-tier relevance scorer: a fast cross-encoder pass over
// bounded previews, with escalation of low-confidence items to an LLM batch
// scorer. The final score per document is max(tier1, tier2) so a rescue by
// either tier is sufficient.
type Reranker struct {
	encoder   domain.CrossEncoder // nil = tier 1 unavailable
	completer domain.Completer    // nil = tier 2 unavailable
	store     domain.DocumentStore
	preview   PreviewConfig
	cfg       RerankConfig
	logger    *slog.Logger
}

// NewReranker builds the two-tier reranker. encoder and completer may each be
// nil; the reranker degrades through the remaining tier.
func NewReranker(encoder domain.CrossEncoder, completer domain.Completer, store domain.DocumentStore, preview PreviewConfig, cfg RerankConfig, logger *slog.Logger) *Reranker {
	return &Reranker{
		encoder:   encoder,
		completer: completer,
		store:     store,
		preview:   preview,
		cfg:       cfg,
		logger:    logger,
	}
}

// Rerank scores every candidate in the pool against the query, mutating
// RerankScore in place. It never returns an error for scorer outages; those
// surface as Degraded so a reranker outage degrades relevance quality, not
// availability.
func (r *Reranker) Rerank(ctx context.Context, sessionID, query string, pool []*domain.CandidateDocument, ledger *domain.CostLedger) RerankOutcome {
	outcome := RerankOutcome{}
	if len(pool) == 0 {
		return outcome
	}

	start := time.Now()
	previews := r.buildPreviews(ctx, pool)

	// Tier 1: one pairwise-scorer call over all candidates.
	tier1 := r.scoreTier1(ctx, sessionID, query, previews)

	escalate := make([]int, 0, len(pool))
	for i, c := range pool {
		if tier1 != nil {
			c.RerankScore = tier1[i]
			outcome.Scored++
			if tier1[i] < r.cfg.TrustThreshold {
				escalate = append(escalate, i)
			}
		} else {
			// Cross-encoder unavailable: pure tier-2 batching over the
			// full candidate pool.
			escalate = append(escalate, i)
		}
	}

	// Tier 2: sequential fixed-size LLM batches. Sequential by design —
	// the fixed batch size exists to prevent calibration drift, and
	// parallel batches would reintroduce unbounded cost.
	tier2OK := r.scoreTier2(ctx, sessionID, query, pool, previews, escalate, ledger, &outcome)

	if tier1 == nil && !tier2OK {
		outcome.Degraded = true
		r.logger.Warn("reranking_unavailable_falling_back",
			slog.String("session_id", sessionID),
			slog.Int("candidate_count", len(pool)),
			slog.String("error", domain.ErrRerankerUnavailable.Error()))
		return outcome
	}

	r.logger.Info("reranking_completed",
		slog.String("session_id", sessionID),
		slog.Int("candidate_count", len(pool)),
		slog.Int("scored", outcome.Scored),
		slog.Int("escalated", outcome.Escalated),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return outcome
}

// FallbackKeep marks the top-N candidates by prior score as kept. Used when
// both tiers are down and the gate would otherwise return an empty set.
func (r *Reranker) FallbackKeep(pool []*domain.CandidateDocument) int {
	sorted := make([]*domain.CandidateDocument, len(pool))
	copy(sorted, pool)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].DenseScore != sorted[j].DenseScore {
			return sorted[i].DenseScore > sorted[j].DenseScore
		}
		return sorted[i].DocID < sorted[j].DocID
	})
	kept := 0
	for _, c := range sorted {
		if kept >= r.cfg.FallbackTopN {
			break
		}
		c.Kept = true
		kept++
	}
	return kept
}

func (r *Reranker) buildPreviews(ctx context.Context, pool []*domain.CandidateDocument) []string {
	previews := make([]string, len(pool))
	for i, c := range pool {
		previews[i] = c.Snippet // fallback when the full text is missing
	}
	if r.store == nil {
		return previews
	}

	ids := make([]string, len(pool))
	index := make(map[string]int, len(pool))
	for i, c := range pool {
		ids[i] = c.DocID
		index[c.DocID] = i
	}
	texts, err := r.store.GetByIDs(ctx, ids)
	if err != nil {
		r.logger.Warn("preview_fetch_failed_using_snippets", slog.String("error", err.Error()))
		return previews
	}
	for _, t := range texts {
		i, ok := index[t.DocID]
		if !ok || t.Body == "" {
			continue
		}
		previews[i] = BuildPreview(t.Title, t.Body, r.preview)
	}
	return previews
}

func (r *Reranker) scoreTier1(ctx context.Context, sessionID, query string, previews []string) []float64 {
	if r.encoder == nil {
		return nil
	}
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	scores, err := r.encoder.Score(callCtx, query, previews)
	if err != nil || len(scores) != len(previews) {
		reason := "score count mismatch"
		if err != nil {
			reason = err.Error()
		}
		r.logger.Warn("cross_encoder_failed_escalating_all",
			slog.String("session_id", sessionID),
			slog.String("model", r.encoder.ModelName()),
			slog.String("error", reason))
		return nil
	}
	return scores
}

// scoreTier2 re-scores the escalated candidates in fixed-size batches.
// Returns true if at least one batch succeeded.
func (r *Reranker) scoreTier2(ctx context.Context, sessionID, query string, pool []*domain.CandidateDocument, previews []string, escalate []int, ledger *domain.CostLedger, outcome *RerankOutcome) bool {
	if r.completer == nil || len(escalate) == 0 {
		return false
	}

	anyOK := false
	batches := 0
	for start := 0; start < len(escalate); start += r.cfg.BatchSize {
		if batches >= r.cfg.MaxBatches {
			r.logger.Warn("tier2_batch_ceiling_reached",
				slog.String("session_id", sessionID),
				slog.Int("remaining", len(escalate)-start))
			break
		}
		end := start + r.cfg.BatchSize
		if end > len(escalate) {
			end = len(escalate)
		}
		batch := escalate[start:end]
		batches++

		scores, err := r.scoreBatch(ctx, query, previews, batch, ledger)
		if err != nil {
			r.logger.Warn("tier2_batch_failed",
				slog.String("session_id", sessionID),
				slog.Int("batch", batches),
				slog.String("error", err.Error()))
			continue
		}
		anyOK = true
		for pos, score := range scores {
			if score < 0 {
				continue // item missing from the model output
			}
			c := pool[batch[pos]]
			if score > c.RerankScore {
				c.RerankScore = score
			}
			outcome.Escalated++
		}
	}
	return anyOK
}

func (r *Reranker) scoreBatch(ctx context.Context, query string, previews []string, batch []int, ledger *domain.CostLedger) ([]float64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, `You are scoring court decisions for relevance to a legal research query.

Query: %s

Score each numbered passage from 0.0 (irrelevant) to 1.0 (directly on point).
Respond with ONLY a JSON array of objects: [{"index": 0, "score": 0.8}, ...].

`, query)
	for pos, idx := range batch {
		fmt.Fprintf(&b, "[%d]\n%s\n\n", pos, previews[idx])
	}

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	resp, err := r.completer.Complete(callCtx, b.String(), 32*len(batch)+64)
	if err != nil {
		return nil, err
	}
	ledger.Add(resp.Usage)

	return parseBatchScores(resp.Text, len(batch))
}

// parseBatchScores extracts {index, score} pairs from the model output. The
// slice is positional: entries the model omitted stay at -1 so callers keep
// the tier-1 score instead of guessing.
func parseBatchScores(text string, n int) ([]float64, error) {
	open := strings.Index(text, "[")
	closing := strings.LastIndex(text, "]")
	if open < 0 || closing <= open {
		return nil, fmt.Errorf("no JSON array in scorer output: %w", domain.ErrParse)
	}

	var items []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(text[open:closing+1]), &items); err != nil {
		return nil, fmt.Errorf("decode scorer output: %w", domain.ErrParse)
	}

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = -1
	}
	for _, item := range items {
		if item.Index < 0 || item.Index >= n {
			continue
		}
		s := item.Score
		if s < 0 {
			s = 0
		}
		if s > 1 {
			s = 1
		}
		scores[item.Index] = s
	}
	return scores, nil
}
