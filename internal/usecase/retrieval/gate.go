package retrieval

import (
	"fmt"
	"log/slog"
	"sort"

	"caselaw-orchestrator/internal/domain"
)

// GateConfig holds the score-gate thresholds. All values are empirically
// calibrated and externally tunable.
type GateConfig struct {
	// AbsoluteFloor is the minimum effective score a candidate must reach
	// regardless of how the rest of the batch scored.
	AbsoluteFloor float64
	// DropFactor scales the best score in the batch into a relative
	// threshold. Combining it with the absolute floor bounds both failure
	// modes: a fixed floor alone under-filters when the best match is weak,
	// and a pure drop factor over-filters when all matches are strong.
	DropFactor float64
	// MinKeep / MaxKeep bound the kept-set size.
	MinKeep int
	MaxKeep int
	// ForceKeepLexicalRank keeps any document ranked within the top N of the
	// lexical backend regardless of its scores. Exact-reference keyword
	// matches are a reliability signal semantic scores under-weight.
	ForceKeepLexicalRank int
	// CutoffFloor is the smart-cutoff extension floor: candidates past
	// MinKeep stay kept while score+boost remains above it.
	CutoffFloor float64
	// LexicalRankBoost is added to a candidate's score during the smart
	// cutoff, scaled down by its lexical rank.
	LexicalRankBoost float64
}

// DefaultGateConfig returns the calibrated defaults.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		AbsoluteFloor:        0.42,
		DropFactor:           0.75,
		MinKeep:              3,
		MaxKeep:              12,
		ForceKeepLexicalRank: 3,
		CutoffFloor:          0.35,
		LexicalRankBoost:     0.10,
	}
}

// Validate checks the gate configuration.
func (c GateConfig) Validate() error {
	if c.AbsoluteFloor < 0 || c.AbsoluteFloor > 1 {
		return fmt.Errorf("absolute floor must be in [0, 1], got %f", c.AbsoluteFloor)
	}
	if c.DropFactor < 0 || c.DropFactor > 1 {
		return fmt.Errorf("drop factor must be in [0, 1], got %f", c.DropFactor)
	}
	if c.MinKeep < 0 {
		return fmt.Errorf("minKeep must be non-negative, got %d", c.MinKeep)
	}
	if c.MaxKeep < c.MinKeep {
		return fmt.Errorf("maxKeep (%d) must be >= minKeep (%d)", c.MaxKeep, c.MinKeep)
	}
	if c.ForceKeepLexicalRank < 0 {
		return fmt.Errorf("forceKeepLexicalRank must be non-negative, got %d", c.ForceKeepLexicalRank)
	}
	return nil
}

// GateResult summarizes one gate application for logging and events.
type GateResult struct {
	InputCount         int
	KeptCount          int
	EffectiveThreshold float64
	ForceKept          int
}

// ApplyGate selects the final kept set. Three filters compose in order:
//
//  1. Adaptive threshold: max(AbsoluteFloor, bestScore*DropFactor).
//  2. Smart cutoff: keep at least MinKeep candidates (when that many sit
//     above the absolute floor), then extend in descending score order while
//     each successive candidate's boosted score stays above CutoffFloor, up
//     to MaxKeep.
//  3. Lexical force-keep: top-ForceKeepLexicalRank lexical hits are kept
//     unconditionally. Force-keep wins over the MaxKeep cap.
//
// Candidates are never removed from the pool; only the Kept flag changes.
func ApplyGate(pool []*domain.CandidateDocument, cfg GateConfig, sessionID string, logger *slog.Logger) GateResult {
	res := GateResult{InputCount: len(pool)}
	if len(pool) == 0 {
		return res
	}

	for _, c := range pool {
		c.Kept = false
	}

	sorted := make([]*domain.CandidateDocument, len(pool))
	copy(sorted, pool)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].EffectiveScore() != sorted[j].EffectiveScore() {
			return sorted[i].EffectiveScore() > sorted[j].EffectiveScore()
		}
		return sorted[i].DocID < sorted[j].DocID
	})

	best := sorted[0].EffectiveScore()
	threshold := cfg.AbsoluteFloor
	if rel := best * cfg.DropFactor; rel > threshold {
		threshold = rel
	}
	res.EffectiveThreshold = threshold

	kept := 0
	for _, c := range sorted {
		if kept >= cfg.MaxKeep {
			break
		}
		eff := c.EffectiveScore()

		// Minimum guarantee: the top MinKeep candidates are kept as long as
		// they clear the absolute floor, even below the adaptive threshold.
		if kept < cfg.MinKeep {
			if eff < cfg.AbsoluteFloor {
				break // scores are descending, nothing later clears the floor
			}
			c.Kept = true
			kept++
			continue
		}

		// Smart-cutoff extension past the minimum.
		if eff < threshold || eff+cfg.lexicalBoost(c) < cfg.CutoffFloor {
			break
		}
		c.Kept = true
		kept++
	}

	// Lexical force-keep overrides everything, including the MaxKeep cap.
	for _, c := range pool {
		if cfg.ForceKeepLexicalRank > 0 && c.LexicalRank > 0 && c.LexicalRank <= cfg.ForceKeepLexicalRank && !c.Kept {
			c.Kept = true
			res.ForceKept++
		}
	}

	for _, c := range pool {
		if c.Kept {
			res.KeptCount++
		}
	}

	logger.Info("score_gate_applied",
		slog.String("session_id", sessionID),
		slog.Int("input_count", res.InputCount),
		slog.Int("kept_count", res.KeptCount),
		slog.Int("force_kept", res.ForceKept),
		slog.Float64("best_score", best),
		slog.Float64("effective_threshold", threshold))

	return res
}

func (c GateConfig) lexicalBoost(cand *domain.CandidateDocument) float64 {
	if cand.LexicalRank <= 0 || c.LexicalRankBoost <= 0 {
		return 0
	}
	return c.LexicalRankBoost / float64(cand.LexicalRank)
}
