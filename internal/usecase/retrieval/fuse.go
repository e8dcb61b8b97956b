package retrieval

import (
	"log/slog"
	"sort"

	"caselaw-orchestrator/internal/domain"
)

// DefaultRRFK is the standard Reciprocal Rank Fusion constant.
const DefaultRRFK = 60.0

// Fuse merges the dense and lexical ranked lists into one document-level
// candidate list using Reciprocal Rank Fusion: for each document, the fused
// score is the sum over lists containing it of 1/(k + rank). Documents
// present in only one list receive a partial score rather than being
// dropped, so agreement between the two signals is rewarded without any
// score normalization.
//
// Sentinel failure hits are skipped; they carry no rank.
func Fuse(dense, lexical []domain.RankedHit, k float64, sessionID string, logger *slog.Logger) []*domain.CandidateDocument {
	if k <= 0 {
		k = DefaultRRFK
	}

	byID := make(map[string]*domain.CandidateDocument)
	order := make([]string, 0, len(dense)+len(lexical))

	candidate := func(hit domain.RankedHit) *domain.CandidateDocument {
		c, ok := byID[hit.DocID]
		if !ok {
			c = &domain.CandidateDocument{
				DocID:   hit.DocID,
				Title:   hit.Title,
				Court:   hit.Court,
				Year:    hit.Year,
				Snippet: hit.Snippet,
			}
			byID[hit.DocID] = c
			order = append(order, hit.DocID)
		}
		return c
	}

	denseRank := 0
	for _, hit := range dense {
		if hit.Failed || hit.DocID == "" {
			continue
		}
		denseRank++
		c := candidate(hit)
		c.FusedScore += 1.0 / (k + float64(denseRank))
		if hit.Score > c.DenseScore {
			c.DenseScore = hit.Score
			if hit.Snippet != "" {
				c.Snippet = hit.Snippet
			}
		}
	}

	lexicalRank := 0
	for _, hit := range lexical {
		if hit.Failed || hit.DocID == "" {
			continue
		}
		lexicalRank++
		c := candidate(hit)
		c.FusedScore += 1.0 / (k + float64(lexicalRank))
		if c.LexicalRank == 0 || lexicalRank < c.LexicalRank {
			c.LexicalRank = lexicalRank
		}
		if c.Snippet == "" {
			c.Snippet = hit.Snippet
		}
	}

	fused := make([]*domain.CandidateDocument, 0, len(order))
	for _, id := range order {
		fused = append(fused, byID[id])
	}

	// Deterministic ordering: RRF score desc, then dense score desc, then
	// doc id for full stability.
	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].FusedScore != fused[j].FusedScore {
			return fused[i].FusedScore > fused[j].FusedScore
		}
		if fused[i].DenseScore != fused[j].DenseScore {
			return fused[i].DenseScore > fused[j].DenseScore
		}
		return fused[i].DocID < fused[j].DocID
	})

	logger.Info("hybrid_rrf_fusion_completed",
		slog.String("session_id", sessionID),
		slog.Int("dense_count", denseRank),
		slog.Int("lexical_count", lexicalRank),
		slog.Int("fused_count", len(fused)))

	return fused
}
