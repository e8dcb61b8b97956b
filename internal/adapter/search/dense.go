package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"caselaw-orchestrator/internal/domain"
)

// DenseConfig holds the dense backend parameters.
type DenseConfig struct {
	// ChunkFactor: chunks requested per document slot. Long decisions
	// produce many chunks, so document-level top-N needs a deeper
	// chunk-level cut.
	ChunkFactor int
	// AuthorityBoost multiplies the document score per court level. Applied
	// after chunk grouping, before ranking.
	AuthorityBoost map[domain.CourtLevel]float64
	// QueryTimeout bounds one index query. A hung index must degrade like a
	// dead one instead of stalling the round.
	QueryTimeout time.Duration
}

// DefaultQueryTimeout bounds one index query when no explicit timeout is
// configured.
const DefaultQueryTimeout = 10 * time.Second

// DefaultDenseConfig returns the calibrated dense-backend defaults. The
// boost values are mild: authority breaks ties between comparably similar
// decisions, it never outranks a clearly better match.
func DefaultDenseConfig() DenseConfig {
	return DenseConfig{
		ChunkFactor:  4,
		QueryTimeout: DefaultQueryTimeout,
		AuthorityBoost: map[domain.CourtLevel]float64{
			domain.CourtSupreme:               1.10,
			domain.CourtAAD:                   1.10,
			domain.CourtOfAppeal:              1.05,
			domain.CourtSupremeAdministrative: 1.05,
		},
	}
}

// DenseBackend answers queries from the vector index: embed the query once,
// pull chunk-level neighbors, group them into documents keeping each
// document's best chunk.
type DenseBackend struct {
	embedder domain.Embedder
	index    domain.DenseIndex
	cfg      DenseConfig
	logger   *slog.Logger
}

// NewDenseBackend builds the dense search backend.
func NewDenseBackend(embedder domain.Embedder, index domain.DenseIndex, cfg DenseConfig, logger *slog.Logger) *DenseBackend {
	if cfg.ChunkFactor <= 0 {
		cfg.ChunkFactor = 1
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}
	return &DenseBackend{
		embedder: embedder,
		index:    index,
		cfg:      cfg,
		logger:   logger,
	}
}

func (b *DenseBackend) Name() string { return "dense" }

// Search embeds the query and returns document-level hits ranked by best
// chunk similarity. Outages surface as a sentinel hit so a dead embedder or
// index degrades recall instead of failing the round.
func (b *DenseBackend) Search(ctx context.Context, q domain.Query, limit int) ([]domain.RankedHit, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	start := time.Now()
	vector, usage, err := b.embedder.Embed(ctx, q.Text)
	if err != nil {
		b.logger.Warn("dense_embed_failed",
			slog.String("query", q.Text),
			slog.String("error", err.Error()))
		return []domain.RankedHit{domain.FailedHit("query embedding unavailable")}, nil
	}
	if ledger := domain.LedgerFromContext(ctx); ledger != nil {
		ledger.AddEmbedding(usage)
	}

	queryCtx, cancel := context.WithTimeout(ctx, b.cfg.QueryTimeout)
	defer cancel()
	chunks, err := b.index.QueryChunks(queryCtx, vector, q, limit*b.cfg.ChunkFactor)
	if err != nil {
		b.logger.Warn("dense_index_failed",
			slog.String("query", q.Text),
			slog.String("error", err.Error()))
		return []domain.RankedHit{domain.FailedHit("dense index unavailable")}, nil
	}

	hits := b.groupByDocument(chunks, limit)

	b.logger.Info("dense_search_completed",
		slog.String("query", q.Text),
		slog.Int("chunk_count", len(chunks)),
		slog.Int("doc_count", len(hits)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return hits, nil
}

// groupByDocument collapses chunk hits into per-document hits, keeping each
// document's best-scoring chunk as its score and snippet.
func (b *DenseBackend) groupByDocument(chunks []domain.ChunkHit, limit int) []domain.RankedHit {
	byID := make(map[string]*domain.RankedHit)
	order := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		h, ok := byID[ch.DocID]
		if !ok {
			h = &domain.RankedHit{
				DocID: ch.DocID,
				Title: ch.Title,
				Court: ch.Court,
				Year:  ch.Year,
			}
			byID[ch.DocID] = h
			order = append(order, ch.DocID)
		}
		if ch.Score > h.Score || h.Snippet == "" {
			h.Score = ch.Score
			h.Snippet = ch.Text
		}
	}

	hits := make([]domain.RankedHit, 0, len(order))
	for _, id := range order {
		h := *byID[id]
		if boost, ok := b.cfg.AuthorityBoost[h.Court]; ok {
			h.Score *= boost
			if h.Score > 1 {
				h.Score = 1
			}
		}
		hits = append(hits, h)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocID < hits[j].DocID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	for i := range hits {
		hits[i].Rank = i + 1
	}
	return hits
}
