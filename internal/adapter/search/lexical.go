package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"caselaw-orchestrator/internal/domain"
)

// maxReferenceTokens: queries at or under this length that carry digits or
// reference punctuation are treated as exact references (case numbers,
// article citations) and get a phrase pass.
const maxReferenceTokens = 6

// LexicalBackend answers queries from the full-text index. Every query runs
// an OR pass for recall; queries that look like an exact reference get an
// additional phrase pass whose hits are merged in ahead of the OR hits.
type LexicalBackend struct {
	index        domain.LexicalIndex
	queryTimeout time.Duration
	logger       *slog.Logger
}

// NewLexicalBackend builds the lexical search backend. queryTimeout bounds
// each index pass; zero or negative falls back to DefaultQueryTimeout.
func NewLexicalBackend(index domain.LexicalIndex, queryTimeout time.Duration, logger *slog.Logger) *LexicalBackend {
	if queryTimeout <= 0 {
		queryTimeout = DefaultQueryTimeout
	}
	return &LexicalBackend{index: index, queryTimeout: queryTimeout, logger: logger}
}

func (b *LexicalBackend) Name() string { return "lexical" }

func (b *LexicalBackend) Search(ctx context.Context, q domain.Query, limit int) ([]domain.RankedHit, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	start := time.Now()
	tokens := tokenize(q.Text)
	if len(tokens) == 0 {
		return nil, nil
	}

	var phraseHits []domain.RankedHit
	phrase := looksLikeReference(q.Text, tokens)
	if phrase {
		hits, err := b.queryPhrase(ctx, q, limit)
		if err != nil {
			b.logger.Warn("lexical_phrase_query_failed",
				slog.String("query", q.Text),
				slog.String("error", err.Error()))
		} else {
			phraseHits = hits
		}
	}

	orHits, err := b.queryOr(ctx, tokens, q, limit)
	if err != nil {
		if len(phraseHits) > 0 {
			return rerank(phraseHits, limit), nil
		}
		b.logger.Warn("lexical_query_failed",
			slog.String("query", q.Text),
			slog.String("error", err.Error()))
		return []domain.RankedHit{domain.FailedHit("lexical index unavailable")}, nil
	}

	hits := mergeAhead(phraseHits, orHits, limit)

	b.logger.Info("lexical_search_completed",
		slog.String("query", q.Text),
		slog.Bool("phrase_pass", phrase),
		slog.Int("hit_count", len(hits)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return hits, nil
}

// queryPhrase and queryOr bound each index pass with the backend timeout so a
// hung index degrades like a dead one.
func (b *LexicalBackend) queryPhrase(ctx context.Context, q domain.Query, limit int) ([]domain.RankedHit, error) {
	queryCtx, cancel := context.WithTimeout(ctx, b.queryTimeout)
	defer cancel()
	return b.index.QueryPhrase(queryCtx, q.Text, q, limit)
}

func (b *LexicalBackend) queryOr(ctx context.Context, tokens []string, q domain.Query, limit int) ([]domain.RankedHit, error) {
	queryCtx, cancel := context.WithTimeout(ctx, b.queryTimeout)
	defer cancel()
	return b.index.QueryOr(queryCtx, tokens, q, limit)
}

// mergeAhead places phrase hits before OR hits, dropping duplicates, and
// reassigns ranks.
func mergeAhead(phraseHits, orHits []domain.RankedHit, limit int) []domain.RankedHit {
	seen := make(map[string]struct{}, len(phraseHits))
	merged := make([]domain.RankedHit, 0, len(phraseHits)+len(orHits))
	for _, h := range phraseHits {
		seen[h.DocID] = struct{}{}
		merged = append(merged, h)
	}
	for _, h := range orHits {
		if _, dup := seen[h.DocID]; dup {
			continue
		}
		merged = append(merged, h)
	}
	return rerank(merged, limit)
}

func rerank(hits []domain.RankedHit, limit int) []domain.RankedHit {
	if len(hits) > limit {
		hits = hits[:limit]
	}
	for i := range hits {
		hits[i].Rank = i + 1
	}
	return hits
}

// tokenize splits on anything that is not a letter or digit. Case folding is
// left to the index's `simple` configuration.
func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// looksLikeReference reports whether a query reads like an exact citation:
// short, and carrying digits or reference punctuation. "Αναθεωρητική Έφεση
// 41/2015" should hit the one decision it names, not forty that share a
// word with it.
func looksLikeReference(text string, tokens []string) bool {
	if len(tokens) > maxReferenceTokens {
		return false
	}
	if strings.ContainsAny(text, "/§") {
		return true
	}
	for _, r := range text {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
