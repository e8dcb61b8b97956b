// Package meili implements the lexical index on Meilisearch as an
// alternative to Postgres full-text search, selected with LEXICAL_BACKEND.
package meili

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"caselaw-orchestrator/internal/domain"

	"github.com/meilisearch/meilisearch-go"
)

// searcher is the slice of meilisearch.IndexManager the adapter uses. The
// context-carrying variant matters: the query must die with the round.
type searcher interface {
	SearchWithContext(ctx context.Context, query string, request *meilisearch.SearchRequest) (*meilisearch.SearchResponse, error)
}

// LexicalIndex implements domain.LexicalIndex over a Meilisearch index of
// case documents.
type LexicalIndex struct {
	index  searcher
	logger *slog.Logger
}

// NewClient creates the Meilisearch service handle.
func NewClient(host, apiKey string) meilisearch.ServiceManager {
	return meilisearch.New(host, meilisearch.WithAPIKey(apiKey))
}

// NewLexicalIndex wraps one Meilisearch index.
func NewLexicalIndex(client meilisearch.ServiceManager, indexName string, logger *slog.Logger) *LexicalIndex {
	return &LexicalIndex{
		index:  client.Index(indexName),
		logger: logger,
	}
}

// QueryOr matches documents containing any token. Meilisearch's default
// matching already treats whitespace-separated terms disjunctively.
func (l *LexicalIndex) QueryOr(ctx context.Context, tokens []string, q domain.Query, limit int) ([]domain.RankedHit, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	return l.search(ctx, strings.Join(tokens, " "), q, limit)
}

// QueryPhrase matches the tokens in order using Meilisearch phrase syntax.
func (l *LexicalIndex) QueryPhrase(ctx context.Context, phrase string, q domain.Query, limit int) ([]domain.RankedHit, error) {
	phrase = strings.TrimSpace(strings.ReplaceAll(phrase, `"`, " "))
	if phrase == "" {
		return nil, nil
	}
	return l.search(ctx, `"`+phrase+`"`, q, limit)
}

func (l *LexicalIndex) search(ctx context.Context, query string, q domain.Query, limit int) ([]domain.RankedHit, error) {
	req := &meilisearch.SearchRequest{
		Query:            query,
		Limit:            int64(limit),
		ShowRankingScore: true,
		AttributesToCrop: []string{"body"},
		CropLength:       40,
	}
	if filter := buildFilter(q); filter != "" {
		req.Filter = filter
	}

	// SearchWithContext propagates caller cancellation and deadlines into
	// the HTTP request; a plain Search would keep running after the round
	// times out.
	result, err := l.index.SearchWithContext(ctx, query, req)
	if err != nil {
		return nil, fmt.Errorf("meilisearch query failed: %w", domain.ErrBackendUnavailable)
	}

	hits := make([]domain.RankedHit, 0, len(result.Hits))
	for _, raw := range result.Hits {
		hit, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		h := domain.RankedHit{
			DocID:   getString(hit, "doc_id"),
			Title:   getString(hit, "title"),
			Court:   domain.CourtLevel(getString(hit, "court")),
			Year:    int(getFloat(hit, "year")),
			Score:   getFloat(hit, "_rankingScore"),
			Snippet: cropSnippet(hit),
			Rank:    len(hits) + 1,
		}
		if h.DocID == "" {
			continue
		}
		hits = append(hits, h)
	}

	l.logger.Debug("meilisearch_query_completed",
		slog.String("query", query),
		slog.Int("hit_count", len(hits)))

	return hits, nil
}

// buildFilter renders the hard filters as a Meilisearch filter expression.
// Values are numeric or enum-constrained, so no escaping is needed beyond
// quoting the court id.
func buildFilter(q domain.Query) string {
	var parts []string
	if q.Court != "" {
		parts = append(parts, fmt.Sprintf("court = %q", string(q.Court)))
	}
	if q.YearFrom > 0 {
		parts = append(parts, fmt.Sprintf("year >= %d", q.YearFrom))
	}
	if q.YearTo > 0 {
		parts = append(parts, fmt.Sprintf("year <= %d", q.YearTo))
	}
	return strings.Join(parts, " AND ")
}

func cropSnippet(hit map[string]interface{}) string {
	if formatted, ok := hit["_formatted"].(map[string]interface{}); ok {
		if body := getString(formatted, "body"); body != "" {
			return body
		}
	}
	return ""
}

func getString(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func getFloat(m map[string]interface{}, key string) float64 {
	f, _ := m[key].(float64)
	return f
}
