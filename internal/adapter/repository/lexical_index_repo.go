package repository

import (
	"context"
	"fmt"
	"strings"

	"caselaw-orchestrator/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type lexicalIndexRepository struct {
	pool *pgxpool.Pool
}

// NewLexicalIndexRepository creates the Postgres full-text index. The tsv
// column is built with the `simple` configuration: the corpus mixes Greek
// and English and stemming either language would distort the other.
func NewLexicalIndexRepository(pool *pgxpool.Pool) domain.LexicalIndex {
	return &lexicalIndexRepository{pool: pool}
}

// QueryOr matches documents containing any of the tokens, ranked by ts_rank.
func (r *lexicalIndexRepository) QueryOr(ctx context.Context, tokens []string, q domain.Query, limit int) ([]domain.RankedHit, error) {
	quoted := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		tok = sanitizeToken(tok)
		if tok == "" {
			continue
		}
		quoted = append(quoted, fmt.Sprintf("'%s'", tok))
	}
	if len(quoted) == 0 {
		return nil, nil
	}
	return r.search(ctx, "to_tsquery('simple', $1)", strings.Join(quoted, " | "), q, limit)
}

// QueryPhrase matches documents containing the tokens in order. Used for
// exact-reference queries like case numbers where OR matching drowns the
// target in noise.
func (r *lexicalIndexRepository) QueryPhrase(ctx context.Context, phrase string, q domain.Query, limit int) ([]domain.RankedHit, error) {
	if strings.TrimSpace(phrase) == "" {
		return nil, nil
	}
	return r.search(ctx, "phraseto_tsquery('simple', $1)", phrase, q, limit)
}

func (r *lexicalIndexRepository) search(ctx context.Context, tsquery, arg string, q domain.Query, limit int) ([]domain.RankedHit, error) {
	query := fmt.Sprintf(`
		SELECT d.doc_id, d.title, d.court, d.year,
		       ts_rank(d.tsv, query) AS rank,
		       ts_headline('simple', left(d.body, 4000), query,
		                   'MaxWords=40, MinWords=20') AS snippet
		FROM case_documents d, %s AS query
		WHERE d.tsv @@ query
		  AND ($2 = '' OR d.court = $2)
		  AND ($3 = 0 OR d.year >= $3)
		  AND ($4 = 0 OR d.year <= $4)
		ORDER BY rank DESC
		LIMIT $5
	`, tsquery)
	rows, err := r.pool.Query(ctx, query, arg, string(q.Court), q.YearFrom, q.YearTo, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query lexical index: %w", err)
	}
	defer rows.Close()

	var hits []domain.RankedHit
	for rows.Next() {
		var h domain.RankedHit
		if err := rows.Scan(&h.DocID, &h.Title, &h.Court, &h.Year, &h.Score, &h.Snippet); err != nil {
			return nil, fmt.Errorf("failed to scan lexical hit: %w", err)
		}
		h.Rank = len(hits) + 1
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return hits, nil
}

// sanitizeToken strips tsquery metacharacters so user text can never change
// the query structure.
func sanitizeToken(tok string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\'', '&', '|', '!', '(', ')', ':', '*', '<', '>', '\\':
			return -1
		}
		return r
	}, strings.TrimSpace(tok))
}
