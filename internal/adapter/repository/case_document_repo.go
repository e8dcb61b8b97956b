package repository

import (
	"context"
	"fmt"
	"time"

	"caselaw-orchestrator/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// getByIDsBatchSize bounds one IN-list query; callers may ask for hundreds
// of documents after a long session.
const getByIDsBatchSize = 50

// defaultQueryTimeout bounds one statement when no explicit timeout is
// configured.
const defaultQueryTimeout = 10 * time.Second

type caseDocumentRepository struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

// NewCaseDocumentRepository creates the stored-decision reader. queryTimeout
// bounds each statement; zero or negative falls back to a ten-second default.
func NewCaseDocumentRepository(pool *pgxpool.Pool, queryTimeout time.Duration) domain.DocumentStore {
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}
	return &caseDocumentRepository{pool: pool, queryTimeout: queryTimeout}
}

func (r *caseDocumentRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.CaseText, error) {
	var texts []domain.CaseText
	for start := 0; start < len(ids); start += getByIDsBatchSize {
		end := start + getByIDsBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch, err := r.getBatch(ctx, ids[start:end])
		if err != nil {
			return nil, err
		}
		texts = append(texts, batch...)
	}
	return texts, nil
}

func (r *caseDocumentRepository) getBatch(ctx context.Context, ids []string) ([]domain.CaseText, error) {
	query := `
		SELECT doc_id, title, court, year, body
		FROM case_documents
		WHERE doc_id = ANY($1)
	`
	queryCtx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	rows, err := r.pool.Query(queryCtx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var texts []domain.CaseText
	for rows.Next() {
		var t domain.CaseText
		if err := rows.Scan(&t.DocID, &t.Title, &t.Court, &t.Year, &t.Body); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		texts = append(texts, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return texts, nil
}

func (r *caseDocumentRepository) FetchText(ctx context.Context, id string) (*domain.CaseText, error) {
	query := `
		SELECT doc_id, title, court, year, body
		FROM case_documents
		WHERE doc_id = $1
	`
	queryCtx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	var t domain.CaseText
	err := r.pool.QueryRow(queryCtx, query, id).Scan(&t.DocID, &t.Title, &t.Court, &t.Year, &t.Body)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch document: %w", err)
	}
	return &t, nil
}
