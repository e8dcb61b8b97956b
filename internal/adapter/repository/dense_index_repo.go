package repository

import (
	"context"
	"fmt"

	"caselaw-orchestrator/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type denseIndexRepository struct {
	pool *pgxpool.Pool
}

// NewDenseIndexRepository creates the pgvector-backed chunk index.
func NewDenseIndexRepository(pool *pgxpool.Pool) domain.DenseIndex {
	return &denseIndexRepository{pool: pool}
}

// QueryChunks runs cosine-similarity search over the chunk embeddings. The
// `<=>` operator returns cosine distance; similarity is 1 - distance.
func (r *denseIndexRepository) QueryChunks(ctx context.Context, vector []float32, q domain.Query, limit int) ([]domain.ChunkHit, error) {
	query := `
		SELECT c.doc_id, d.title, d.court, d.year, c.chunk_index, c.content,
		       1 - (c.embedding <=> $1) AS similarity
		FROM case_chunks c
		JOIN case_documents d ON d.doc_id = c.doc_id
		WHERE ($2 = '' OR d.court = $2)
		  AND ($3 = 0 OR d.year >= $3)
		  AND ($4 = 0 OR d.year <= $4)
		ORDER BY c.embedding <=> $1
		LIMIT $5
	`
	rows, err := r.pool.Query(ctx, query,
		pgvector.NewVector(vector), string(q.Court), q.YearFrom, q.YearTo, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk index: %w", err)
	}
	defer rows.Close()

	var hits []domain.ChunkHit
	for rows.Next() {
		var h domain.ChunkHit
		if err := rows.Scan(&h.DocID, &h.Title, &h.Court, &h.Year, &h.ChunkIndex, &h.Text, &h.Score); err != nil {
			return nil, fmt.Errorf("failed to scan chunk hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return hits, nil
}
