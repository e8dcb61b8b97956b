package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"caselaw-orchestrator/internal/domain"
	"caselaw-orchestrator/internal/usecase/retrieval"

	"golang.org/x/sync/errgroup"
)

// SearchUsecase is the one-shot hybrid search: both backends, fused, no
// planner and no LLM spend. Serves the plain search endpoint and the CLI.
type SearchUsecase interface {
	Execute(ctx context.Context, q domain.Query, limit int) ([]*domain.CandidateDocument, error)
}

type searchUsecase struct {
	dense   domain.SearchBackend
	lexical domain.SearchBackend
	rrfK    float64
	logger  *slog.Logger
}

// NewSearchUsecase wires the one-shot hybrid search.
func NewSearchUsecase(dense, lexical domain.SearchBackend, rrfK float64, logger *slog.Logger) SearchUsecase {
	return &searchUsecase{dense: dense, lexical: lexical, rrfK: rrfK, logger: logger}
}

func (u *searchUsecase) Execute(ctx context.Context, q domain.Query, limit int) ([]*domain.CandidateDocument, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, fmt.Errorf("query text is required")
	}
	if q.Court != "" && !q.Court.Valid() {
		return nil, fmt.Errorf("unknown court %q", q.Court)
	}
	if limit <= 0 {
		limit = 20
	}

	var denseHits, lexicalHits []domain.RankedHit
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := u.dense.Search(gctx, q, limit)
		if err != nil {
			return fmt.Errorf("dense search: %w", err)
		}
		denseHits = hits
		return nil
	})
	g.Go(func() error {
		hits, err := u.lexical.Search(gctx, q, limit)
		if err != nil {
			return fmt.Errorf("lexical search: %w", err)
		}
		lexicalHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := retrieval.Fuse(denseHits, lexicalHits, u.rrfK, "adhoc", u.logger)
	if len(fused) > limit {
		fused = fused[:limit]
	}
	return fused, nil
}
