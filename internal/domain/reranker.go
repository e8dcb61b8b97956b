package domain

import "context"

// CrossEncoder scores (query, passage) pairs jointly. A purpose-built
// pairwise scorer can take hundreds of passages in one call without the
// batch-size calibration drift LLM scorers exhibit.
//
// If an error occurs, callers fall back to LLM batch scoring or, failing
// that, to the prior retrieval scores.
type CrossEncoder interface {
	// Score returns one relevance score per passage, in input order.
	Score(ctx context.Context, query string, passages []string) ([]float64, error)

	// ModelName returns the model identifier for logging.
	ModelName() string
}
