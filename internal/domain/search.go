package domain

import "context"

// RankedHit is a document-level hit from one search backend. Score semantics
// are backend-specific (cosine similarity for dense, ts_rank for lexical) and
// are not comparable across backends until fused.
type RankedHit struct {
	DocID   string
	Title   string
	Court   CourtLevel
	Year    int
	Rank    int     // 1-based position in the backend's list
	Score   float64 // backend-native score
	Snippet string  // best-matching chunk or excerpt

	// Failed marks a sentinel pseudo-result: the backend could not serve the
	// query and FailureReason explains why. The orchestrator continues the
	// session with the other backend instead of aborting.
	Failed        bool
	FailureReason string
}

// FailedHit builds the sentinel pseudo-result a backend returns instead of
// an error when its index or embedder is unavailable.
func FailedHit(reason string) RankedHit {
	return RankedHit{Failed: true, FailureReason: reason}
}

// SearchBackend is the uniform interface over one index technology. An
// implementation embeds/tokenizes the query, queries its index, groups
// chunk-level hits into document-level candidates, and returns a ranked list.
type SearchBackend interface {
	// Name identifies the backend in logs and events ("dense", "lexical").
	Name() string
	// Search returns up to limit ranked document-level hits. Backend outages
	// surface as a single sentinel hit (see FailedHit), not as an error;
	// a non-nil error indicates caller misuse.
	Search(ctx context.Context, q Query, limit int) ([]RankedHit, error)
}

// ChunkHit is one chunk-level match from the dense index.
type ChunkHit struct {
	DocID      string
	Title      string
	Court      CourtLevel
	Year       int
	ChunkIndex int
	Text       string
	Score      float64 // cosine similarity in [0, 1]
}

// DenseIndex exposes chunk-level vector search. Document grouping is the
// dense backend's responsibility, not the index's.
type DenseIndex interface {
	QueryChunks(ctx context.Context, vector []float32, q Query, limit int) ([]ChunkHit, error)
}

// LexicalIndex exposes full-text search in two query modes: an OR query over
// tokens for recall and an order-preserving phrase query for precision.
type LexicalIndex interface {
	QueryOr(ctx context.Context, tokens []string, q Query, limit int) ([]RankedHit, error)
	QueryPhrase(ctx context.Context, phrase string, q Query, limit int) ([]RankedHit, error)
}

// CaseText is the stored text of one decision.
type CaseText struct {
	DocID string
	Title string
	Court CourtLevel
	Year  int
	Body  string
}

// DocumentStore fetches stored decisions. Implementations must respect any
// per-call batch-size limit of the underlying store by batching internally.
type DocumentStore interface {
	GetByIDs(ctx context.Context, ids []string) ([]CaseText, error)
	FetchText(ctx context.Context, id string) (*CaseText, error)
}
