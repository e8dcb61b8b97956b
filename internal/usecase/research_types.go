package usecase

import (
	"context"

	"caselaw-orchestrator/internal/domain"
)

// ResearchInput encapsulates the parameters of one research turn.
type ResearchInput struct {
	Question string
	// Court restricts every search to one court; empty searches all courts.
	Court    domain.CourtLevel
	YearFrom int
	YearTo   int
}

// ResearchOutput is the collected, non-streaming form of a research turn.
type ResearchOutput struct {
	SessionID string
	Results   []domain.ClassificationResult
	Usage     domain.UsageSnapshot
	Rounds    int
	// Incomplete marks a turn that hit the round ceiling before the planner
	// was satisfied. The results are still usable.
	Incomplete bool
	// Degraded marks a turn where reranking was unavailable and the kept set
	// was chosen by prior score instead.
	Degraded bool
}

// ResearchUsecase runs the agentic research loop: plan searches, retrieve and
// fuse, rerank and gate, classify the kept set.
type ResearchUsecase interface {
	Execute(ctx context.Context, input ResearchInput) (*ResearchOutput, error)
	Stream(ctx context.Context, input ResearchInput) <-chan StreamEvent
}

type StreamEventKind string

const (
	StreamEventKindSearching   StreamEventKind = "searching"
	StreamEventKindSources     StreamEventKind = "sources"
	StreamEventKindReranked    StreamEventKind = "reranked"
	StreamEventKindSummarizing StreamEventKind = "summarizing"
	StreamEventKindSummaries   StreamEventKind = "summaries"
	StreamEventKindUsage       StreamEventKind = "usage"
	StreamEventKindDone        StreamEventKind = "done"
	StreamEventKindError       StreamEventKind = "error"
)

type StreamEvent struct {
	Kind    StreamEventKind `json:"kind"`
	Payload interface{}     `json:"payload"`
}

// SearchingPayload announces one round of planned searches.
type SearchingPayload struct {
	Round   int      `json:"round"`
	Queries []string `json:"queries"`
}

// SourceItem is one newly discovered candidate, shown to the user before
// reranking so the turn feels responsive.
type SourceItem struct {
	DocID   string            `json:"doc_id"`
	Title   string            `json:"title"`
	Court   domain.CourtLevel `json:"court,omitempty"`
	Year    int               `json:"year,omitempty"`
	Snippet string            `json:"snippet,omitempty"`
}

// SourcesPayload carries the fresh candidates of one round.
type SourcesPayload struct {
	Round   int          `json:"round"`
	Sources []SourceItem `json:"sources"`
}

// RerankedPayload reports the outcome of the rerank-and-gate stage.
type RerankedPayload struct {
	PoolSize  int  `json:"pool_size"`
	KeptCount int  `json:"kept_count"`
	Degraded  bool `json:"degraded,omitempty"`
}

// SummarizingPayload is the per-batch heartbeat of the classification stage.
type SummarizingPayload struct {
	Batch  int      `json:"batch"`
	DocIDs []string `json:"doc_ids"`
}

// SummariesPayload flushes one finished classification batch.
type SummariesPayload struct {
	Batch   int                           `json:"batch"`
	Results []domain.ClassificationResult `json:"results"`
}

// DonePayload closes the stream with the full result set.
type DonePayload struct {
	SessionID  string                        `json:"session_id"`
	Results    []domain.ClassificationResult `json:"results"`
	Rounds     int                           `json:"rounds"`
	Incomplete bool                          `json:"incomplete,omitempty"`
	Degraded   bool                          `json:"degraded,omitempty"`
}

// ErrorPayload carries the sanitized error category; raw provider messages
// never reach clients.
type ErrorPayload struct {
	Category string `json:"category"`
}
