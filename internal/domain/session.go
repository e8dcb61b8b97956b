package domain

import (
	"sync"

	"github.com/google/uuid"
)

// TokenUsage reports the token consumption of a single LLM or embedding call.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CostLedger accumulates token counters across every LLM call in a session.
// Fan-out workers record usage concurrently, so it is mutex-guarded.
type CostLedger struct {
	mu               sync.Mutex
	promptTokens     int
	completionTokens int
	embeddingTokens  int
	calls            int
}

// Add records the usage of one chat/completion call.
func (l *CostLedger) Add(u TokenUsage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.promptTokens += u.PromptTokens
	l.completionTokens += u.CompletionTokens
	l.calls++
}

// AddEmbedding records the usage of one embedding call.
func (l *CostLedger) AddEmbedding(u TokenUsage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.embeddingTokens += u.TotalTokens
	l.calls++
}

// UsageSnapshot is a point-in-time copy of the ledger counters.
type UsageSnapshot struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	EmbeddingTokens  int `json:"embedding_tokens"`
	TotalTokens      int `json:"total_tokens"`
	Calls            int `json:"calls"`
}

// Snapshot returns the current counters.
func (l *CostLedger) Snapshot() UsageSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return UsageSnapshot{
		PromptTokens:     l.promptTokens,
		CompletionTokens: l.completionTokens,
		EmbeddingTokens:  l.embeddingTokens,
		TotalTokens:      l.promptTokens + l.completionTokens + l.embeddingTokens,
		Calls:            l.calls,
	}
}

// SearchSession holds the per-turn state of one research session: the
// deduplicated candidate pool, the seen-set, and the cost ledger. It lives
// only for the duration of a user turn and is never persisted.
//
// The pool and seen-set are mutated only by the orchestrator's control
// goroutine (single writer); the ledger is safe for concurrent use.
type SearchSession struct {
	ID         string
	RoundCount int
	Ledger     *CostLedger

	seen map[string]struct{}
	pool []*CandidateDocument
	byID map[string]*CandidateDocument
}

// NewSearchSession creates an empty session for one user turn.
func NewSearchSession() *SearchSession {
	return &SearchSession{
		ID:     uuid.NewString(),
		Ledger: &CostLedger{},
		seen:   make(map[string]struct{}),
		byID:   make(map[string]*CandidateDocument),
	}
}

// Admit merges a batch of fused candidates into the session pool. A doc_id
// seen in an earlier round updates the existing record (keeping the maximum
// of each score) instead of duplicating it. It returns the candidates that
// were genuinely new to this session.
func (s *SearchSession) Admit(candidates []*CandidateDocument) []*CandidateDocument {
	var fresh []*CandidateDocument
	for _, c := range candidates {
		if c.DocID == "" {
			continue
		}
		if existing, ok := s.byID[c.DocID]; ok {
			existing.absorb(c)
			continue
		}
		s.seen[c.DocID] = struct{}{}
		s.byID[c.DocID] = c
		s.pool = append(s.pool, c)
		fresh = append(fresh, c)
	}
	return fresh
}

// Seen reports whether the document already surfaced in this session.
func (s *SearchSession) Seen(docID string) bool {
	_, ok := s.seen[docID]
	return ok
}

// Pool returns the accumulated candidate pool in admission order.
func (s *SearchSession) Pool() []*CandidateDocument {
	return s.pool
}

// Kept returns the subset of the pool selected by the score gate.
func (s *SearchSession) Kept() []*CandidateDocument {
	var kept []*CandidateDocument
	for _, c := range s.pool {
		if c.Kept {
			kept = append(kept, c)
		}
	}
	return kept
}
