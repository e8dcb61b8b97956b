package domain

import "context"

// Embedder encodes query text into the dense index's vector space.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, TokenUsage, error)
	Model() string
}

// CompletionResult carries the raw text of one plain completion call.
type CompletionResult struct {
	Text  string
	Usage TokenUsage
}

// Completer is a plain text-in/text-out LLM call. The batch reranker and the
// per-document classifier build their own prompts and parse the output
// themselves; the adapter stays format-agnostic.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (*CompletionResult, error)
}

// PlanSession is one planner conversation. Next returns the searches the
// planner wants executed this round; an empty slice means the planner is
// satisfied and the loop should stop. feedback carries the formatted results
// of the previous round's searches (empty on the first call).
type PlanSession interface {
	Next(ctx context.Context, feedback string) ([]Query, TokenUsage, error)
}

// Planner starts a tool-calling planner conversation for a user question.
type Planner interface {
	Start(question string) PlanSession
}
