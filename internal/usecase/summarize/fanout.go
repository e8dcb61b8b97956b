package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"caselaw-orchestrator/internal/domain"

	"golang.org/x/sync/errgroup"
)

// Config holds the classification fan-out parameters.
type Config struct {
	// BatchSize is the fixed number of documents per emitted batch. Batches
	// exist for the streaming surface: each finished batch flushes results
	// to the client instead of holding everything until the end.
	BatchSize int
	// Concurrency bounds the classifier calls in flight within a batch.
	Concurrency int
	// MaxTokens caps one classifier completion.
	MaxTokens int
	// Timeout applies per classifier call.
	Timeout time.Duration
	// Window bounds the text slice each classifier call reads.
	Window WindowConfig
}

// DefaultConfig returns the calibrated fan-out defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:   5,
		Concurrency: 4,
		MaxTokens:   400,
		Timeout:     60 * time.Second,
		Window:      DefaultWindowConfig(),
	}
}

// Validate checks the fan-out configuration.
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", c.MaxTokens)
	}
	return nil
}

// Hooks lets the caller observe batch progress. Both hooks are invoked from
// the fan-out's control goroutine, never concurrently. Nil hooks are skipped.
type Hooks struct {
	// BatchStarted fires before a batch's classifier calls begin.
	BatchStarted func(batch int, docIDs []string)
	// BatchDone fires with the batch's results, in input order.
	BatchDone func(batch int, results []domain.ClassificationResult)
}

// FanOut classifies kept documents against the research question: engagement
// depth, relevance level, and a supporting evidence quote per document. Calls
// run concurrently within fixed-size batches; one failed document never fails
// the batch.
type FanOut struct {
	completer domain.Completer
	store     domain.DocumentStore
	cfg       Config
	logger    *slog.Logger
}

// NewFanOut builds the classification fan-out.
func NewFanOut(completer domain.Completer, store domain.DocumentStore, cfg Config, logger *slog.Logger) *FanOut {
	return &FanOut{
		completer: completer,
		store:     store,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run classifies every kept candidate and returns the results in input
// order. Per-document failures yield a conservative low-confidence result
// rather than an error; Run itself fails only on context cancellation.
func (f *FanOut) Run(ctx context.Context, sessionID, question string, kept []*domain.CandidateDocument, ledger *domain.CostLedger, hooks Hooks) ([]domain.ClassificationResult, error) {
	if len(kept) == 0 {
		return nil, nil
	}

	start := time.Now()
	texts := f.fetchTexts(ctx, kept)

	results := make([]domain.ClassificationResult, len(kept))
	batchNo := 0
	for lo := 0; lo < len(kept); lo += f.cfg.BatchSize {
		hi := lo + f.cfg.BatchSize
		if hi > len(kept) {
			hi = len(kept)
		}
		batchNo++

		if hooks.BatchStarted != nil {
			ids := make([]string, 0, hi-lo)
			for _, c := range kept[lo:hi] {
				ids = append(ids, c.DocID)
			}
			hooks.BatchStarted(batchNo, ids)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(f.cfg.Concurrency)
		for i := lo; i < hi; i++ {
			g.Go(func() error {
				results[i] = f.classifyOne(gctx, sessionID, question, kept[i], texts[kept[i].DocID], ledger)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if hooks.BatchDone != nil {
			batch := make([]domain.ClassificationResult, hi-lo)
			copy(batch, results[lo:hi])
			hooks.BatchDone(batchNo, batch)
		}
	}

	f.logger.Info("classification_fanout_completed",
		slog.String("session_id", sessionID),
		slog.Int("document_count", len(kept)),
		slog.Int("batches", batchNo),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return results, nil
}

// fetchTexts loads the full decision texts. A fetch failure is survivable:
// classification falls back to the candidate snippet.
func (f *FanOut) fetchTexts(ctx context.Context, kept []*domain.CandidateDocument) map[string]domain.CaseText {
	texts := make(map[string]domain.CaseText, len(kept))
	if f.store == nil {
		return texts
	}
	ids := make([]string, len(kept))
	for i, c := range kept {
		ids[i] = c.DocID
	}
	fetched, err := f.store.GetByIDs(ctx, ids)
	if err != nil {
		f.logger.Warn("case_text_fetch_failed_using_snippets", slog.String("error", err.Error()))
		return texts
	}
	for _, t := range fetched {
		texts[t.DocID] = t
	}
	return texts
}

func (f *FanOut) classifyOne(ctx context.Context, sessionID, question string, c *domain.CandidateDocument, text domain.CaseText, ledger *domain.CostLedger) domain.ClassificationResult {
	result := domain.ClassificationResult{
		DocID: c.DocID,
		Title: c.Title,
	}
	if text.Title != "" {
		result.Title = text.Title
	}

	body := text.Body
	if body == "" {
		body = c.Snippet
	}

	callCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	resp, err := f.completer.Complete(callCtx, f.buildPrompt(question, result.Title, text, body), f.cfg.MaxTokens)
	if err != nil {
		f.logger.Warn("classification_failed",
			slog.String("session_id", sessionID),
			slog.String("doc_id", c.DocID),
			slog.String("error", err.Error()))
		return conservativeDefault(result)
	}
	ledger.Add(resp.Usage)
	result.TokensUsed = resp.Usage.PromptTokens + resp.Usage.CompletionTokens

	parsed, err := ParseClassification(resp.Text)
	if err != nil {
		f.logger.Warn("classification_unparsable",
			slog.String("session_id", sessionID),
			slog.String("doc_id", c.DocID),
			slog.String("error", err.Error()))
		return conservativeDefault(result)
	}

	result.Engagement = parsed.Engagement
	result.Relevance = domain.ResolveRelevance(parsed.Engagement, parsed.Signals)
	result.EvidenceQuote = parsed.Evidence
	return result
}

// conservativeDefault fills a result for a document the classifier could not
// score: the document stays visible to the researcher (it passed the gate)
// but carries the lowest possible assessment rather than a guessed one.
func conservativeDefault(r domain.ClassificationResult) domain.ClassificationResult {
	r.Engagement = domain.EngagementNotAddressed
	r.Relevance = domain.RelevanceNone
	r.EvidenceQuote = ""
	r.LowConfidence = true
	return r
}

func (f *FanOut) buildPrompt(question, title string, text domain.CaseText, body string) string {
	var b strings.Builder
	b.WriteString(`You are a legal research assistant analyzing a court decision against a research question.

Research question: `)
	b.WriteString(question)
	b.WriteString("\n\nDecision: ")
	b.WriteString(title)
	if text.Court != "" {
		fmt.Fprintf(&b, " (%s", text.Court)
		if text.Year > 0 {
			fmt.Fprintf(&b, ", %d", text.Year)
		}
		b.WriteString(")")
	}
	b.WriteString("\n\n")
	b.WriteString(AnalysisWindow(body, f.cfg.Window))
	b.WriteString(`

Respond with ONLY a JSON object:
{
  "engagement": "RULED" | "DISCUSSED" | "MENTIONED" | "NOT_ADDRESSED",
  "evidence": "<short verbatim quote supporting the engagement level, in the decision's language>",
  "foreign_element": <true if the facts involve a cross-jurisdiction or foreign-law element>,
  "topic_overlap_only": <true if the decision shares the legal topic but its facts are unrelated to the question>
}

RULED: the court decided the queried issue. DISCUSSED: substantive analysis
without deciding it. MENTIONED: passing reference only. NOT_ADDRESSED: the
topic does not appear.`)
	return b.String()
}
