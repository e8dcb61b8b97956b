package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"caselaw-orchestrator/internal/domain"
	"caselaw-orchestrator/internal/usecase/retrieval"
	"caselaw-orchestrator/internal/usecase/summarize"

	"golang.org/x/sync/errgroup"
)

// ResearchConfig holds the orchestration-loop parameters.
type ResearchConfig struct {
	// MaxRounds caps the planner loop, counting the unconditional raw-query
	// round. Hitting the cap marks the turn incomplete but still usable.
	MaxRounds int
	// PerQueryLimit is the ranked-list depth requested from each backend.
	PerQueryLimit int
	// RRFK is the reciprocal-rank-fusion constant.
	RRFK float64
	// Gate configures the adaptive score gate.
	Gate retrieval.GateConfig
}

// DefaultResearchConfig returns the calibrated loop defaults.
func DefaultResearchConfig() ResearchConfig {
	return ResearchConfig{
		MaxRounds:     4,
		PerQueryLimit: 20,
		RRFK:          retrieval.DefaultRRFK,
		Gate:          retrieval.DefaultGateConfig(),
	}
}

// Validate checks the loop configuration.
func (c ResearchConfig) Validate() error {
	if c.MaxRounds <= 0 {
		return fmt.Errorf("max rounds must be positive, got %d", c.MaxRounds)
	}
	if c.PerQueryLimit <= 0 {
		return fmt.Errorf("per-query limit must be positive, got %d", c.PerQueryLimit)
	}
	if c.RRFK <= 0 {
		return fmt.Errorf("rrf k must be positive, got %v", c.RRFK)
	}
	return c.Gate.Validate()
}

type researchUsecase struct {
	planner  domain.Planner
	dense    domain.SearchBackend
	lexical  domain.SearchBackend
	reranker *retrieval.Reranker
	fanout   *summarize.FanOut
	cfg      ResearchConfig
	logger   *slog.Logger
}

// NewResearchUsecase wires together the components of the research loop.
func NewResearchUsecase(
	planner domain.Planner,
	dense, lexical domain.SearchBackend,
	reranker *retrieval.Reranker,
	fanout *summarize.FanOut,
	cfg ResearchConfig,
	logger *slog.Logger,
) ResearchUsecase {
	return &researchUsecase{
		planner:  planner,
		dense:    dense,
		lexical:  lexical,
		reranker: reranker,
		fanout:   fanout,
		cfg:      cfg,
		logger:   logger,
	}
}

// Execute runs a research turn to completion and collects the results.
func (u *researchUsecase) Execute(ctx context.Context, input ResearchInput) (*ResearchOutput, error) {
	output := &ResearchOutput{}
	for event := range u.Stream(ctx, input) {
		switch event.Kind {
		case StreamEventKindDone:
			done := event.Payload.(DonePayload)
			output.SessionID = done.SessionID
			output.Results = done.Results
			output.Rounds = done.Rounds
			output.Incomplete = done.Incomplete
			output.Degraded = done.Degraded
		case StreamEventKindUsage:
			output.Usage = event.Payload.(domain.UsageSnapshot)
		case StreamEventKindError:
			return nil, fmt.Errorf("research failed: %s", event.Payload.(ErrorPayload).Category)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return output, nil
}

// Stream runs a research turn, emitting progress events as it goes. The
// channel closes when the turn finishes, fails, or the context is cancelled.
func (u *researchUsecase) Stream(ctx context.Context, input ResearchInput) <-chan StreamEvent {
	events := make(chan StreamEvent, 8)
	go func() {
		defer close(events)

		if strings.TrimSpace(input.Question) == "" {
			u.sendStreamEvent(ctx, events, StreamEvent{
				Kind:    StreamEventKindError,
				Payload: ErrorPayload{Category: "question_required"},
			})
			return
		}
		if input.Court != "" && !input.Court.Valid() {
			u.sendStreamEvent(ctx, events, StreamEvent{
				Kind:    StreamEventKindError,
				Payload: ErrorPayload{Category: "unknown_court"},
			})
			return
		}

		session := domain.NewSearchSession()
		start := time.Now()
		u.logger.Info("research_turn_started",
			slog.String("session_id", session.ID),
			slog.String("court", string(input.Court)))

		incomplete := u.runSearchRounds(ctx, session, input, events)
		if ctx.Err() != nil {
			return
		}

		if len(session.Pool()) == 0 {
			u.sendStreamEvent(ctx, events, StreamEvent{Kind: StreamEventKindUsage, Payload: session.Ledger.Snapshot()})
			u.sendStreamEvent(ctx, events, StreamEvent{
				Kind:    StreamEventKindDone,
				Payload: DonePayload{SessionID: session.ID, Rounds: session.RoundCount, Incomplete: incomplete},
			})
			return
		}

		degraded := u.rerankAndGate(ctx, session, input.Question, events)
		if ctx.Err() != nil {
			return
		}

		results, err := u.classifyKept(ctx, session, input.Question, events)
		if err != nil {
			// Flush whatever was classified before the failure; a partial
			// result set beats an empty screen.
			u.sendStreamEvent(ctx, events, StreamEvent{
				Kind:    StreamEventKindError,
				Payload: ErrorPayload{Category: domain.ErrorCategory(err)},
			})
			incomplete = true
		}

		u.sendStreamEvent(ctx, events, StreamEvent{Kind: StreamEventKindUsage, Payload: session.Ledger.Snapshot()})
		u.sendStreamEvent(ctx, events, StreamEvent{
			Kind: StreamEventKindDone,
			Payload: DonePayload{
				SessionID:  session.ID,
				Results:    results,
				Rounds:     session.RoundCount,
				Incomplete: incomplete,
				Degraded:   degraded,
			},
		})

		u.logger.Info("research_turn_completed",
			slog.String("session_id", session.ID),
			slog.Int("rounds", session.RoundCount),
			slog.Int("pool_size", len(session.Pool())),
			slog.Int("result_count", len(results)),
			slog.Bool("incomplete", incomplete),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	}()
	return events
}

// runSearchRounds drives the planner loop. The first round always executes
// the user's raw question verbatim; planner refinements only ever add to
// what the raw query found. Returns true if the round ceiling was hit with
// the planner still unsatisfied.
func (u *researchUsecase) runSearchRounds(ctx context.Context, session *domain.SearchSession, input ResearchInput, events chan<- StreamEvent) bool {
	plan := u.planner.Start(input.Question)
	feedback := ""

	for {
		if ctx.Err() != nil {
			return true
		}
		if session.RoundCount >= u.cfg.MaxRounds {
			u.logger.Warn("research_round_ceiling_reached",
				slog.String("session_id", session.ID),
				slog.Int("rounds", session.RoundCount))
			return true
		}

		var queries []domain.Query
		if session.RoundCount == 0 {
			queries = []domain.Query{{
				Text:     input.Question,
				Court:    input.Court,
				YearFrom: input.YearFrom,
				YearTo:   input.YearTo,
			}}
		} else {
			planned, usage, err := plan.Next(ctx, feedback)
			session.Ledger.Add(usage)
			if err != nil {
				// Planner outage ends refinement, not the turn: the raw
				// round's candidates are already in the pool.
				u.logger.Warn("planner_failed_stopping_refinement",
					slog.String("session_id", session.ID),
					slog.String("error", err.Error()))
				return false
			}
			if len(planned) == 0 {
				return false
			}
			queries = u.constrainQueries(planned, input)
		}

		session.RoundCount++
		round := session.RoundCount

		texts := make([]string, len(queries))
		for i, q := range queries {
			texts[i] = q.Text
		}
		if !u.sendStreamEvent(ctx, events, StreamEvent{
			Kind:    StreamEventKindSearching,
			Payload: SearchingPayload{Round: round, Queries: texts},
		}) {
			return true
		}

		var fresh []*domain.CandidateDocument
		searchCtx := domain.WithLedger(ctx, session.Ledger)
		for _, q := range queries {
			fused := u.searchOne(searchCtx, session.ID, q)
			fresh = append(fresh, session.Admit(fused)...)
		}

		if !u.sendStreamEvent(ctx, events, StreamEvent{
			Kind:    StreamEventKindSources,
			Payload: SourcesPayload{Round: round, Sources: sourceItems(fresh)},
		}) {
			return true
		}

		feedback = formatFeedback(fresh, len(session.Pool()))
	}
}

// searchOne runs both backends for one query in parallel and fuses the
// ranked lists. Backend outages arrive as sentinel hits and fusion skips
// them, so one dead index degrades recall instead of failing the round.
func (u *researchUsecase) searchOne(ctx context.Context, sessionID string, q domain.Query) []*domain.CandidateDocument {
	var denseHits, lexicalHits []domain.RankedHit

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := u.dense.Search(gctx, q, u.cfg.PerQueryLimit)
		if err != nil {
			u.logger.Warn("backend_search_failed",
				slog.String("session_id", sessionID),
				slog.String("backend", u.dense.Name()),
				slog.String("error", err.Error()))
			return nil
		}
		denseHits = hits
		return nil
	})
	g.Go(func() error {
		hits, err := u.lexical.Search(gctx, q, u.cfg.PerQueryLimit)
		if err != nil {
			u.logger.Warn("backend_search_failed",
				slog.String("session_id", sessionID),
				slog.String("backend", u.lexical.Name()),
				slog.String("error", err.Error()))
			return nil
		}
		lexicalHits = hits
		return nil
	})
	_ = g.Wait()

	return retrieval.Fuse(denseHits, lexicalHits, u.cfg.RRFK, sessionID, u.logger)
}

// constrainQueries re-applies the user's hard filters on top of whatever the
// planner asked for. The planner may narrow further but never widen.
func (u *researchUsecase) constrainQueries(planned []domain.Query, input ResearchInput) []domain.Query {
	out := make([]domain.Query, 0, len(planned))
	for _, q := range planned {
		if strings.TrimSpace(q.Text) == "" {
			continue
		}
		if input.Court != "" {
			q.Court = input.Court
		}
		if q.Court != "" && !q.Court.Valid() {
			q.Court = ""
		}
		if input.YearFrom > 0 && (q.YearFrom == 0 || q.YearFrom < input.YearFrom) {
			q.YearFrom = input.YearFrom
		}
		if input.YearTo > 0 && (q.YearTo == 0 || q.YearTo > input.YearTo) {
			q.YearTo = input.YearTo
		}
		out = append(out, q)
	}
	return out
}

// rerankAndGate scores the accumulated pool and selects the kept set.
// Returns true when reranking was unavailable and selection fell back to
// prior-score order.
func (u *researchUsecase) rerankAndGate(ctx context.Context, session *domain.SearchSession, question string, events chan<- StreamEvent) bool {
	// Rerank in prior-score order, not admission order: tier-2 escalation
	// capacity is bounded, and it must go to the strongest candidates even
	// when they arrived in a late round.
	pool := make([]*domain.CandidateDocument, len(session.Pool()))
	copy(pool, session.Pool())
	sort.SliceStable(pool, func(i, j int) bool {
		si, sj := pool[i].EffectiveScore(), pool[j].EffectiveScore()
		if si != sj {
			return si > sj
		}
		return pool[i].DocID < pool[j].DocID
	})

	outcome := u.reranker.Rerank(ctx, session.ID, question, pool, session.Ledger)

	var kept int
	if outcome.Degraded {
		kept = u.reranker.FallbackKeep(pool)
	} else {
		result := retrieval.ApplyGate(pool, u.cfg.Gate, session.ID, u.logger)
		kept = result.KeptCount
	}

	u.sendStreamEvent(ctx, events, StreamEvent{
		Kind: StreamEventKindReranked,
		Payload: RerankedPayload{
			PoolSize:  len(pool),
			KeptCount: kept,
			Degraded:  outcome.Degraded,
		},
	})
	return outcome.Degraded
}

// classifyKept fans the kept set out to the classifier, streaming each
// finished batch.
func (u *researchUsecase) classifyKept(ctx context.Context, session *domain.SearchSession, question string, events chan<- StreamEvent) ([]domain.ClassificationResult, error) {
	var flushed []domain.ClassificationResult
	hooks := summarize.Hooks{
		BatchStarted: func(batch int, docIDs []string) {
			u.sendStreamEvent(ctx, events, StreamEvent{
				Kind:    StreamEventKindSummarizing,
				Payload: SummarizingPayload{Batch: batch, DocIDs: docIDs},
			})
		},
		BatchDone: func(batch int, results []domain.ClassificationResult) {
			flushed = append(flushed, results...)
			u.sendStreamEvent(ctx, events, StreamEvent{
				Kind:    StreamEventKindSummaries,
				Payload: SummariesPayload{Batch: batch, Results: results},
			})
		},
	}

	results, err := u.fanout.Run(ctx, session.ID, question, session.Kept(), session.Ledger, hooks)
	if err != nil {
		return flushed, err
	}
	return results, nil
}

func (u *researchUsecase) sendStreamEvent(ctx context.Context, events chan<- StreamEvent, event StreamEvent) bool {
	select {
	case <-ctx.Done():
		return false
	case events <- event:
		return true
	}
}

func sourceItems(fresh []*domain.CandidateDocument) []SourceItem {
	items := make([]SourceItem, len(fresh))
	for i, c := range fresh {
		items[i] = SourceItem{
			DocID:   c.DocID,
			Title:   c.Title,
			Court:   c.Court,
			Year:    c.Year,
			Snippet: truncate(c.Snippet, 240),
		}
	}
	return items
}

// formatFeedback renders one round's fresh results for the planner. The
// planner reads this to decide whether another, differently-angled search is
// worth a round.
func formatFeedback(fresh []*domain.CandidateDocument, poolSize int) string {
	if len(fresh) == 0 {
		return "No new cases found this round. The searches may be too narrow or too similar to earlier ones."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d new cases (%d total in this session):\n", len(fresh), poolSize)
	for i, c := range fresh {
		if i >= 10 {
			fmt.Fprintf(&b, "... and %d more\n", len(fresh)-i)
			break
		}
		fmt.Fprintf(&b, "%d. %s", i+1, c.Title)
		if c.Court != "" {
			fmt.Fprintf(&b, " [%s", c.Court)
			if c.Year > 0 {
				fmt.Fprintf(&b, ", %d", c.Year)
			}
			b.WriteString("]")
		}
		if snippet := truncate(c.Snippet, 160); snippet != "" {
			fmt.Fprintf(&b, " — %s", snippet)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	// Back up to a rune start so Greek text is never cut mid-character.
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	cut := s[:n]
	if idx := strings.LastIndexByte(cut, ' '); idx > n/2 {
		cut = cut[:idx]
	}
	return cut + "..."
}
