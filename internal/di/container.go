package di

import (
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"caselaw-orchestrator/internal/adapter/crossencoder"
	"caselaw-orchestrator/internal/adapter/meili"
	openaiadapter "caselaw-orchestrator/internal/adapter/openai"
	"caselaw-orchestrator/internal/adapter/repository"
	"caselaw-orchestrator/internal/adapter/search"
	"caselaw-orchestrator/internal/domain"
	"caselaw-orchestrator/internal/infra/config"
	"caselaw-orchestrator/internal/usecase"
	"caselaw-orchestrator/internal/usecase/retrieval"
	"caselaw-orchestrator/internal/usecase/summarize"
)

// ApplicationComponents holds all wired dependencies for the application.
type ApplicationComponents struct {
	// Usecases
	ResearchUsecase usecase.ResearchUsecase
	SearchUsecase   usecase.SearchUsecase

	// Exposed for handler wiring
	DocumentStore domain.DocumentStore
}

// NewApplicationComponents wires all dependencies from config and database pool.
func NewApplicationComponents(cfg *config.Config, pool *pgxpool.Pool, log *slog.Logger) (*ApplicationComponents, error) {
	// Repositories
	store := repository.NewCaseDocumentRepository(pool, cfg.SearchQueryTimeout)
	denseIndex := repository.NewDenseIndexRepository(pool)

	// Lexical engine selection. Both implementations satisfy
	// domain.LexicalIndex, so everything above this point is agnostic.
	var lexicalIndex domain.LexicalIndex
	switch cfg.LexicalBackend {
	case "postgres":
		lexicalIndex = repository.NewLexicalIndexRepository(pool)
	case "meilisearch":
		client := meili.NewClient(cfg.MeilisearchHost, cfg.MeilisearchKey)
		lexicalIndex = meili.NewLexicalIndex(client, cfg.MeilisearchIndex, log)
		log.Info("meilisearch_lexical_backend_enabled",
			slog.String("host", cfg.MeilisearchHost),
			slog.String("index", cfg.MeilisearchIndex))
	default:
		return nil, fmt.Errorf("unknown lexical backend %q", cfg.LexicalBackend)
	}

	// Provider clients
	providerClient := openaiadapter.NewClient(openaiadapter.ClientConfig{
		APIKey:            cfg.OpenAIAPIKey,
		BaseURL:           cfg.OpenAIBaseURL,
		RequestsPerSecond: cfg.OpenAIRPS,
		Burst:             cfg.OpenAIBurst,
	})
	embedder, err := openaiadapter.NewEmbedder(providerClient, cfg.EmbeddingModel, cfg.EmbedCacheSize, log)
	if err != nil {
		return nil, fmt.Errorf("build embedder: %w", err)
	}
	completer := openaiadapter.NewCompleter(providerClient, cfg.CompletionModel, log)
	planner := openaiadapter.NewPlanner(providerClient, cfg.PlannerModel, log)
	encoder := crossencoder.NewClient(cfg.CrossEncoderURL, cfg.CrossEncoderModel, cfg.CrossEncoderTimeout, log)

	// Search backends
	denseCfg := search.DefaultDenseConfig()
	if cfg.ChunkFactor > 0 {
		denseCfg.ChunkFactor = cfg.ChunkFactor
	}
	denseCfg.QueryTimeout = cfg.SearchQueryTimeout
	denseBackend := search.NewDenseBackend(embedder, denseIndex, denseCfg, log)
	lexicalBackend := search.NewLexicalBackend(lexicalIndex, cfg.SearchQueryTimeout, log)

	// Reranker
	rerankCfg := retrieval.DefaultRerankConfig()
	rerankCfg.TrustThreshold = cfg.RerankTrustThreshold
	rerankCfg.BatchSize = cfg.RerankBatchSize
	rerankCfg.MaxBatches = cfg.RerankMaxBatches
	rerankCfg.FallbackTopN = cfg.RerankFallbackTopN
	rerankCfg.Timeout = cfg.RerankTimeout
	if err := rerankCfg.Validate(); err != nil {
		return nil, fmt.Errorf("rerank config: %w", err)
	}
	reranker := retrieval.NewReranker(encoder, completer, store, retrieval.DefaultPreviewConfig(), rerankCfg, log)

	// Classification fan-out
	fanoutCfg := summarize.DefaultConfig()
	fanoutCfg.BatchSize = cfg.SummarizeBatchSize
	fanoutCfg.Concurrency = cfg.SummarizeConcurrency
	fanoutCfg.MaxTokens = cfg.SummarizeMaxTokens
	fanoutCfg.Timeout = cfg.SummarizeTimeout
	if err := fanoutCfg.Validate(); err != nil {
		return nil, fmt.Errorf("summarize config: %w", err)
	}
	fanout := summarize.NewFanOut(completer, store, fanoutCfg, log)

	// Research loop
	researchCfg := usecase.DefaultResearchConfig()
	researchCfg.MaxRounds = cfg.MaxRounds
	researchCfg.PerQueryLimit = cfg.PerQueryLimit
	researchCfg.RRFK = cfg.RRFK
	researchCfg.Gate.AbsoluteFloor = cfg.GateAbsoluteFloor
	researchCfg.Gate.DropFactor = cfg.GateDropFactor
	researchCfg.Gate.MinKeep = cfg.GateMinKeep
	researchCfg.Gate.MaxKeep = cfg.GateMaxKeep
	researchCfg.Gate.ForceKeepLexicalRank = cfg.GateForceKeepRank
	researchCfg.Gate.CutoffFloor = cfg.GateCutoffFloor
	researchCfg.Gate.LexicalRankBoost = cfg.GateLexicalRankBoost
	if err := researchCfg.Validate(); err != nil {
		return nil, fmt.Errorf("research config: %w", err)
	}
	researchUsecase := usecase.NewResearchUsecase(planner, denseBackend, lexicalBackend, reranker, fanout, researchCfg, log)
	searchUsecase := usecase.NewSearchUsecase(denseBackend, lexicalBackend, researchCfg.RRFK, log)

	return &ApplicationComponents{
		ResearchUsecase: researchUsecase,
		SearchUsecase:   searchUsecase,
		DocumentStore:   store,
	}, nil
}
