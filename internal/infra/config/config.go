package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env  string
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIRPS       float64
	OpenAIBurst     int
	EmbeddingModel  string
	PlannerModel    string
	CompletionModel string
	EmbedCacheSize  int

	CrossEncoderURL     string
	CrossEncoderModel   string
	CrossEncoderTimeout time.Duration

	// LexicalBackend picks the full-text engine: "postgres" or "meilisearch".
	LexicalBackend   string
	MeilisearchHost  string
	MeilisearchKey   string
	MeilisearchIndex string

	// Retrieval tuning. Zero values fall back to the package defaults.
	MaxRounds          int
	PerQueryLimit      int
	RRFK               float64
	ChunkFactor        int
	SearchQueryTimeout time.Duration

	GateAbsoluteFloor    float64
	GateDropFactor       float64
	GateMinKeep          int
	GateMaxKeep          int
	GateForceKeepRank    int
	GateCutoffFloor      float64
	GateLexicalRankBoost float64

	RerankTrustThreshold float64
	RerankBatchSize      int
	RerankMaxBatches     int
	RerankFallbackTopN   int
	RerankTimeout        time.Duration

	SummarizeBatchSize   int
	SummarizeConcurrency int
	SummarizeMaxTokens   int
	SummarizeTimeout     time.Duration

	LogLevel string
}

func Load() *Config {
	return &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "9020"),

		DBHost:     getEnv("DB_HOST", "caselaw-db"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "caselaw_user"),
		DBPassword: getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "caselaw_password"),
		DBName:     getEnv("DB_NAME", "caselaw_db"),

		OpenAIAPIKey:    getSecret("OPENAI_API_KEY", "OPENAI_API_KEY_FILE", ""),
		OpenAIBaseURL:   getEnvWithAlt("OPENAI_BASE_URL", "LLM_GATEWAY_URL", ""),
		OpenAIRPS:       getEnvFloat("OPENAI_REQUESTS_PER_SECOND", 4),
		OpenAIBurst:     getEnvInt("OPENAI_BURST", 8),
		EmbeddingModel:  getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		PlannerModel:    getEnv("PLANNER_MODEL", "gpt-4o"),
		CompletionModel: getEnv("COMPLETION_MODEL", "gpt-4o-mini"),
		EmbedCacheSize:  getEnvInt("EMBEDDING_CACHE_SIZE", 2048),

		CrossEncoderURL:     getEnv("CROSS_ENCODER_URL", "http://cross-encoder:8787"),
		CrossEncoderModel:   getEnv("CROSS_ENCODER_MODEL", "bge-reranker-v2-m3"),
		CrossEncoderTimeout: getEnvDuration("CROSS_ENCODER_TIMEOUT", 20*time.Second),

		LexicalBackend:   getEnv("LEXICAL_BACKEND", "postgres"),
		MeilisearchHost:  getEnv("MEILISEARCH_HOST", "http://meilisearch:7700"),
		MeilisearchKey:   getSecret("MEILISEARCH_API_KEY", "MEILISEARCH_API_KEY_FILE", ""),
		MeilisearchIndex: getEnv("MEILISEARCH_INDEX", "case_documents"),

		MaxRounds:          getEnvInt("RESEARCH_MAX_ROUNDS", 4),
		PerQueryLimit:      getEnvInt("RESEARCH_PER_QUERY_LIMIT", 20),
		RRFK:               getEnvFloat("RESEARCH_RRF_K", 60),
		ChunkFactor:        getEnvInt("DENSE_CHUNK_FACTOR", 4),
		SearchQueryTimeout: getEnvDuration("SEARCH_QUERY_TIMEOUT", 10*time.Second),

		GateAbsoluteFloor:    getEnvFloat("GATE_ABSOLUTE_FLOOR", 0.42),
		GateDropFactor:       getEnvFloat("GATE_DROP_FACTOR", 0.75),
		GateMinKeep:          getEnvInt("GATE_MIN_KEEP", 3),
		GateMaxKeep:          getEnvInt("GATE_MAX_KEEP", 12),
		GateForceKeepRank:    getEnvInt("GATE_FORCE_KEEP_RANK", 3),
		GateCutoffFloor:      getEnvFloat("GATE_CUTOFF_FLOOR", 0.35),
		GateLexicalRankBoost: getEnvFloat("GATE_LEXICAL_RANK_BOOST", 0.10),

		RerankTrustThreshold: getEnvFloat("RERANK_TRUST_THRESHOLD", 0.50),
		RerankBatchSize:      getEnvInt("RERANK_BATCH_SIZE", 5),
		RerankMaxBatches:     getEnvInt("RERANK_MAX_BATCHES", 8),
		RerankFallbackTopN:   getEnvInt("RERANK_FALLBACK_TOP_N", 10),
		RerankTimeout:        getEnvDuration("RERANK_TIMEOUT", 30*time.Second),

		SummarizeBatchSize:   getEnvInt("SUMMARIZE_BATCH_SIZE", 5),
		SummarizeConcurrency: getEnvInt("SUMMARIZE_CONCURRENCY", 3),
		SummarizeMaxTokens:   getEnvInt("SUMMARIZE_MAX_TOKENS", 512),
		SummarizeTimeout:     getEnvDuration("SUMMARIZE_TIMEOUT", 60*time.Second),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	// 1. Try direct environment variable
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}

	// 2. Try reading from file specified by fileEnvKey
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}

	return fallback
}

func getEnvWithAlt(key, altKey, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	if value, ok := os.LookupEnv(altKey); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
