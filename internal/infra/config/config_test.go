package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RetrievalParameters_Defaults(t *testing.T) {
	envVars := []string{
		"RESEARCH_MAX_ROUNDS",
		"RESEARCH_PER_QUERY_LIMIT",
		"RESEARCH_RRF_K",
		"DENSE_CHUNK_FACTOR",
	}
	for _, key := range envVars {
		_ = os.Unsetenv(key)
	}

	cfg := Load()

	assert.Equal(t, 4, cfg.MaxRounds, "maxRounds should default to 4")
	assert.Equal(t, 20, cfg.PerQueryLimit, "perQueryLimit should default to 20")
	assert.Equal(t, 60.0, cfg.RRFK, "rrfK should default to 60.0")
	assert.Equal(t, 4, cfg.ChunkFactor, "chunkFactor should default to 4")
}

func TestLoad_RetrievalParameters_FromEnv(t *testing.T) {
	t.Setenv("RESEARCH_MAX_ROUNDS", "6")
	t.Setenv("RESEARCH_PER_QUERY_LIMIT", "30")
	t.Setenv("RESEARCH_RRF_K", "50.0")

	cfg := Load()

	assert.Equal(t, 6, cfg.MaxRounds)
	assert.Equal(t, 30, cfg.PerQueryLimit)
	assert.Equal(t, 50.0, cfg.RRFK)
}

func TestLoad_GateParameters_Defaults(t *testing.T) {
	envVars := []string{
		"GATE_ABSOLUTE_FLOOR",
		"GATE_DROP_FACTOR",
		"GATE_MIN_KEEP",
		"GATE_MAX_KEEP",
	}
	for _, key := range envVars {
		_ = os.Unsetenv(key)
	}

	cfg := Load()

	assert.Equal(t, 0.42, cfg.GateAbsoluteFloor)
	assert.Equal(t, 0.75, cfg.GateDropFactor)
	assert.Equal(t, 3, cfg.GateMinKeep)
	assert.Equal(t, 12, cfg.GateMaxKeep)
	assert.Equal(t, 3, cfg.GateForceKeepRank)
	assert.Equal(t, 0.35, cfg.GateCutoffFloor)
	assert.Equal(t, 0.10, cfg.GateLexicalRankBoost)
}

func TestLoad_GateParameters_FromEnv(t *testing.T) {
	t.Setenv("GATE_FORCE_KEEP_RANK", "5")
	t.Setenv("GATE_CUTOFF_FLOOR", "0.4")
	t.Setenv("GATE_LEXICAL_RANK_BOOST", "0.2")

	cfg := Load()

	assert.Equal(t, 5, cfg.GateForceKeepRank)
	assert.Equal(t, 0.4, cfg.GateCutoffFloor)
	assert.Equal(t, 0.2, cfg.GateLexicalRankBoost)
}

func TestLoad_CallTimeouts_FromEnv(t *testing.T) {
	t.Setenv("RERANK_TIMEOUT", "15s")
	t.Setenv("SUMMARIZE_TIMEOUT", "45s")
	t.Setenv("SEARCH_QUERY_TIMEOUT", "5s")

	cfg := Load()

	assert.Equal(t, 15*time.Second, cfg.RerankTimeout)
	assert.Equal(t, 45*time.Second, cfg.SummarizeTimeout)
	assert.Equal(t, 5*time.Second, cfg.SearchQueryTimeout)
}

func TestLoad_RerankParameters_FromEnv(t *testing.T) {
	t.Setenv("RERANK_TRUST_THRESHOLD", "0.6")
	t.Setenv("RERANK_BATCH_SIZE", "8")
	t.Setenv("RERANK_MAX_BATCHES", "4")

	cfg := Load()

	assert.Equal(t, 0.6, cfg.RerankTrustThreshold)
	assert.Equal(t, 8, cfg.RerankBatchSize)
	assert.Equal(t, 4, cfg.RerankMaxBatches)
}

func TestLoad_LexicalBackend_Default(t *testing.T) {
	_ = os.Unsetenv("LEXICAL_BACKEND")

	cfg := Load()

	assert.Equal(t, "postgres", cfg.LexicalBackend)
}

func TestLoad_LexicalBackend_Meilisearch(t *testing.T) {
	t.Setenv("LEXICAL_BACKEND", "meilisearch")
	t.Setenv("MEILISEARCH_HOST", "http://localhost:7700")
	t.Setenv("MEILISEARCH_INDEX", "cases")

	cfg := Load()

	assert.Equal(t, "meilisearch", cfg.LexicalBackend)
	assert.Equal(t, "http://localhost:7700", cfg.MeilisearchHost)
	assert.Equal(t, "cases", cfg.MeilisearchIndex)
}

func TestGetSecret_PrefersDirectEnv(t *testing.T) {
	t.Setenv("TEST_SECRET", "from-env")

	assert.Equal(t, "from-env", getSecret("TEST_SECRET", "TEST_SECRET_FILE", "fallback"))
}

func TestGetSecret_ReadsFromFile(t *testing.T) {
	_ = os.Unsetenv("TEST_SECRET")
	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte("from-file\n"), 0o600))
	t.Setenv("TEST_SECRET_FILE", path)

	assert.Equal(t, "from-file", getSecret("TEST_SECRET", "TEST_SECRET_FILE", "fallback"))
}

func TestGetSecret_FallsBackWhenUnset(t *testing.T) {
	_ = os.Unsetenv("TEST_SECRET")
	_ = os.Unsetenv("TEST_SECRET_FILE")

	assert.Equal(t, "fallback", getSecret("TEST_SECRET", "TEST_SECRET_FILE", "fallback"))
}

func TestGetEnvFloat(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		fallback float64
		expected float64
	}{
		{
			name:     "valid value",
			envValue: "75.5",
			fallback: 60.0,
			expected: 75.5,
		},
		{
			name:     "invalid value uses fallback",
			envValue: "not-a-number",
			fallback: 60.0,
			expected: 60.0,
		},
		{
			name:     "empty uses fallback",
			envValue: "",
			fallback: 60.0,
			expected: 60.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv("TEST_FLOAT", tt.envValue)
			} else {
				_ = os.Unsetenv("TEST_FLOAT")
			}

			result := getEnvFloat("TEST_FLOAT", tt.fallback)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "45s")
	assert.Equal(t, 45*time.Second, getEnvDuration("TEST_DURATION", time.Minute))

	t.Setenv("TEST_DURATION", "bogus")
	assert.Equal(t, time.Minute, getEnvDuration("TEST_DURATION", time.Minute))
}

func TestLoad_ServerConfig_Defaults(t *testing.T) {
	_ = os.Unsetenv("PORT")

	cfg := Load()

	assert.Equal(t, "9020", cfg.Port)
}
