package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 120*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 60*time.Second, cfg.AgentTimeout)
	assert.Equal(t, 10*time.Second, cfg.GraphTimeout)
	assert.Equal(t, 30*time.Second, cfg.ProbeTTL)
	assert.Equal(t, time.Second, cfg.GraceTimeout)
	assert.Equal(t, 8, cfg.DebateParallelism)
	assert.Equal(t, 100, cfg.QueryCacheSize)
	assert.Equal(t, 200, cfg.MaxConcurrentRequests)
	assert.Equal(t, "entity_fulltext", cfg.FulltextIndexName)
	assert.InDelta(t, 0.15, cfg.ConfidenceGap, 1e-9)
	assert.InDelta(t, 0.92, cfg.DedupThreshold, 1e-9)
	assert.True(t, cfg.FallbackEnabled)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("DEBATE_PARALLELISM", "4")
	t.Setenv("REQUEST_TIMEOUT", "30s")
	t.Setenv("FALLBACK_ENABLED", "false")
	t.Setenv("WORKSPACE_ID", "tenant42")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.DebateParallelism)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.False(t, cfg.FallbackEnabled)
	assert.Equal(t, "tenant42", cfg.WorkspaceID)
}

func TestLoadFromEnvRejectsMalformedValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad int", "DEBATE_PARALLELISM", "many"},
		{"bad duration", "GRAPH_TIMEOUT", "10 seconds"},
		{"bad float", "CONFIDENCE_GAP", "high"},
		{"bad bool", "FALLBACK_ENABLED", "yep"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	t.Setenv("QUERY_CACHE_SIZE", "0")
	_, err := LoadFromEnv()
	require.Error(t, err)

	t.Setenv("QUERY_CACHE_SIZE", "10")
	t.Setenv("CONFIDENCE_GAP", "1.5")
	_, err = LoadFromEnv()
	require.Error(t, err)
}
