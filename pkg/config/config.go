// Package config provides environment-first configuration for GraphQA.
// All runtime options are explicit fields on Config — no nested dynamic
// lookups, no process-global state.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the full runtime configuration, loaded once at startup.
type Config struct {
	// HTTP
	ListenAddr            string
	MaxConcurrentRequests int // backpressure 503 beyond this

	// Neo4j connection
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// LLM backend (OpenAI-compatible chat completion API)
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string

	// Workspace
	WorkspaceID string

	// Timeouts
	RequestTimeout time.Duration // whole request
	AgentTimeout   time.Duration // single debate worker
	GraphTimeout   time.Duration // single Cypher call
	ProbeTTL       time.Duration // schema probe freshness window
	GraceTimeout   time.Duration // cancellation unwind budget

	// Capacities
	DebateParallelism int // max concurrent debate workers
	QueryCacheSize    int // shared memory LRU capacity
	MaxIterations     int // tool-use loop bound per agent run

	// Semantic resolver tuning
	FulltextIndexName string
	ConfidenceGap     float64
	DedupThreshold    float64
	RouterMargin      float64
	RerankWeights     RerankWeights
	OntologyHintsPath string

	// Debate fallback
	FallbackEnabled bool
}

// RerankWeights are the semantic resolver scoring weights.
type RerankWeights struct {
	Lexical   float64
	Fulltext  float64
	LabelHint float64
}

// LoadFromEnv builds a Config from environment variables, applying
// documented defaults for everything that is unset.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		ListenAddr:            getEnvOrDefault("LISTEN_ADDR", ":8080"),
		MaxConcurrentRequests: 200,
		Neo4jURI:              getEnvOrDefault("NEO4J_URI", "bolt://neo4j:7687"),
		Neo4jUser:             getEnvOrDefault("NEO4J_USER", "neo4j"),
		Neo4jPassword:         os.Getenv("NEO4J_PASSWORD"),
		LLMBaseURL:            os.Getenv("LLM_BASE_URL"),
		LLMAPIKey:             os.Getenv("LLM_API_KEY"),
		LLMModel:              getEnvOrDefault("LLM_MODEL", "gpt-4o-mini"),
		WorkspaceID:           getEnvOrDefault("WORKSPACE_ID", "default"),
		RequestTimeout:        120 * time.Second,
		AgentTimeout:          60 * time.Second,
		GraphTimeout:          10 * time.Second,
		ProbeTTL:              30 * time.Second,
		GraceTimeout:          1 * time.Second,
		DebateParallelism:     8,
		QueryCacheSize:        100,
		MaxIterations:         8,
		FulltextIndexName:     getEnvOrDefault("FULLTEXT_INDEX_NAME", "entity_fulltext"),
		ConfidenceGap:         0.15,
		DedupThreshold:        0.92,
		RouterMargin:          0.2,
		RerankWeights:         RerankWeights{Lexical: 0.5, Fulltext: 0.4, LabelHint: 0.1},
		OntologyHintsPath:     getEnvOrDefault("ONTOLOGY_HINTS_PATH", "output/ontology_hints.yaml"),
		FallbackEnabled:       true,
	}

	var err error
	if cfg.MaxConcurrentRequests, err = intFromEnv("MAX_CONCURRENT_REQUESTS", cfg.MaxConcurrentRequests); err != nil {
		return Config{}, err
	}
	if cfg.DebateParallelism, err = intFromEnv("DEBATE_PARALLELISM", cfg.DebateParallelism); err != nil {
		return Config{}, err
	}
	if cfg.QueryCacheSize, err = intFromEnv("QUERY_CACHE_SIZE", cfg.QueryCacheSize); err != nil {
		return Config{}, err
	}
	if cfg.MaxIterations, err = intFromEnv("AGENT_MAX_ITERATIONS", cfg.MaxIterations); err != nil {
		return Config{}, err
	}
	if cfg.RequestTimeout, err = durationFromEnv("REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return Config{}, err
	}
	if cfg.AgentTimeout, err = durationFromEnv("AGENT_TIMEOUT", cfg.AgentTimeout); err != nil {
		return Config{}, err
	}
	if cfg.GraphTimeout, err = durationFromEnv("GRAPH_TIMEOUT", cfg.GraphTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ProbeTTL, err = durationFromEnv("PROBE_TTL", cfg.ProbeTTL); err != nil {
		return Config{}, err
	}
	if cfg.GraceTimeout, err = durationFromEnv("GRACE_TIMEOUT", cfg.GraceTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ConfidenceGap, err = floatFromEnv("CONFIDENCE_GAP", cfg.ConfidenceGap); err != nil {
		return Config{}, err
	}
	if cfg.DedupThreshold, err = floatFromEnv("DEDUP_THRESHOLD", cfg.DedupThreshold); err != nil {
		return Config{}, err
	}
	if cfg.RouterMargin, err = floatFromEnv("ROUTER_MARGIN", cfg.RouterMargin); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("FALLBACK_ENABLED"); v != "" {
		enabled, parseErr := strconv.ParseBool(v)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid FALLBACK_ENABLED: %w", parseErr)
		}
		cfg.FallbackEnabled = enabled
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c Config) Validate() error {
	if c.DebateParallelism < 1 {
		return fmt.Errorf("DEBATE_PARALLELISM must be >= 1, got %d", c.DebateParallelism)
	}
	if c.QueryCacheSize < 1 {
		return fmt.Errorf("QUERY_CACHE_SIZE must be >= 1, got %d", c.QueryCacheSize)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("AGENT_MAX_ITERATIONS must be >= 1, got %d", c.MaxIterations)
	}
	if c.MaxConcurrentRequests < 1 {
		return fmt.Errorf("MAX_CONCURRENT_REQUESTS must be >= 1, got %d", c.MaxConcurrentRequests)
	}
	w := c.RerankWeights
	if w.Lexical < 0 || w.Fulltext < 0 || w.LabelHint < 0 {
		return fmt.Errorf("rerank weights must be non-negative")
	}
	if c.ConfidenceGap < 0 || c.ConfidenceGap > 1 {
		return fmt.Errorf("CONFIDENCE_GAP must be in [0,1], got %v", c.ConfidenceGap)
	}
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func intFromEnv(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func floatFromEnv(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func durationFromEnv(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
