// Command graphqa serves the multi-database graph question-answering API:
// per-database agents over Neo4j, a debate orchestrator, and the semantic
// resolution flow behind one HTTP surface.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	openai "github.com/sashabaranov/go-openai"

	"github.com/seocho-project/graphqa/pkg/agent/pool"
	"github.com/seocho-project/graphqa/pkg/agent/runtime"
	"github.com/seocho-project/graphqa/pkg/api"
	"github.com/seocho-project/graphqa/pkg/config"
	"github.com/seocho-project/graphqa/pkg/debate"
	"github.com/seocho-project/graphqa/pkg/dispatch"
	"github.com/seocho-project/graphqa/pkg/graph"
	"github.com/seocho-project/graphqa/pkg/platform"
	"github.com/seocho-project/graphqa/pkg/policy"
	"github.com/seocho-project/graphqa/pkg/registry"
	"github.com/seocho-project/graphqa/pkg/semantic"
)

func main() {
	// Load .env if present (ignore error - file is optional)
	_ = godotenv.Load()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Graph driver and gateway
	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""))
	if err != nil {
		slog.Error("Failed to create Neo4j driver", "uri", cfg.Neo4jURI, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := driver.Close(ctx); err != nil {
			slog.Error("Error closing Neo4j driver", "error", err)
		}
	}()

	gateway := graph.New(driver, cfg.GraphTimeout, slog.Default())
	reg := registry.New()
	slog.Info("Graph gateway initialized", "uri", cfg.Neo4jURI, "databases", reg.ListUserDBs())

	// 2. LLM runtime adapter (OpenAI-compatible chat completion API)
	llmCfg := openai.DefaultConfig(cfg.LLMAPIKey)
	if cfg.LLMBaseURL != "" {
		llmCfg.BaseURL = cfg.LLMBaseURL
	}
	runner := runtime.New(openai.NewClientWithConfig(llmCfg), cfg.LLMModel, cfg.MaxIterations, slog.Default())
	slog.Info("LLM runtime initialized", "model", cfg.LLMModel, "max_iterations", cfg.MaxIterations)

	// 3. Agent pool over the user databases
	agents := pool.New(gateway, reg, cfg.ProbeTTL, slog.Default())

	// 4. Semantic flow
	hints, err := semantic.LoadHints(cfg.OntologyHintsPath)
	if err != nil {
		slog.Error("Failed to load ontology hints", "path", cfg.OntologyHintsPath, "error", err)
		os.Exit(1)
	}
	slog.Info("Ontology hints loaded", "path", cfg.OntologyHintsPath)

	resolver := semantic.NewResolver(gateway, hints, semantic.ResolverConfig{
		IndexHint:      cfg.FulltextIndexName,
		ConfidenceGap:  cfg.ConfidenceGap,
		DedupThreshold: cfg.DedupThreshold,
		Weights: semantic.Weights{
			Lexical:   cfg.RerankWeights.Lexical,
			Fulltext:  cfg.RerankWeights.Fulltext,
			LabelHint: cfg.RerankWeights.LabelHint,
		},
	}, slog.Default())
	router := semantic.NewRouter(cfg.RouterMargin, nil)
	flow := semantic.NewFlow(
		resolver,
		router,
		semantic.NewLPGSpecialist(gateway, 0, slog.Default()),
		semantic.NewRDFSpecialist(gateway, 0, slog.Default()),
		semantic.NewAnswerGenerator(runner, slog.Default()),
		slog.Default(),
	)

	// 5. Debate orchestrator and request supervisor
	orchestrator := debate.New(agents, runner, cfg.DebateParallelism, cfg.AgentTimeout, slog.Default())
	executor := dispatch.NewExecutor(dispatch.Config{
		Registry:        reg,
		Policy:          policy.NewEngine(),
		Agents:          agents,
		Runner:          runner,
		Flow:            flow,
		Debate:          orchestrator,
		Router:          router,
		RequestTimeout:  cfg.RequestTimeout,
		CacheSize:       cfg.QueryCacheSize,
		FallbackEnabled: cfg.FallbackEnabled,
		WorkspaceID:     cfg.WorkspaceID,
		Logger:          slog.Default(),
	})

	// 6. HTTP server
	server := api.NewServer(api.Config{
		Executor:         executor,
		Registry:         reg,
		Policy:           policy.NewEngine(),
		Indexes:          gateway,
		Agents:           agents,
		Sessions:         platform.NewSessionStore(0),
		DefaultWorkspace: cfg.WorkspaceID,
		MaxConcurrent:    cfg.MaxConcurrentRequests,
		Logger:           slog.Default(),
	})

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.ListenAddr)
		if err := server.Start(cfg.ListenAddr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("GraphQA started", "workspace", cfg.WorkspaceID)

	// 7. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 8. Graceful shutdown: stop accepting requests, let in-flight runs
	// unwind within the grace budget.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.GraceTimeout+5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
