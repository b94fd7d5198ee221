// Package api is the HTTP surface: run endpoints for the three execution
// modes, the platform chat adapter, index management, catalog listings,
// and the split health probes.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/seocho-project/graphqa/pkg/dispatch"
	"github.com/seocho-project/graphqa/pkg/models"
	"github.com/seocho-project/graphqa/pkg/platform"
	"github.com/seocho-project/graphqa/pkg/policy"
	"github.com/seocho-project/graphqa/pkg/registry"
)

// DefaultMaxConcurrent is the in-flight request cap before backpressure.
const DefaultMaxConcurrent = 200

// RunExecutor runs one validated request end to end.
type RunExecutor interface {
	Execute(ctx context.Context, req dispatch.Request) (*models.RunResult, error)
}

// IndexManager is the gateway subset the index and health endpoints need.
type IndexManager interface {
	EnsureFulltextIndex(ctx context.Context, db, index string, labels, properties []string, createIfMissing bool) (models.EnsureResult, error)
	Ping(ctx context.Context, db string) error
}

// AgentCatalog reports per-database agent readiness.
type AgentCatalog interface {
	Readiness(ctx context.Context, dbs []string) models.ReadinessSummary
}

// Config wires a Server.
type Config struct {
	Executor         RunExecutor
	Registry         *registry.Registry
	Policy           *policy.Engine
	Indexes          IndexManager
	Agents           AgentCatalog
	Sessions         *platform.SessionStore
	DefaultWorkspace string
	MaxConcurrent    int
	Logger           *slog.Logger
}

// Server is the HTTP server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	executor  RunExecutor
	registry  *registry.Registry
	policy    *policy.Engine
	indexes   IndexManager
	agents    AgentCatalog
	sessions  *platform.SessionStore
	workspace string
	logger    *slog.Logger
}

// NewServer creates the server and registers all routes and middleware.
func NewServer(cfg Config) *Server {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.DefaultWorkspace == "" {
		cfg.DefaultWorkspace = "default"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Sessions == nil {
		cfg.Sessions = platform.NewSessionStore(0)
	}

	s := &Server{
		executor:  cfg.Executor,
		registry:  cfg.Registry,
		policy:    cfg.Policy,
		indexes:   cfg.Indexes,
		agents:    cfg.Agents,
		sessions:  cfg.Sessions,
		workspace: cfg.DefaultWorkspace,
		logger:    cfg.Logger.With("component", "api"),
	}

	e := echo.New()
	e.Use(requestID())
	e.Use(securityHeaders())
	e.Use(concurrencyLimit(cfg.MaxConcurrent))

	e.POST("/run_agent", s.runAgentHandler)
	e.POST("/run_agent_semantic", s.runSemanticHandler)
	e.POST("/run_debate", s.runDebateHandler)
	e.POST("/platform/chat/send", s.chatSendHandler)
	e.POST("/indexes/fulltext/ensure", s.ensureIndexHandler)
	e.GET("/databases", s.databasesHandler)
	e.GET("/agents", s.agentsHandler)
	e.GET("/health/runtime", s.healthRuntimeHandler)
	e.GET("/health/batch", s.healthBatchHandler)

	s.echo = e
	return s
}

// Start serves HTTP on addr, blocking until the listener closes.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the HTTP server, waiting for in-flight requests until ctx
// expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
