// Package dispatch validates, times, and routes incoming runs to the
// debate orchestrator or the semantic flow, and owns the per-request
// state: shared memory, trace recorder, and the request id.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/seocho-project/graphqa/pkg/agent"
	"github.com/seocho-project/graphqa/pkg/debate"
	"github.com/seocho-project/graphqa/pkg/memory"
	"github.com/seocho-project/graphqa/pkg/models"
	"github.com/seocho-project/graphqa/pkg/policy"
	"github.com/seocho-project/graphqa/pkg/registry"
	"github.com/seocho-project/graphqa/pkg/semantic"
	"github.com/seocho-project/graphqa/pkg/trace"
)

// Execution modes.
const (
	ModeSemantic = "semantic"
	ModeDebate   = "debate"
	ModeRouter   = "router"
)

// DefaultRequestTimeout bounds one request end to end.
const DefaultRequestTimeout = 120 * time.Second

// Sentinels the API layer maps to status codes.
var (
	ErrInvalidMode = errors.New("invalid execution mode")
	ErrTimeout     = errors.New("request timed out")
)

// Request is one validated-on-entry execution request.
type Request struct {
	Question    string
	Databases   []string
	Mode        string
	WorkspaceID string
	Role        string
	Overrides   []models.Override
}

// Executor is the request supervisor.
type Executor struct {
	registry        *registry.Registry
	policy          *policy.Engine
	agents          debate.AgentSource
	runner          agent.Runner
	flow            *semantic.Flow
	debate          *debate.Orchestrator
	router          *semantic.Router
	requestTimeout  time.Duration
	cacheSize       int
	fallbackEnabled bool
	workspaceID     string
	logger          *slog.Logger
}

// Config wires an Executor.
type Config struct {
	Registry        *registry.Registry
	Policy          *policy.Engine
	Agents          debate.AgentSource
	Runner          agent.Runner
	Flow            *semantic.Flow
	Debate          *debate.Orchestrator
	Router          *semantic.Router
	RequestTimeout  time.Duration
	CacheSize       int
	FallbackEnabled bool
	WorkspaceID     string
	Logger          *slog.Logger
}

// NewExecutor creates the request supervisor.
func NewExecutor(cfg Config) *Executor {
	if cfg.RequestTimeout < time.Millisecond {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Executor{
		registry:        cfg.Registry,
		policy:          cfg.Policy,
		agents:          cfg.Agents,
		runner:          cfg.Runner,
		flow:            cfg.Flow,
		debate:          cfg.Debate,
		router:          cfg.Router,
		requestTimeout:  cfg.RequestTimeout,
		cacheSize:       cfg.CacheSize,
		fallbackEnabled: cfg.FallbackEnabled,
		workspaceID:     cfg.WorkspaceID,
		logger:          cfg.Logger.With("component", "dispatch"),
	}
}

// Execute validates the request, builds the per-request state, and runs the
// requested mode under the request deadline. On deadline the partial trace
// recorded so far is returned alongside ErrTimeout.
func (e *Executor) Execute(ctx context.Context, req Request) (*models.RunResult, error) {
	role := req.Role
	if role == "" {
		role = "user"
	}
	workspace := req.WorkspaceID
	if workspace == "" {
		workspace = e.workspaceID
	}
	action := policy.ActionRunAgent
	if req.Mode == ModeDebate {
		action = policy.ActionRunDebate
	}
	if err := e.policy.Require(role, action, workspace); err != nil {
		return nil, err
	}

	dbs := req.Databases
	if len(dbs) == 0 {
		dbs = e.registry.ListUserDBs()
	}
	for _, db := range dbs {
		if err := e.registry.Require(db); err != nil {
			return nil, err
		}
	}

	requestID := uuid.NewString()
	rc := &agent.RunContext{
		WorkspaceID: workspace,
		RequestID:   requestID,
		Memory:      memory.New(e.cacheSize),
		Recorder:    trace.NewRecorder(),
	}
	logger := e.logger.With("request_id", requestID, "mode", req.Mode)
	logger.Info("request accepted", "databases", dbs)

	ctx, cancel := context.WithTimeout(ctx, e.requestTimeout)
	defer cancel()

	var (
		result *models.RunResult
		err    error
	)
	switch req.Mode {
	case ModeSemantic, "":
		result, err = e.runSemantic(ctx, req.Question, dbs, req.Overrides, rc)
	case ModeDebate:
		result, err = e.runDebate(ctx, req.Question, dbs, req.Overrides, rc)
	case ModeRouter:
		result, err = e.runRouter(ctx, req.Question, dbs, rc)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, req.Mode)
	}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
			logger.Warn("request deadline exceeded")
			return &models.RunResult{
				RequestID:  requestID,
				TraceSteps: rc.Recorder.Steps(),
			}, fmt.Errorf("%w after %s", ErrTimeout, e.requestTimeout)
		}
		return nil, err
	}

	result.RequestID = requestID
	result.TraceSteps = rc.Recorder.Steps()
	return result, nil
}

func (e *Executor) runSemantic(ctx context.Context, question string, dbs []string, overrides []models.Override, rc *agent.RunContext) (*models.RunResult, error) {
	flowResult, err := e.flow.Run(ctx, semantic.FlowRequest{
		Question:  question,
		Databases: dbs,
		Overrides: overrides,
	}, rc)
	if err != nil {
		return nil, err
	}
	return &models.RunResult{
		Answer:   flowResult.Answer,
		Route:    flowResult.Route,
		Semantic: flowResult.Context,
	}, nil
}

// runDebate executes the debate and, when it comes back blocked, re-routes
// the question through the semantic flow so the caller still gets an
// answer. The fallback chains its trace under the debate's root step.
func (e *Executor) runDebate(ctx context.Context, question string, dbs []string, overrides []models.Override, rc *agent.RunContext) (*models.RunResult, error) {
	outcome, err := e.debate.Run(ctx, question, dbs, rc)
	if err != nil {
		return nil, err
	}

	result := &models.RunResult{
		Answer:        outcome.Answer,
		DebateState:   outcome.State,
		AgentStatuses: outcome.Statuses,
	}
	if outcome.State != models.ReadinessBlocked {
		return result, nil
	}

	if outcome.Readiness.TotalCount == 0 {
		return nil, fmt.Errorf("%w: no databases to debate over", debate.ErrBlocked)
	}
	if !e.fallbackEnabled {
		return nil, fmt.Errorf("%w (%d database(s) probed)", debate.ErrBlocked, outcome.Readiness.TotalCount)
	}

	e.logger.Warn("debate blocked, falling back to semantic flow",
		"ready", outcome.Readiness.ReadyCount, "total", outcome.Readiness.TotalCount)

	parent := ""
	if roots := rc.Recorder.Roots(); len(roots) > 0 {
		parent = roots[0]
	}
	flowResult, err := e.flow.Run(ctx, semantic.FlowRequest{
		Question:   question,
		Databases:  dbs,
		Overrides:  overrides,
		ParentNode: parent,
	}, rc)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: fallback failed: %v", debate.ErrBlocked, err)
	}

	result.Answer = flowResult.Answer
	result.Route = flowResult.Route
	result.Semantic = flowResult.Context
	result.FallbackFrom = ModeDebate
	return result, nil
}

// runRouter is the legacy single-route path: the router picks a route and
// the first ready agent answers directly.
func (e *Executor) runRouter(ctx context.Context, question string, dbs []string, rc *agent.RunContext) (*models.RunResult, error) {
	route, scores := e.router.Route(question)
	routeNode, err := rc.Recorder.Append(trace.Step{
		Type:     trace.StepRoute,
		Agent:    "router",
		Content:  fmt.Sprintf("Question routed to %s.", route),
		Metadata: map[string]any{"route": route, "scores": scores},
	})
	if err != nil {
		return nil, err
	}

	statuses := e.agents.CreateForAll(ctx, dbs)
	var chosen *agent.Agent
	var chosenDB string
	for _, s := range statuses {
		if s.Status != models.ReadinessReady {
			continue
		}
		if a, ok := e.agents.Get(s.Database); ok {
			chosen, chosenDB = a, s.Database
			break
		}
	}
	if chosen == nil {
		return nil, fmt.Errorf("%w (%d database(s) probed)", debate.ErrBlocked, len(statuses))
	}

	out, err := e.runner.Run(ctx, chosen, question, rc)
	if err != nil {
		return nil, err
	}
	specialistNode, err := rc.Recorder.Append(trace.Step{
		Type:     trace.StepSpecialist,
		Agent:    chosen.ID,
		Content:  out.Text,
		ParentID: routeNode,
		Metadata: map[string]any{"database": chosenDB},
	})
	if err != nil {
		return nil, err
	}
	if _, err := rc.Recorder.Append(trace.Step{
		Type:     trace.StepAnswer,
		Agent:    chosen.ID,
		Content:  out.Text,
		ParentID: specialistNode,
	}); err != nil {
		return nil, err
	}

	return &models.RunResult{
		Answer: out.Text,
		Route:  route,
		AgentStatuses: []models.AgentStatus{
			{Database: chosenDB, Status: models.StatusCompleted},
		},
	}, nil
}
