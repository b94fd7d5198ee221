// Package debate runs the multi-agent debate protocol: probe readiness, fan
// out one worker per database, collect the fragments, and synthesize a
// final answer with the supervisor agent.
package debate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/seocho-project/graphqa/pkg/agent"
	"github.com/seocho-project/graphqa/pkg/models"
	"github.com/seocho-project/graphqa/pkg/trace"
)

// Fan-out defaults.
const (
	DefaultParallelism  = 8
	DefaultAgentTimeout = 60 * time.Second
)

// ErrBlocked is returned when no agent can participate at all.
var ErrBlocked = errors.New("debate blocked: no agent is ready")

// AgentSource is the slice of the agent pool the orchestrator needs.
type AgentSource interface {
	CreateForAll(ctx context.Context, dbs []string) []models.DBReadiness
	Get(db string) (*agent.Agent, bool)
	Supervisor() *agent.Agent
}

// Outcome is one debate's result. Blocked outcomes carry no answer; the
// caller decides whether to fall back.
type Outcome struct {
	Answer    string
	State     string
	Statuses  []models.AgentStatus
	Readiness models.ReadinessSummary
	Usage     models.TokenUsage
}

// Orchestrator coordinates the fan-out. Worker failures are isolated: a
// timeout or tool error marks that worker's status and the debate goes on.
type Orchestrator struct {
	agents       AgentSource
	runner       agent.Runner
	parallelism  int
	agentTimeout time.Duration
	logger       *slog.Logger
}

// New creates an Orchestrator. Non-positive knobs fall back to defaults.
func New(agents AgentSource, runner agent.Runner, parallelism int, agentTimeout time.Duration, logger *slog.Logger) *Orchestrator {
	if parallelism < 1 {
		parallelism = DefaultParallelism
	}
	if agentTimeout < time.Millisecond {
		agentTimeout = DefaultAgentTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		agents:       agents,
		runner:       runner,
		parallelism:  parallelism,
		agentTimeout: agentTimeout,
		logger:       logger.With("component", "debate"),
	}
}

type workerResult struct {
	db     string
	nodeID string
	status models.ExecutionStatus
	errMsg string
	answer string
	usage  models.TokenUsage
}

// Run executes the debate over the given databases. A blocked readiness
// snapshot, or zero successful workers, yields a blocked Outcome with a nil
// error; hard failures (trace corruption, cancellation before any work)
// return an error.
func (o *Orchestrator) Run(ctx context.Context, question string, dbs []string, rc *agent.RunContext) (*Outcome, error) {
	statuses := o.agents.CreateForAll(ctx, dbs)
	readiness := models.SummarizeReadiness(statuses)

	root, err := rc.Recorder.Append(trace.Step{
		Type:    trace.StepOrchestration,
		Agent:   "supervisor",
		Content: fmt.Sprintf("Debate requested over %d database(s).", len(statuses)),
		Metadata: map[string]any{
			"debate_state": readiness.DebateState,
			"ready_count":  readiness.ReadyCount,
			"total_count":  readiness.TotalCount,
		},
	})
	if err != nil {
		return nil, err
	}

	if readiness.DebateState == models.ReadinessBlocked {
		o.logger.Warn("debate blocked before fan-out", "total", readiness.TotalCount)
		return &Outcome{State: models.ReadinessBlocked, Readiness: readiness}, nil
	}

	// Only databases with a built agent join the fan-out. The rest never
	// get a worker or a child step; they surface as unreachable statuses.
	participants := make([]string, 0, len(statuses))
	var unreachable []models.AgentStatus
	for _, s := range statuses {
		if _, ok := o.agents.Get(s.Database); ok {
			participants = append(participants, s.Database)
			continue
		}
		reason := s.Reason
		if reason == "" {
			reason = "agent unavailable"
		}
		unreachable = append(unreachable, models.AgentStatus{
			Database: s.Database,
			Status:   models.StatusUnreachable,
			Error:    reason,
		})
	}
	sort.Strings(participants)

	fanout, err := rc.Recorder.Append(trace.Step{
		Type:     trace.StepFanout,
		Agent:    "supervisor",
		Content:  fmt.Sprintf("Fanning out to %d agent(s).", len(participants)),
		ParentID: root,
		Metadata: map[string]any{"agents": participants},
	})
	if err != nil {
		return nil, err
	}

	results := o.fanOut(ctx, question, participants, fanout, rc)

	outcome := &Outcome{State: readiness.DebateState, Readiness: readiness}
	var successNodes []string
	for _, r := range results {
		outcome.Statuses = append(outcome.Statuses, models.AgentStatus{
			Database: r.db,
			Status:   r.status,
			Error:    r.errMsg,
		})
		outcome.Usage.Add(r.usage)
		if r.status == models.StatusCompleted && r.nodeID != "" {
			successNodes = append(successNodes, r.nodeID)
		}
	}
	outcome.Statuses = append(outcome.Statuses, unreachable...)
	sort.Slice(outcome.Statuses, func(i, j int) bool {
		return outcome.Statuses[i].Database < outcome.Statuses[j].Database
	})

	if len(successNodes) == 0 {
		o.logger.Warn("debate produced no successful fragments", "attempted", len(results))
		outcome.State = models.ReadinessBlocked
		return outcome, nil
	}

	collect, err := rc.Recorder.Append(trace.Step{
		Type:      trace.StepCollect,
		Agent:     "supervisor",
		Content:   fmt.Sprintf("Collected %d of %d fragment(s).", len(successNodes), len(results)),
		ParentIDs: successNodes,
	})
	if err != nil {
		return nil, err
	}

	answer, usage := o.synthesize(ctx, question, outcome.Statuses, rc)
	outcome.Usage.Add(usage)
	outcome.Answer = answer

	if _, err := rc.Recorder.Append(trace.Step{
		Type:     trace.StepSynthesis,
		Agent:    "supervisor",
		Content:  answer,
		ParentID: collect,
	}); err != nil {
		return nil, err
	}
	return outcome, nil
}

// fanOut runs one worker per participant under the parallelism cap and
// returns when every task has resolved. Each worker gets its own deadline;
// cancelling ctx aborts the stragglers.
func (o *Orchestrator) fanOut(ctx context.Context, question string, participants []string, fanoutNode string, rc *agent.RunContext) []workerResult {
	limit := int64(o.parallelism)
	if n := int64(len(participants)); n < limit {
		limit = n
	}
	sem := semaphore.NewWeighted(limit)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []workerResult
	)
	for _, db := range participants {
		wg.Add(1)
		go func(db string) {
			defer wg.Done()
			r := o.runWorker(ctx, sem, question, db, fanoutNode, rc)
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}(db)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].db < results[j].db })
	return results
}

func (o *Orchestrator) runWorker(ctx context.Context, sem *semaphore.Weighted, question, db, fanoutNode string, rc *agent.RunContext) workerResult {
	r := workerResult{db: db, status: models.StatusFailed}

	if err := sem.Acquire(ctx, 1); err != nil {
		r.status = models.StatusCancelled
		r.errMsg = err.Error()
		r.nodeID = o.childStep(db, fanoutNode, "cancelled before start", r, rc)
		return r
	}
	defer sem.Release(1)

	// The participant filter checked this already; the pool can still drop
	// the agent between snapshot and execution. No child step in that case.
	a, ok := o.agents.Get(db)
	if !ok {
		r.status = models.StatusUnreachable
		r.errMsg = "agent unavailable"
		return r
	}

	workerCtx, cancel := context.WithTimeout(ctx, o.agentTimeout)
	defer cancel()

	out, err := o.runner.Run(workerCtx, a, question, rc)
	switch {
	case err == nil:
		r.status = models.StatusCompleted
		r.answer = out.Text
		r.usage = out.Usage
		// A worker that never called put_shared_result still contributes
		// its answer text as the fragment.
		if _, ok := rc.Memory.Results()[db]; !ok {
			rc.Memory.PutResult(db, out.Text)
		}
		r.nodeID = o.childStep(db, fanoutNode, out.Text, r, rc)
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		r.status = models.StatusTimedOut
		r.errMsg = fmt.Sprintf("agent timed out after %s", o.agentTimeout)
		r.nodeID = o.childStep(db, fanoutNode, r.errMsg, r, rc)
	case ctx.Err() != nil:
		r.status = models.StatusCancelled
		r.errMsg = ctx.Err().Error()
		r.nodeID = o.childStep(db, fanoutNode, "cancelled", r, rc)
	default:
		r.errMsg = err.Error()
		o.logger.Warn("debate worker failed", "db", db, "error", err)
		r.nodeID = o.childStep(db, fanoutNode, r.errMsg, r, rc)
	}
	return r
}

func (o *Orchestrator) childStep(db, fanoutNode, content string, r workerResult, rc *agent.RunContext) string {
	nodeID, err := rc.Recorder.Append(trace.Step{
		Type:     trace.StepFanoutChild,
		Agent:    "agent_" + db,
		Content:  content,
		ParentID: fanoutNode,
		Metadata: map[string]any{"database": db, "status": string(r.status), "error": r.errMsg},
	})
	if err != nil {
		o.logger.Error("failed to record fan-out child", "db", db, "error", err)
		return ""
	}
	return nodeID
}

// synthesize asks the supervisor to compose the final answer from the
// shared fragments. On failure it degrades to a deterministic digest rather
// than losing the debate's work.
func (o *Orchestrator) synthesize(ctx context.Context, question string, statuses []models.AgentStatus, rc *agent.RunContext) (string, models.TokenUsage) {
	fragments := rc.Memory.Results()

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nSpecialist findings:\n", question)
	dbs := make([]string, 0, len(fragments))
	for db := range fragments {
		dbs = append(dbs, db)
	}
	sort.Strings(dbs)
	for _, db := range dbs {
		fmt.Fprintf(&b, "- [%s] %s\n", db, fragments[db])
	}
	b.WriteString("\nAgent statuses:\n")
	for _, s := range statuses {
		if s.Error != "" {
			fmt.Fprintf(&b, "- %s: %s (%s)\n", s.Database, s.Status, s.Error)
		} else {
			fmt.Fprintf(&b, "- %s: %s\n", s.Database, s.Status)
		}
	}

	out, err := o.runner.Run(ctx, o.agents.Supervisor(), b.String(), rc)
	if err != nil || strings.TrimSpace(out.Text) == "" {
		o.logger.Warn("synthesis fell back to fragment digest", "error", err)
		var lines []string
		for _, db := range dbs {
			lines = append(lines, fmt.Sprintf("[%s] %s", db, fragments[db]))
		}
		return strings.Join(lines, " "), models.TokenUsage{}
	}
	return out.Text, out.Usage
}
