package debate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seocho-project/graphqa/pkg/agent"
	"github.com/seocho-project/graphqa/pkg/memory"
	"github.com/seocho-project/graphqa/pkg/models"
	"github.com/seocho-project/graphqa/pkg/trace"
)

// fakeAgents serves pre-built agents and readiness statuses.
type fakeAgents struct {
	statuses []models.DBReadiness
	agents   map[string]*agent.Agent
}

func (f *fakeAgents) CreateForAll(ctx context.Context, dbs []string) []models.DBReadiness {
	return f.statuses
}

func (f *fakeAgents) Get(db string) (*agent.Agent, bool) {
	a, ok := f.agents[db]
	return a, ok
}

func (f *fakeAgents) Supervisor() *agent.Agent {
	return &agent.Agent{ID: "supervisor"}
}

// fakeRunner scripts per-database behavior and counts concurrency.
type fakeRunner struct {
	mu         sync.Mutex
	answers    map[string]string
	errs       map[string]error
	delay      map[string]time.Duration
	running    int32
	maxRunning int32
	synthesis  string
}

func (f *fakeRunner) Run(ctx context.Context, a *agent.Agent, prompt string, rc *agent.RunContext) (*agent.RunOutput, error) {
	if a.Database == "" {
		if f.synthesis == "" {
			return &agent.RunOutput{Text: "synthesized"}, nil
		}
		return &agent.RunOutput{Text: f.synthesis}, nil
	}

	current := atomic.AddInt32(&f.running, 1)
	defer atomic.AddInt32(&f.running, -1)
	for {
		max := atomic.LoadInt32(&f.maxRunning)
		if current <= max || atomic.CompareAndSwapInt32(&f.maxRunning, max, current) {
			break
		}
	}

	if d := f.delay[a.Database]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.errs[a.Database]; err != nil {
		return nil, err
	}
	return &agent.RunOutput{
		Text:  f.answers[a.Database],
		Usage: models.TokenUsage{TotalTokens: 10},
	}, nil
}

func readyAgents(dbs ...string) *fakeAgents {
	f := &fakeAgents{agents: map[string]*agent.Agent{}}
	for _, db := range dbs {
		f.statuses = append(f.statuses, models.DBReadiness{Database: db, Status: models.ReadinessReady})
		f.agents[db] = &agent.Agent{ID: "agent_" + db, Database: db}
	}
	return f
}

func newRunContext() *agent.RunContext {
	return &agent.RunContext{Memory: memory.New(10), Recorder: trace.NewRecorder()}
}

func TestDebateHappyPath(t *testing.T) {
	agents := readyAgents("kgnormal", "kgfibo")
	runner := &fakeRunner{answers: map[string]string{"kgnormal": "42 companies", "kgfibo": "12 bonds"}}
	o := New(agents, runner, 0, 0, nil)
	rc := newRunContext()

	outcome, err := o.Run(context.Background(), "what do we know?", nil, rc)
	require.NoError(t, err)

	assert.Equal(t, "synthesized", outcome.Answer)
	assert.Equal(t, models.ReadinessReady, outcome.State)
	require.Len(t, outcome.Statuses, 2)
	for _, s := range outcome.Statuses {
		assert.Equal(t, models.StatusCompleted, s.Status)
	}
	assert.Equal(t, map[string]string{"kgnormal": "42 companies", "kgfibo": "12 bonds"}, rc.Memory.Results())

	steps := rc.Recorder.Steps()
	types := map[trace.StepType]int{}
	for _, s := range steps {
		types[s.Type]++
	}
	assert.Equal(t, 1, types[trace.StepOrchestration])
	assert.Equal(t, 1, types[trace.StepFanout])
	assert.Equal(t, 2, types[trace.StepFanoutChild])
	assert.Equal(t, 1, types[trace.StepCollect])
	assert.Equal(t, 1, types[trace.StepSynthesis])
	assert.Len(t, rc.Recorder.Roots(), 1)
}

func TestDebateCollectParentsAreSuccessfulChildren(t *testing.T) {
	agents := readyAgents("kgnormal", "kgfibo", "kgruntime")
	runner := &fakeRunner{
		answers: map[string]string{"kgnormal": "a", "kgruntime": "c"},
		errs:    map[string]error{"kgfibo": errors.New("tool exploded")},
	}
	o := New(agents, runner, 0, 0, nil)
	rc := newRunContext()

	outcome, err := o.Run(context.Background(), "q", nil, rc)
	require.NoError(t, err)
	assert.NotEmpty(t, outcome.Answer)

	var children map[string]trace.Step
	var collect trace.Step
	children = map[string]trace.Step{}
	for _, s := range rc.Recorder.Steps() {
		switch s.Type {
		case trace.StepFanoutChild:
			children[s.NodeID] = s
		case trace.StepCollect:
			collect = s
		}
	}
	require.Len(t, collect.ParentIDs, 2, "only answer-producing children join the collect")
	for _, parent := range collect.ParentIDs {
		child, ok := children[parent]
		require.True(t, ok)
		assert.NotEqual(t, "kgfibo", child.Metadata["database"])
	}
}

func TestDebateErrorIsolation(t *testing.T) {
	agents := readyAgents("kgnormal", "kgfibo")
	runner := &fakeRunner{
		answers: map[string]string{"kgnormal": "fine"},
		errs:    map[string]error{"kgfibo": errors.New("boom")},
	}
	o := New(agents, runner, 0, 0, nil)

	outcome, err := o.Run(context.Background(), "q", nil, newRunContext())
	require.NoError(t, err)

	byDB := map[string]models.AgentStatus{}
	for _, s := range outcome.Statuses {
		byDB[s.Database] = s
	}
	assert.Equal(t, models.StatusCompleted, byDB["kgnormal"].Status)
	assert.Equal(t, models.StatusFailed, byDB["kgfibo"].Status)
	assert.Equal(t, "boom", byDB["kgfibo"].Error)
}

func TestDebateWorkerTimeout(t *testing.T) {
	agents := readyAgents("kgnormal", "kgfibo")
	runner := &fakeRunner{
		answers: map[string]string{"kgnormal": "fast answer"},
		delay:   map[string]time.Duration{"kgfibo": 500 * time.Millisecond},
	}
	o := New(agents, runner, 0, 20*time.Millisecond, nil)

	outcome, err := o.Run(context.Background(), "q", nil, newRunContext())
	require.NoError(t, err)

	byDB := map[string]models.AgentStatus{}
	for _, s := range outcome.Statuses {
		byDB[s.Database] = s
	}
	assert.Equal(t, models.StatusCompleted, byDB["kgnormal"].Status)
	assert.Equal(t, models.StatusTimedOut, byDB["kgfibo"].Status)
	assert.NotEmpty(t, outcome.Answer, "one success is enough to synthesize")
}

func TestDebateBlockedWhenNothingReady(t *testing.T) {
	agents := &fakeAgents{
		statuses: []models.DBReadiness{
			{Database: "kgnormal", Status: models.ReadinessDegraded, Reason: "unreachable"},
		},
		agents: map[string]*agent.Agent{},
	}
	o := New(agents, &fakeRunner{}, 0, 0, nil)
	rc := newRunContext()

	outcome, err := o.Run(context.Background(), "q", nil, rc)
	require.NoError(t, err)
	assert.Equal(t, models.ReadinessBlocked, outcome.State)
	assert.Empty(t, outcome.Answer)

	// Blocked before fan-out: only the orchestration step exists.
	steps := rc.Recorder.Steps()
	require.Len(t, steps, 1)
	assert.Equal(t, trace.StepOrchestration, steps[0].Type)
}

func TestDebateBlockedWhenAllWorkersFail(t *testing.T) {
	agents := readyAgents("kgnormal")
	runner := &fakeRunner{errs: map[string]error{"kgnormal": errors.New("boom")}}
	o := New(agents, runner, 0, 0, nil)

	outcome, err := o.Run(context.Background(), "q", nil, newRunContext())
	require.NoError(t, err)
	assert.Equal(t, models.ReadinessBlocked, outcome.State)
	assert.Empty(t, outcome.Answer)
}

func TestDebateUnreachableExcludedFromFanout(t *testing.T) {
	agents := readyAgents("kgnormal", "kgfibo")
	agents.statuses = append(agents.statuses, models.DBReadiness{
		Database: "kgruntime", Status: models.ReadinessDegraded, Reason: "schema probe failed",
	})
	runner := &fakeRunner{answers: map[string]string{"kgnormal": "a", "kgfibo": "b"}}
	o := New(agents, runner, 0, 0, nil)
	rc := newRunContext()

	outcome, err := o.Run(context.Background(), "q", nil, rc)
	require.NoError(t, err)
	assert.Equal(t, models.ReadinessDegraded, outcome.State)

	// Only databases with an agent get a worker and a child step.
	children := 0
	for _, s := range rc.Recorder.Steps() {
		if s.Type == trace.StepFanoutChild {
			children++
			assert.NotEqual(t, "kgruntime", s.Metadata["database"])
		}
	}
	assert.Equal(t, 2, children)

	byDB := map[string]models.AgentStatus{}
	for _, s := range outcome.Statuses {
		byDB[s.Database] = s
	}
	require.Len(t, outcome.Statuses, 3)
	assert.Equal(t, models.StatusCompleted, byDB["kgnormal"].Status)
	assert.Equal(t, models.StatusCompleted, byDB["kgfibo"].Status)
	assert.Equal(t, models.StatusUnreachable, byDB["kgruntime"].Status)
	assert.Equal(t, "schema probe failed", byDB["kgruntime"].Error)
}

func TestDebateStatusAccounting(t *testing.T) {
	agents := readyAgents("kgnormal", "kgfibo", "kgslow")
	agents.statuses = append(agents.statuses, models.DBReadiness{
		Database: "kgdown", Status: models.ReadinessDegraded, Reason: "unreachable",
	})
	runner := &fakeRunner{
		answers: map[string]string{"kgnormal": "a"},
		errs:    map[string]error{"kgfibo": errors.New("tool exploded")},
		delay:   map[string]time.Duration{"kgslow": 500 * time.Millisecond},
	}
	o := New(agents, runner, 0, 20*time.Millisecond, nil)
	rc := newRunContext()

	outcome, err := o.Run(context.Background(), "q", nil, rc)
	require.NoError(t, err)

	children := 0
	for _, s := range rc.Recorder.Steps() {
		if s.Type == trace.StepFanoutChild {
			children++
		}
	}

	// Every worker resolves to exactly one terminal status, and each of
	// those statuses maps to exactly one child step.
	counts := map[models.ExecutionStatus]int{}
	for _, s := range outcome.Statuses {
		counts[s.Status]++
	}
	assert.Equal(t, 1, counts[models.StatusCompleted])
	assert.Equal(t, 1, counts[models.StatusFailed])
	assert.Equal(t, 1, counts[models.StatusTimedOut])
	assert.Equal(t, 1, counts[models.StatusUnreachable])
	assert.Equal(t, children,
		counts[models.StatusCompleted]+counts[models.StatusFailed]+counts[models.StatusTimedOut],
		"unreachable databases must not produce child steps")
	assert.Equal(t, 3, children)
}

func TestDebateBoundedParallelism(t *testing.T) {
	dbs := []string{"db1", "db2", "db3", "db4", "db5", "db6"}
	agents := &fakeAgents{agents: map[string]*agent.Agent{}}
	answers := map[string]string{}
	delays := map[string]time.Duration{}
	for _, db := range dbs {
		agents.statuses = append(agents.statuses, models.DBReadiness{Database: db, Status: models.ReadinessReady})
		agents.agents[db] = &agent.Agent{ID: "agent_" + db, Database: db}
		answers[db] = "ok"
		delays[db] = 30 * time.Millisecond
	}
	runner := &fakeRunner{answers: answers, delay: delays}
	o := New(agents, runner, 2, 0, nil)

	_, err := o.Run(context.Background(), "q", nil, newRunContext())
	require.NoError(t, err)
	assert.LessOrEqual(t, runner.maxRunning, int32(2), "semaphore must cap concurrent workers")
}

func TestDebateCancellation(t *testing.T) {
	agents := readyAgents("kgnormal", "kgfibo")
	runner := &fakeRunner{
		answers: map[string]string{"kgnormal": "a", "kgfibo": "b"},
		delay: map[string]time.Duration{
			"kgnormal": time.Second,
			"kgfibo":   time.Second,
		},
	}
	o := New(agents, runner, 0, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	outcome, err := o.Run(ctx, "q", nil, newRunContext())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "cancellation must abort promptly")
	assert.Equal(t, models.ReadinessBlocked, outcome.State)
	for _, s := range outcome.Statuses {
		assert.Equal(t, models.StatusCancelled, s.Status)
	}
}
