// Package models holds the data structures shared across the orchestration
// pipeline and the API surface.
package models

import "github.com/seocho-project/graphqa/pkg/trace"

// ExecutionStatus tracks per-agent outcome within a single request.
type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "pending"
	StatusActive    ExecutionStatus = "active"
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
	StatusTimedOut  ExecutionStatus = "timed_out"
	StatusCancelled ExecutionStatus = "cancelled"
	// StatusUnreachable marks a database whose agent could not be built at
	// all: it is excluded from the fan-out rather than failed inside it.
	StatusUnreachable ExecutionStatus = "unreachable"
)

// AgentStatus is one agent's outcome inside a debate or semantic run.
type AgentStatus struct {
	Database string          `json:"database"`
	Status   ExecutionStatus `json:"status"`
	Error    string          `json:"error,omitempty"`
}

// DBReadiness is one database's probe outcome.
type DBReadiness struct {
	Database string `json:"database"`
	Status   string `json:"status"` // ready or degraded
	Reason   string `json:"reason,omitempty"`
}

// ReadinessSummary aggregates per-database probe outcomes into the debate
// gate: ready when every database is ready, blocked when none is.
type ReadinessSummary struct {
	DebateState   string        `json:"debate_state"` // ready, degraded, blocked
	Degraded      bool          `json:"degraded"`
	ReadyCount    int           `json:"ready_count"`
	DegradedCount int           `json:"degraded_count"`
	TotalCount    int           `json:"total_count"`
	Statuses      []DBReadiness `json:"statuses"`
}

// Readiness states.
const (
	ReadinessReady    = "ready"
	ReadinessDegraded = "degraded"
	ReadinessBlocked  = "blocked"
)

// SummarizeReadiness folds per-database statuses into the overall state.
func SummarizeReadiness(statuses []DBReadiness) ReadinessSummary {
	ready := 0
	for _, s := range statuses {
		if s.Status == ReadinessReady {
			ready++
		}
	}
	total := len(statuses)
	degraded := total - ready

	state := ReadinessReady
	switch {
	case ready == 0:
		state = ReadinessBlocked
	case degraded > 0:
		state = ReadinessDegraded
	}
	return ReadinessSummary{
		DebateState:   state,
		Degraded:      state != ReadinessReady,
		ReadyCount:    ready,
		DegradedCount: degraded,
		TotalCount:    total,
		Statuses:      statuses,
	}
}

// RunResult is the common envelope every orchestration mode returns.
type RunResult struct {
	Answer        string           `json:"answer"`
	Route         string           `json:"route,omitempty"`
	RequestID     string           `json:"request_id"`
	TraceSteps    []trace.Step     `json:"trace_steps"`
	AgentStatuses []AgentStatus    `json:"agent_statuses,omitempty"`
	DebateState   string           `json:"debate_state,omitempty"`
	FallbackFrom  string           `json:"fallback_from,omitempty"`
	Semantic      *SemanticContext `json:"semantic_context,omitempty"`
}

// CandidateEntity is one resolved graph node candidate for a mention.
type CandidateEntity struct {
	Mention     string   `json:"mention"`
	ElementID   string   `json:"element_id"`
	DisplayName string   `json:"display_name"`
	Labels      []string `json:"labels"`
	Score       float64  `json:"score"`
	Source      string   `json:"source"` // override, fulltext, contains
	Database    string   `json:"database"`
}

// Override pins a mention to a known graph node ahead of resolution.
type Override struct {
	Mention   string `json:"mention"`
	ElementID string `json:"element_id"`
	Database  string `json:"database"`
	Label     string `json:"label,omitempty"`
	Name      string `json:"name,omitempty"`
}

// SemanticContext carries resolution and routing evidence alongside the
// answer so callers can audit why a route was taken.
type SemanticContext struct {
	Mentions   []string           `json:"mentions"`
	Candidates []CandidateEntity  `json:"candidates"`
	Resolved   []CandidateEntity  `json:"resolved"`
	Ambiguous  []string           `json:"ambiguous,omitempty"`
	Route      string             `json:"route"`
	RouteScore map[string]float64 `json:"route_score,omitempty"`
}

// EnsureResult reports the outcome of a fulltext index ensure call.
type EnsureResult struct {
	IndexName  string   `json:"index_name"`
	Database   string   `json:"database"`
	Labels     []string `json:"labels"`
	Properties []string `json:"properties"`
	Exists     bool     `json:"exists"`
	Created    bool     `json:"created"`
}

// TokenUsage accumulates LLM token counts across a run.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another usage sample.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}
