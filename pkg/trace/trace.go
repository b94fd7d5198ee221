// Package trace records the step topology of a single request. Steps form
// a DAG rendered by the dashboard strictly from parent ids — never from
// ordering heuristics — so the recorder enforces that every referenced
// parent was recorded earlier in the same request.
package trace

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// StepType identifies where in the orchestration a step was emitted.
type StepType string

const (
	StepOrchestration StepType = "ORCHESTRATION"
	StepFanout        StepType = "FANOUT"
	StepFanoutChild   StepType = "FAN_OUT_CHILD"
	StepCollect       StepType = "COLLECT"
	StepSynthesis     StepType = "SYNTHESIS"
	StepRoute         StepType = "ROUTE"
	StepResolve       StepType = "RESOLVE"
	StepSpecialist    StepType = "SPECIALIST"
	StepAnswer        StepType = "ANSWER"
)

// ErrUnknownParent is returned when a step references a parent id that was
// not recorded earlier in the same request.
var ErrUnknownParent = errors.New("trace step references unknown parent")

// Step is one node of the request's trace DAG. ParentID is set for linear
// chains; ParentIDs for join nodes (COLLECT). Exactly one step per request
// has neither.
type Step struct {
	NodeID    string         `json:"node_id"`
	Type      StepType       `json:"type"`
	Agent     string         `json:"agent"`
	Phase     string         `json:"phase"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	ParentID  string         `json:"parent_id,omitempty"`
	ParentIDs []string       `json:"parent_ids,omitempty"`
}

// Recorder accumulates steps for one request. Safe for concurrent use by
// debate workers.
type Recorder struct {
	mu    sync.Mutex
	steps []Step
	known map[string]bool
}

// NewRecorder creates an empty per-request recorder.
func NewRecorder() *Recorder {
	return &Recorder{known: make(map[string]bool)}
}

// Append assigns the step a fresh node id, validates its parent references,
// and records it. Returns the assigned node id.
func (r *Recorder) Append(step Step) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if step.ParentID != "" && !r.known[step.ParentID] {
		return "", fmt.Errorf("%w: %s", ErrUnknownParent, step.ParentID)
	}
	for _, parent := range step.ParentIDs {
		if !r.known[parent] {
			return "", fmt.Errorf("%w: %s", ErrUnknownParent, parent)
		}
	}

	step.NodeID = uuid.NewString()
	r.known[step.NodeID] = true
	r.steps = append(r.steps, step)
	return step.NodeID, nil
}

// Steps returns a snapshot of all recorded steps in emission order.
func (r *Recorder) Steps() []Step {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Step, len(r.steps))
	copy(out, r.steps)
	return out
}

// Roots returns the node ids of steps with no parent. A well-formed
// request trace has exactly one.
func (r *Recorder) Roots() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var roots []string
	for _, step := range r.steps {
		if step.ParentID == "" && len(step.ParentIDs) == 0 {
			roots = append(roots, step.NodeID)
		}
	}
	return roots
}
