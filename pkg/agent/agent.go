// Package agent defines the core agent and tool types plus the Runner
// contract the runtime adapter implements. The types here are deliberately
// free of LLM-provider specifics so the pool and orchestrators never import
// a vendor SDK.
package agent

import (
	"context"
	"encoding/json"

	"github.com/seocho-project/graphqa/pkg/memory"
	"github.com/seocho-project/graphqa/pkg/models"
	"github.com/seocho-project/graphqa/pkg/trace"
)

// ToolHandler executes one tool call. Handlers are closures bound to a
// single database at construction time; the args map carries the model's
// decoded JSON arguments.
type ToolHandler func(ctx context.Context, rc *RunContext, args map[string]any) (string, error)

// Tool is one capability exposed to the model.
type Tool struct {
	Name        string
	Description string
	// ParametersSchema is the JSON Schema for the tool's arguments,
	// passed through to the model verbatim.
	ParametersSchema json.RawMessage
	Handler          ToolHandler
}

// Agent binds instructions and tools to exactly one database. The
// supervisor agent has an empty Database and no tools.
type Agent struct {
	ID           string
	Database     string
	Instructions string
	Tools        []Tool
}

// Tool returns the named tool, if the agent has it.
func (a *Agent) Tool(name string) (Tool, bool) {
	for _, t := range a.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// RunContext carries the request-scoped collaborators a run may touch.
// Nothing here is process-global; a new RunContext is built per request.
type RunContext struct {
	WorkspaceID string
	RequestID   string
	Memory      *memory.SharedMemory
	Recorder    *trace.Recorder
}

// ToolCallRecord is one executed tool call, kept for trace metadata.
type ToolCallRecord struct {
	Name   string `json:"name"`
	Args   string `json:"args"`
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}

// RunOutput is the result of one agent run.
type RunOutput struct {
	Text      string
	ToolCalls []ToolCallRecord
	Usage     models.TokenUsage
}

// Runner executes an agent against a prompt. Implementations must honor ctx
// cancellation at every model call and tool execution.
type Runner interface {
	Run(ctx context.Context, a *Agent, prompt string, rc *RunContext) (*RunOutput, error)
}
