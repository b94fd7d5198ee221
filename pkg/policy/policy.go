// Package policy enforces workspace validation and role-based permissions
// on the request hot path. Single-tenant for now, but every runtime call
// still carries a workspace id so the check never has to be retrofitted.
package policy

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrDenied is the sentinel for every policy refusal.
var ErrDenied = errors.New("policy denied")

var workspaceRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]{1,63}$`)

// Actions checked on the request path.
const (
	ActionRunAgent      = "run_agent"
	ActionRunDebate     = "run_debate"
	ActionReadDatabases = "read_databases"
	ActionReadAgents    = "read_agents"
	ActionManageIndexes = "manage_indexes"
	ActionRunPlatform   = "run_platform"
)

// Decision is the outcome of a policy check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Engine is the runtime RBAC engine.
type Engine struct {
	rolePermissions map[string]map[string]bool
}

// NewEngine creates the engine with the built-in role table.
func NewEngine() *Engine {
	full := permSet(
		ActionRunAgent, ActionRunDebate, ActionReadDatabases, ActionReadAgents,
		ActionManageIndexes, ActionRunPlatform,
	)
	return &Engine{
		rolePermissions: map[string]map[string]bool{
			"admin":  full,
			"user":   full,
			"viewer": permSet(ActionReadDatabases, ActionReadAgents),
		},
	}
}

func permSet(actions ...string) map[string]bool {
	set := make(map[string]bool, len(actions))
	for _, a := range actions {
		set[a] = true
	}
	return set
}

// ValidateWorkspace checks the workspace id format.
func (e *Engine) ValidateWorkspace(workspaceID string) Decision {
	if workspaceID == "" {
		return Decision{Allowed: false, Reason: "workspace_id is required"}
	}
	if !workspaceRe.MatchString(workspaceID) {
		return Decision{Allowed: false, Reason: "invalid workspace_id format"}
	}
	return Decision{Allowed: true, Reason: "ok"}
}

// Authorize checks workspace format first, then the role's permission for
// the action. Unknown roles have no permissions.
func (e *Engine) Authorize(role, action, workspaceID string) Decision {
	if ws := e.ValidateWorkspace(workspaceID); !ws.Allowed {
		return ws
	}
	if !e.rolePermissions[role][action] {
		return Decision{Allowed: false, Reason: fmt.Sprintf("role %q not allowed for action %q", role, action)}
	}
	return Decision{Allowed: true, Reason: "ok"}
}

// Require returns ErrDenied (wrapped with the reason) when the check fails.
func (e *Engine) Require(role, action, workspaceID string) error {
	if d := e.Authorize(role, action, workspaceID); !d.Allowed {
		return fmt.Errorf("%w: %s", ErrDenied, d.Reason)
	}
	return nil
}
