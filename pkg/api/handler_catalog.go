package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/seocho-project/graphqa/pkg/policy"
)

// databasesHandler handles GET /databases: the user-facing database names,
// system databases and the trace store excluded.
func (s *Server) databasesHandler(c *echo.Context) error {
	if err := s.requireRead(c, policy.ActionReadDatabases); err != nil {
		return s.writeError(c, err, nil)
	}
	return c.JSON(http.StatusOK, &databasesResponse{Databases: s.registry.ListUserDBs()})
}

// agentsHandler handles GET /agents: the database-bound agents with their
// current readiness.
func (s *Server) agentsHandler(c *echo.Context) error {
	if err := s.requireRead(c, policy.ActionReadAgents); err != nil {
		return s.writeError(c, err, nil)
	}
	summary := s.agents.Readiness(c.Request().Context(), nil)
	return c.JSON(http.StatusOK, &agentsResponse{
		DebateState: summary.DebateState,
		Agents:      summary.Statuses,
	})
}

// requireRead authorizes a read-only catalog endpoint. Role and workspace
// come from query parameters so viewers can browse without a body.
func (s *Server) requireRead(c *echo.Context, action string) error {
	role := c.QueryParam("role")
	if role == "" {
		role = "user"
	}
	workspace := c.QueryParam("workspace_id")
	if workspace == "" {
		workspace = s.workspace
	}
	return s.policy.Require(role, action, workspace)
}
