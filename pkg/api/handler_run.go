package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/seocho-project/graphqa/pkg/dispatch"
)

// runAgentHandler handles POST /run_agent, the legacy single-route path.
func (s *Server) runAgentHandler(c *echo.Context) error {
	return s.run(c, dispatch.ModeRouter)
}

// runSemanticHandler handles POST /run_agent_semantic.
func (s *Server) runSemanticHandler(c *echo.Context) error {
	return s.run(c, dispatch.ModeSemantic)
}

// runDebateHandler handles POST /run_debate.
func (s *Server) runDebateHandler(c *echo.Context) error {
	return s.run(c, dispatch.ModeDebate)
}

func (s *Server) run(c *echo.Context, mode string) error {
	var req runRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Query == "" {
		return badRequest(c, "query is required")
	}

	result, err := s.executor.Execute(c.Request().Context(), dispatch.Request{
		Question:    req.Query,
		Databases:   req.Databases,
		Mode:        mode,
		WorkspaceID: req.WorkspaceID,
		Role:        req.Role,
		Overrides:   toOverrides(req.EntityOverrides),
	})
	if err != nil {
		return s.writeError(c, err, result)
	}
	return c.JSON(http.StatusOK, result)
}
