package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/seocho-project/graphqa/pkg/dispatch"
	"github.com/seocho-project/graphqa/pkg/platform"
	"github.com/seocho-project/graphqa/pkg/policy"
)

// chatSendHandler handles POST /platform/chat/send: it binds the run to a
// chat session, executes the requested mode, and shapes the result for the
// frontend.
func (s *Server) chatSendHandler(c *echo.Context) error {
	var req chatSendRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.SessionID == "" {
		return badRequest(c, "session_id is required")
	}
	if req.Message == "" {
		return badRequest(c, "message is required")
	}
	mode := req.Mode
	if mode == "" {
		mode = dispatch.ModeSemantic
	}

	role := req.Role
	if role == "" {
		role = "user"
	}
	workspace := req.WorkspaceID
	if workspace == "" {
		workspace = s.workspace
	}
	if err := s.policy.Require(role, policy.ActionRunPlatform, workspace); err != nil {
		return s.writeError(c, err, nil)
	}

	s.sessions.Append(req.SessionID, "user", req.Message, nil)

	result, err := s.executor.Execute(c.Request().Context(), dispatch.Request{
		Question:    req.Message,
		Databases:   req.Databases,
		Mode:        mode,
		WorkspaceID: req.WorkspaceID,
		Role:        req.Role,
	})
	if err != nil {
		return s.writeError(c, err, result)
	}

	payload := platform.BuildUIPayload(mode, result)
	s.sessions.Append(req.SessionID, "assistant", result.Answer, map[string]any{
		"mode":       mode,
		"request_id": result.RequestID,
	})

	return c.JSON(http.StatusOK, &chatSendResponse{
		AssistantMessage: result.Answer,
		TraceSteps:       result.TraceSteps,
		UIPayload:        payload,
		RuntimePayload:   result,
		RuntimeControl:   payload.RuntimeControl,
		FallbackFrom:     payload.FallbackFrom,
	})
}
