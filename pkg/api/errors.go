package api

import (
	"errors"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/seocho-project/graphqa/pkg/debate"
	"github.com/seocho-project/graphqa/pkg/dispatch"
	"github.com/seocho-project/graphqa/pkg/graph"
	"github.com/seocho-project/graphqa/pkg/models"
	"github.com/seocho-project/graphqa/pkg/policy"
	"github.com/seocho-project/graphqa/pkg/registry"
	"github.com/seocho-project/graphqa/pkg/trace"
)

// Stable error codes of the response envelope.
const (
	codeInvalidIdentifier = "InvalidIdentifier"
	codeInvalidRequest    = "InvalidRequest"
	codeNotRegistered     = "NotRegistered"
	codePolicyDenied      = "PolicyDenied"
	codeBlocked           = "Blocked"
	codeTimeout           = "Timeout"
	codeInternal          = "Internal"
)

type errorResponse struct {
	ErrorCode  string       `json:"error_code"`
	Message    string       `json:"message"`
	RequestID  string       `json:"request_id"`
	TraceSteps []trace.Step `json:"trace_steps,omitempty"`
}

// writeError maps a service error to the envelope. A timed-out run still
// carries the trace recorded before the deadline, so result is passed
// through when the executor produced one.
func (s *Server) writeError(c *echo.Context, err error, result *models.RunResult) error {
	status, code := classifyError(err)

	resp := &errorResponse{
		ErrorCode: code,
		Message:   err.Error(),
		RequestID: requestIDFrom(c),
	}
	if result != nil {
		if result.RequestID != "" {
			resp.RequestID = result.RequestID
		}
		resp.TraceSteps = result.TraceSteps
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("unexpected error", "error", err)
		resp.Message = "internal server error"
	}
	return c.JSON(status, resp)
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, registry.ErrInvalidIdentifier):
		return http.StatusBadRequest, codeInvalidIdentifier
	case errors.Is(err, dispatch.ErrInvalidMode):
		return http.StatusBadRequest, codeInvalidRequest
	case errors.Is(err, registry.ErrNotRegistered):
		return http.StatusNotFound, codeNotRegistered
	case errors.Is(err, policy.ErrDenied):
		return http.StatusForbidden, codePolicyDenied
	case errors.Is(err, debate.ErrBlocked):
		return http.StatusServiceUnavailable, codeBlocked
	case errors.Is(err, dispatch.ErrTimeout):
		return http.StatusGatewayTimeout, codeTimeout
	}

	var gerr *graph.Error
	if errors.As(err, &gerr) {
		switch gerr.Kind {
		case graph.KindTimeout:
			return http.StatusGatewayTimeout, codeTimeout
		case graph.KindUnreachable:
			return http.StatusServiceUnavailable, codeBlocked
		case graph.KindForbidden, graph.KindSyntax:
			return http.StatusBadRequest, codeInvalidRequest
		}
	}
	return http.StatusInternalServerError, codeInternal
}

// badRequest writes a 400 envelope for malformed input that never reached
// the service layer.
func badRequest(c *echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, &errorResponse{
		ErrorCode: codeInvalidRequest,
		Message:   message,
		RequestID: requestIDFrom(c),
	})
}
