package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/seocho-project/graphqa/pkg/models"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusDegraded  = "degraded"
	healthStatusUnhealthy = "unhealthy"
)

// healthRuntimeHandler handles GET /health/runtime. It checks only the
// process's own runtime dependencies, so an orchestrator restart is never
// triggered by a single user database being down.
func (s *Server) healthRuntimeHandler(c *echo.Context) error {
	reqCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]HealthCheck)
	status := healthStatusHealthy

	if err := s.indexes.Ping(reqCtx, "system"); err != nil {
		status = healthStatusUnhealthy
		checks["graph"] = HealthCheck{Status: healthStatusUnhealthy, Message: err.Error()}
	} else {
		checks["graph"] = HealthCheck{Status: healthStatusHealthy}
	}

	httpStatus := http.StatusOK
	if status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	return c.JSON(httpStatus, &HealthResponse{Status: status, Checks: checks})
}

// healthBatchHandler handles GET /health/batch: per-database agent
// readiness across all user databases. Degraded databases keep the probe
// at 200; only a fully blocked pool reports unhealthy.
func (s *Server) healthBatchHandler(c *echo.Context) error {
	reqCtx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	summary := s.agents.Readiness(reqCtx, nil)

	status := healthStatusHealthy
	httpStatus := http.StatusOK
	switch summary.DebateState {
	case models.ReadinessDegraded:
		status = healthStatusDegraded
	case models.ReadinessBlocked:
		status = healthStatusUnhealthy
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, &batchHealthResponse{
		Status:      status,
		DebateState: summary.DebateState,
		Databases:   summary.Statuses,
	})
}
