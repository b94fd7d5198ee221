package api

import (
	"net/http"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"
)

const requestIDHeader = "X-Request-ID"

// requestID returns middleware that tags every request with an id, reusing
// the caller's X-Request-ID when present. The id travels on the response
// header so handlers and the error envelope read it from there.
func requestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			id := c.Request().Header.Get(requestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			c.Response().Header().Set(requestIDHeader, id)
			return next(c)
		}
	}
}

func requestIDFrom(c *echo.Context) string {
	return c.Response().Header().Get(requestIDHeader)
}

// securityHeaders returns middleware that sets standard security response headers.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			return next(c)
		}
	}
}

// concurrencyLimit returns middleware that caps in-flight requests, shedding
// load with 503 instead of queueing.
func concurrencyLimit(limit int) echo.MiddlewareFunc {
	slots := make(chan struct{}, limit)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			select {
			case slots <- struct{}{}:
				defer func() { <-slots }()
				return next(c)
			default:
				return c.JSON(http.StatusServiceUnavailable, &errorResponse{
					ErrorCode: codeBlocked,
					Message:   "server is at capacity, retry later",
					RequestID: requestIDFrom(c),
				})
			}
		}
	}
}
