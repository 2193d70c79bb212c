// Package middleware holds the HTTP middleware chain: request identity,
// access logging, token verification, role enforcement and rate limiting.
package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// HeaderRequestID is echoed back on every response.
const HeaderRequestID = "X-Request-ID"

// ContextRequestID is the echo context key holding the request id.
const ContextRequestID = "request_id"

// RequestID attaches a request id to every request. An inbound X-Request-ID
// is kept so ids correlate across services; otherwise a fresh UUID is issued.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(HeaderRequestID)
			if id == "" || len(id) > 64 {
				id = uuid.NewString()
			}
			c.Set(ContextRequestID, id)
			c.Response().Header().Set(HeaderRequestID, id)
			return next(c)
		}
	}
}

// RequestIDFrom returns the request id set by RequestID, or "" outside the
// chain.
func RequestIDFrom(c echo.Context) string {
	if v, ok := c.Get(ContextRequestID).(string); ok {
		return v
	}
	return ""
}
