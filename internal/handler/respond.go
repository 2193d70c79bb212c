// Package handler implements the HTTP endpoints. Handlers hold their
// dependencies as struct fields injected at startup and speak the uniform
// response envelope: successes wrap data under success=true, errors carry a
// machine code, the request id and a timestamp.
package handler

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/procurehub/marketplace-api/internal/middleware"
)

func respond(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, echo.Map{"success": true, "data": data})
}

func respondErr(c echo.Context, status int, code, message string) error {
	return c.JSON(status, echo.Map{
		"success":   false,
		"error":     message,
		"code":      code,
		"requestId": middleware.RequestIDFrom(c),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// errID builds a correlation id for server-side error logs.
func errID() string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("err_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}

// ErrorHandler is the pipeline tail: anything a handler returns as an error
// (rather than writing a response itself) lands here and is mapped onto the
// envelope. Internal errors are logged with an error id; in production the
// body carries only the id, never the underlying message.
func ErrorHandler(logger *slog.Logger, production bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := "Internal server error"
		code := "INTERNAL"

		if he, ok := err.(*echo.HTTPError); ok {
			status = he.Code
			if m, ok := he.Message.(string); ok {
				message = m
			}
			switch status {
			case http.StatusNotFound:
				code = "NOT_FOUND"
			case http.StatusMethodNotAllowed:
				code = "METHOD_NOT_ALLOWED"
			case http.StatusRequestEntityTooLarge:
				code = "PAYLOAD_TOO_LARGE"
			case http.StatusUnauthorized:
				code = "UNAUTHORIZED"
			case http.StatusForbidden:
				code = "FORBIDDEN"
			}
		}

		if status >= http.StatusInternalServerError {
			id := errID()
			logger.Error("request failed",
				"error", err,
				"error_id", id,
				"request_id", middleware.RequestIDFrom(c),
				"path", c.Request().URL.Path,
			)
			if production {
				message = "Internal server error (" + id + ")"
			} else {
				message = err.Error()
			}
		}
		_ = respondErr(c, status, code, message)
	}
}
