package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/procurehub/marketplace-api/internal/auth"
	"github.com/procurehub/marketplace-api/internal/model"
)

// Context keys populated by JWTAuth.
const (
	ContextUserID   = "user_id"
	ContextRole     = "role"
	ContextUserType = "user_type"
)

// JWTAuth validates a Bearer access token and stores the principal id, role
// and principal type on the context. Expired tokens get a distinct message so
// clients know to call refresh instead of re-authenticating.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return errJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			claims, err := auth.VerifyAccessToken(secret, raw)
			if err != nil {
				if errors.Is(err, auth.ErrTokenExpired) {
					return errJSON(c, http.StatusUnauthorized, "TOKEN_EXPIRED", "Access token expired")
				}
				return errJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid access token")
			}
			id, err := strconv.ParseUint(claims.Subject, 10, 64)
			if err != nil || id == 0 {
				return errJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid access token")
			}

			c.Set(ContextUserID, id)
			c.Set(ContextRole, claims.Role)
			c.Set(ContextUserType, claims.UserType)
			return next(c)
		}
	}
}

// PrincipalID returns the authenticated principal id, or 0 when the request
// is unauthenticated.
func PrincipalID(c echo.Context) uint64 {
	if v, ok := c.Get(ContextUserID).(uint64); ok {
		return v
	}
	return 0
}

// PrincipalRole returns the role claim set by JWTAuth.
func PrincipalRole(c echo.Context) string {
	if v, ok := c.Get(ContextRole).(string); ok {
		return v
	}
	return ""
}

// PrincipalUserType returns the principal type claim set by JWTAuth.
func PrincipalUserType(c echo.Context) model.PrincipalType {
	if v, ok := c.Get(ContextUserType).(model.PrincipalType); ok {
		return v
	}
	return ""
}

// errJSON writes the standard error envelope. Handlers have a richer helper;
// middleware keeps its own to avoid an import cycle.
func errJSON(c echo.Context, status int, code, message string) error {
	return c.JSON(status, echo.Map{
		"success":   false,
		"error":     message,
		"code":      code,
		"requestId": RequestIDFrom(c),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
