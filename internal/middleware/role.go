package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireRole rejects authenticated requests whose role claim is not in the
// allowlist. Must run after JWTAuth.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := allowed[PrincipalRole(c)]; !ok {
				return errJSON(c, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
			}
			return next(c)
		}
	}
}
