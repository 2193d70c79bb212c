package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/procurehub/marketplace-api/internal/auth"
	"github.com/procurehub/marketplace-api/internal/model"
)

const testSecret = "unit-test-secret"

func runJWT(t *testing.T, header string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var captured echo.Context
	h := JWTAuth(testSecret)(func(c echo.Context) error {
		captured = c
		return c.NoContent(http.StatusOK)
	})
	_ = h(c)
	if captured == nil {
		captured = c
	}
	return rec, captured
}

func TestJWTAuthSetsPrincipal(t *testing.T) {
	tok, err := auth.NewAccessToken(testSecret, "42", "vendor", model.PrincipalVendor, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	rec, c := runJWT(t, "Bearer "+tok.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if PrincipalID(c) != 42 {
		t.Errorf("principal id = %d", PrincipalID(c))
	}
	if PrincipalRole(c) != "vendor" {
		t.Errorf("role = %q", PrincipalRole(c))
	}
	if PrincipalUserType(c) != model.PrincipalVendor {
		t.Errorf("user type = %q", PrincipalUserType(c))
	}
}

func TestJWTAuthMissingHeader(t *testing.T) {
	rec, _ := runJWT(t, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "UNAUTHORIZED") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestJWTAuthExpiredToken(t *testing.T) {
	tok, err := auth.NewAccessToken(testSecret, "7", "buyer", model.PrincipalUser, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	rec, _ := runJWT(t, "Bearer "+tok.Token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "TOKEN_EXPIRED") {
		t.Errorf("expired token should carry its own code: %s", rec.Body.String())
	}
}

func TestJWTAuthWrongSecret(t *testing.T) {
	tok, err := auth.NewAccessToken("other-secret", "7", "buyer", model.PrincipalUser, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	rec, _ := runJWT(t, "Bearer "+tok.Token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	h := RequireRole("admin")(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(ContextRole, "buyer")
	_ = h(c)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("buyer should be rejected, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.Set(ContextRole, "admin")
	_ = h(c)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin should pass, got %d", rec.Code)
	}
}
