package handler

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/procurehub/marketplace-api/internal/auth"
	"github.com/procurehub/marketplace-api/internal/model"
	"github.com/procurehub/marketplace-api/internal/repository"
)

// AuthHandler exposes the buyer/admin account endpoints.
type AuthHandler struct {
	Auth *auth.Service
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Company  string `json:"company"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// userView is a User stripped for responses. The password hash never leaves
// the store.
type userView struct {
	ID        uint64    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Company   string    `json:"company,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func viewUser(u model.User) userView {
	return userView{
		ID: u.ID, Email: u.Email, Name: u.Name,
		Company: u.Company, Role: string(u.Role), CreatedAt: u.CreatedAt,
	}
}

type tokenView struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func viewPair(p auth.TokenPair) tokenView {
	return tokenView{
		AccessToken:  p.Access.Token,
		RefreshToken: p.Refresh.Raw,
		ExpiresAt:    p.Access.Exp,
	}
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// Register creates a buyer account. Admin accounts are provisioned out of
// band, so a requested admin role is rejected here.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", "Malformed request body")
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || !validEmail(req.Email) {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", "Name and a valid email are required")
	}
	role := model.RoleBuyer
	if req.Role != "" && req.Role != string(model.RoleBuyer) {
		return respondErr(c, http.StatusForbidden, "FORBIDDEN", "Role not available for self-registration")
	}

	id, err := h.Auth.RegisterUser(c.Request().Context(), model.User{
		Email:   req.Email,
		Name:    req.Name,
		Company: req.Company,
		Role:    role,
	}, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrWeakPassword):
			return respondErr(c, http.StatusBadRequest, "WEAK_PASSWORD", err.Error())
		case errors.Is(err, repository.ErrEmailExists):
			return respondErr(c, http.StatusConflict, "EMAIL_EXISTS", "Email already registered")
		}
		return err
	}
	return respond(c, http.StatusCreated, echo.Map{"id": id})
}

// Login verifies credentials and returns a token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", "Malformed request body")
	}
	u, pair, err := h.Auth.LoginUser(c.Request().Context(), req.Email, req.Password, c.RealIP())
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return respondErr(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
		}
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"user": viewUser(u), "tokens": viewPair(pair)})
}

// Refresh rotates a refresh token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", "refreshToken is required")
	}
	pair, err := h.Auth.Refresh(c.Request().Context(), req.RefreshToken, c.RealIP())
	if err != nil {
		if errors.Is(err, auth.ErrInvalidRefresh) {
			return respondErr(c, http.StatusUnauthorized, "INVALID_REFRESH", "Invalid refresh token")
		}
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"tokens": viewPair(pair)})
}

// Logout revokes the presented refresh token. Always succeeds so responses
// never leak whether the token was valid.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", "refreshToken is required")
	}
	if err := h.Auth.Revoke(c.Request().Context(), req.RefreshToken, c.RealIP()); err != nil {
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"message": "Logged out"})
}

// Verify decodes the presented access token and returns its claims.
func (h *AuthHandler) Verify(c echo.Context) error {
	header := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return respondErr(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
	}
	claims, err := h.Auth.Verify(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return respondErr(c, http.StatusUnauthorized, "TOKEN_EXPIRED", "Access token expired")
		}
		return respondErr(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid access token")
	}
	return respond(c, http.StatusOK, echo.Map{
		"sub":      claims.Subject,
		"role":     claims.Role,
		"userType": claims.UserType,
		"exp":      claims.ExpiresAt.Time,
	})
}
