// Package auth implements the identity and session service: credential
// hashing, token issuance and verification, rotating refresh tokens with
// reuse detection, and enumeration-safe password reset.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/procurehub/marketplace-api/internal/model"
	"github.com/procurehub/marketplace-api/internal/repository"
)

var (
	// ErrInvalidCredentials is returned for both unknown accounts and wrong
	// passwords so the two cases are indistinguishable at the HTTP layer.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidRefresh covers unknown, expired, revoked and reused refresh
	// tokens.
	ErrInvalidRefresh = errors.New("invalid refresh token")
	// ErrInvalidReset covers unknown and expired reset tokens; callers must
	// surface the same message for both.
	ErrInvalidReset = errors.New("invalid or expired reset token")
)

// UserStore is the slice of UserRepo the service needs.
type UserStore interface {
	Create(ctx context.Context, u model.User) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// VendorStore is the slice of VendorRepo the service needs.
type VendorStore interface {
	Create(ctx context.Context, v model.Vendor) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.Vendor, error)
	GetByID(ctx context.Context, id uint64) (model.Vendor, error)
	SetResetToken(ctx context.Context, vendorID uint64, hash string, expires *time.Time) error
	GetByResetHash(ctx context.Context, hash string) (model.Vendor, error)
	UpdatePassword(ctx context.Context, vendorID uint64, passwordHash string) error
}

// TokenStore is the slice of TokenRepo the service needs.
type TokenStore interface {
	Store(ctx context.Context, t model.RefreshToken) error
	GetByHash(ctx context.Context, hash string) (model.RefreshToken, error)
	Rotate(ctx context.Context, oldHash string, next model.RefreshToken, ip string) error
	Revoke(ctx context.Context, hash, ip, reason string) error
	RevokeAllForUser(ctx context.Context, userID uint64, ip, reason string) error
	RevokeAllForVendor(ctx context.Context, vendorID uint64, ip, reason string) error
}

// Mailer delivers password-reset mail. Implemented by service.Mailer.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, rawToken string) error
}

// TokenPair is what a successful login or refresh returns.
type TokenPair struct {
	Access  AccessToken
	Refresh RefreshToken
}

// Service bundles the identity and session operations. All dependencies are
// injected at startup.
type Service struct {
	Users   UserStore
	Vendors VendorStore
	Tokens  TokenStore
	Mail    Mailer
	Logger  *slog.Logger

	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int
}

// RegisterUser validates the password policy, hashes the password and
// persists a buyer or admin account.
func (s *Service) RegisterUser(ctx context.Context, u model.User, password string) (uint64, error) {
	if err := CheckPolicy(password); err != nil {
		return 0, err
	}
	hash, err := HashPassword(password, s.BcryptCost)
	if err != nil {
		return 0, err
	}
	u.PasswordHash = hash
	return s.Users.Create(ctx, u)
}

// RegisterVendor is RegisterUser for the vendor namespace.
func (s *Service) RegisterVendor(ctx context.Context, v model.Vendor, password string) (uint64, error) {
	if err := CheckPolicy(password); err != nil {
		return 0, err
	}
	hash, err := HashPassword(password, s.BcryptCost)
	if err != nil {
		return 0, err
	}
	v.PasswordHash = hash
	return s.Vendors.Create(ctx, v)
}

// LoginUser verifies credentials and issues a token pair. A dummy bcrypt
// compare runs on the unknown-account path to keep timing uniform.
func (s *Service) LoginUser(ctx context.Context, email, password, ip string) (model.User, TokenPair, error) {
	u, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			DummyCompare(password)
			return model.User{}, TokenPair{}, ErrInvalidCredentials
		}
		return model.User{}, TokenPair{}, err
	}
	if !VerifyPassword(u.PasswordHash, password) {
		return model.User{}, TokenPair{}, ErrInvalidCredentials
	}
	ptype := model.PrincipalUser
	if u.Role == model.RoleAdmin {
		ptype = model.PrincipalAdmin
	}
	pair, err := s.issuePair(ctx, principal{userID: &u.ID, role: string(u.Role), userType: ptype}, ip)
	return u, pair, err
}

// LoginVendor is LoginUser for the vendor namespace.
func (s *Service) LoginVendor(ctx context.Context, email, password, ip string) (model.Vendor, TokenPair, error) {
	v, err := s.Vendors.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			DummyCompare(password)
			return model.Vendor{}, TokenPair{}, ErrInvalidCredentials
		}
		return model.Vendor{}, TokenPair{}, err
	}
	if !VerifyPassword(v.PasswordHash, password) {
		return model.Vendor{}, TokenPair{}, ErrInvalidCredentials
	}
	pair, err := s.issuePair(ctx, principal{vendorID: &v.ID, role: "vendor", userType: model.PrincipalVendor}, ip)
	return v, pair, err
}

// Verify decodes an access token.
func (s *Service) Verify(raw string) (*Claims, error) {
	return VerifyAccessToken(s.JWTSecret, raw)
}

// Refresh exchanges an active refresh token for a new access+refresh pair,
// revoking the old token. Presenting an already-revoked token is treated as
// reuse: the whole family for that principal is revoked and the call fails.
func (s *Service) Refresh(ctx context.Context, raw, ip string) (TokenPair, error) {
	hash := HashToken(raw)
	stored, err := s.Tokens.GetByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, ErrInvalidRefresh
		}
		return TokenPair{}, err
	}
	if stored.Revoked {
		s.revokeFamily(ctx, stored, ip)
		return TokenPair{}, ErrInvalidRefresh
	}
	if !stored.Active(time.Now().UTC()) {
		return TokenPair{}, ErrInvalidRefresh
	}

	p, err := s.principalOf(ctx, stored)
	if err != nil {
		return TokenPair{}, err
	}
	next, err := NewRefreshToken(s.RefreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	err = s.Tokens.Rotate(ctx, hash, model.RefreshToken{
		TokenHash:   HashToken(next.Raw),
		UserID:      stored.UserID,
		VendorID:    stored.VendorID,
		UserType:    stored.UserType,
		ExpiresAt:   next.Exp,
		CreatedByIP: ip,
	}, ip)
	if err != nil {
		if errors.Is(err, repository.ErrRevoked) {
			// Lost a rotation race: same reuse posture as a revoked token.
			s.revokeFamily(ctx, stored, ip)
			return TokenPair{}, ErrInvalidRefresh
		}
		return TokenPair{}, err
	}

	access, err := NewAccessToken(s.JWTSecret, p.subject(), p.role, p.userType, s.AccessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: next}, nil
}

// Revoke marks one refresh token revoked. Idempotent; unknown tokens are
// ignored so logout never leaks token validity.
func (s *Service) Revoke(ctx context.Context, raw, ip string) error {
	return s.Tokens.Revoke(ctx, HashToken(raw), ip, "Revoked by logout")
}

// RevokeAllForUser terminates every session of a user principal.
func (s *Service) RevokeAllForUser(ctx context.Context, userID uint64, ip string) error {
	return s.Tokens.RevokeAllForUser(ctx, userID, ip, "Revoked by logout")
}

// RevokeAllForVendor terminates every session of a vendor principal.
func (s *Service) RevokeAllForVendor(ctx context.Context, vendorID uint64, ip string) error {
	return s.Tokens.RevokeAllForVendor(ctx, vendorID, ip, "Revoked by logout")
}

// RequestVendorPasswordReset generates a reset token for the vendor holding
// the email, stores its hash with a one-hour expiry and mails the raw token.
// Unknown emails return nil so responses cannot be used for enumeration. A
// mail failure clears the stored hash and is surfaced to the caller.
func (s *Service) RequestVendorPasswordReset(ctx context.Context, email string) error {
	v, err := s.Vendors.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	raw, hash, err := NewResetToken()
	if err != nil {
		return err
	}
	expires := time.Now().UTC().Add(time.Hour)
	if err := s.Vendors.SetResetToken(ctx, v.ID, hash, &expires); err != nil {
		return err
	}
	if err := s.Mail.SendPasswordReset(ctx, v.Email, raw); err != nil {
		_ = s.Vendors.SetResetToken(ctx, v.ID, "", nil)
		return fmt.Errorf("send reset mail: %w", err)
	}
	return nil
}

// VerifyResetToken checks whether a raw reset token is known and unexpired.
func (s *Service) VerifyResetToken(ctx context.Context, raw string) error {
	if _, err := s.Vendors.GetByResetHash(ctx, HashToken(raw)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidReset
		}
		return err
	}
	return nil
}

// ResetVendorPassword validates the policy and the reset token, replaces the
// password, clears reset state, revokes existing sessions and issues fresh
// credentials.
func (s *Service) ResetVendorPassword(ctx context.Context, rawToken, newPassword, ip string) (model.Vendor, TokenPair, error) {
	if err := CheckPolicy(newPassword); err != nil {
		return model.Vendor{}, TokenPair{}, err
	}
	v, err := s.Vendors.GetByResetHash(ctx, HashToken(rawToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Vendor{}, TokenPair{}, ErrInvalidReset
		}
		return model.Vendor{}, TokenPair{}, err
	}
	hash, err := HashPassword(newPassword, s.BcryptCost)
	if err != nil {
		return model.Vendor{}, TokenPair{}, err
	}
	if err := s.Vendors.UpdatePassword(ctx, v.ID, hash); err != nil {
		return model.Vendor{}, TokenPair{}, err
	}
	_ = s.Tokens.RevokeAllForVendor(ctx, v.ID, ip, "Password reset")
	pair, err := s.issuePair(ctx, principal{vendorID: &v.ID, role: "vendor", userType: model.PrincipalVendor}, ip)
	return v, pair, err
}

type principal struct {
	userID   *uint64
	vendorID *uint64
	role     string
	userType model.PrincipalType
}

func (p principal) subject() string {
	if p.userID != nil {
		return strconv.FormatUint(*p.userID, 10)
	}
	if p.vendorID != nil {
		return strconv.FormatUint(*p.vendorID, 10)
	}
	return ""
}

func (s *Service) issuePair(ctx context.Context, p principal, ip string) (TokenPair, error) {
	access, err := NewAccessToken(s.JWTSecret, p.subject(), p.role, p.userType, s.AccessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := NewRefreshToken(s.RefreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	err = s.Tokens.Store(ctx, model.RefreshToken{
		TokenHash:   HashToken(refresh.Raw),
		UserID:      p.userID,
		VendorID:    p.vendorID,
		UserType:    p.userType,
		ExpiresAt:   refresh.Exp,
		CreatedByIP: ip,
	})
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

func (s *Service) principalOf(ctx context.Context, t model.RefreshToken) (principal, error) {
	switch {
	case t.UserID != nil:
		u, err := s.Users.GetByID(ctx, *t.UserID)
		if err != nil {
			return principal{}, err
		}
		return principal{userID: t.UserID, role: string(u.Role), userType: t.UserType}, nil
	case t.VendorID != nil:
		if _, err := s.Vendors.GetByID(ctx, *t.VendorID); err != nil {
			return principal{}, err
		}
		return principal{vendorID: t.VendorID, role: "vendor", userType: model.PrincipalVendor}, nil
	}
	return principal{}, ErrInvalidRefresh
}

func (s *Service) revokeFamily(ctx context.Context, t model.RefreshToken, ip string) {
	var err error
	switch {
	case t.UserID != nil:
		err = s.Tokens.RevokeAllForUser(ctx, *t.UserID, ip, "Reuse detected")
	case t.VendorID != nil:
		err = s.Tokens.RevokeAllForVendor(ctx, *t.VendorID, ip, "Reuse detected")
	}
	if err != nil {
		s.Logger.Error("revoke token family failed", "error", err)
	}
	s.Logger.Warn("refresh token reuse detected", "user_type", string(t.UserType))
}
