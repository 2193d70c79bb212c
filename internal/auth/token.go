package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/procurehub/marketplace-api/internal/model"
)

// ErrTokenExpired and ErrTokenInvalid split verification failures so the
// HTTP layer can report 401 with the right message.
var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims is the access-token claim set: subject principal id, role, and the
// principal table it belongs to.
type Claims struct {
	Role     string              `json:"role"`
	UserType model.PrincipalType `json:"userType"`
	jwt.RegisteredClaims
}

// AccessToken is a signed JWT along with its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// RefreshToken carries the raw opaque token returned once to the client and
// its expiry. Only the SHA-256 hash is persisted.
type RefreshToken struct {
	Raw string
	Exp time.Time
}

// NewAccessToken builds and signs an HS256 JWT for a principal.
func NewAccessToken(secret, subject, role string, userType model.PrincipalType, ttl time.Duration) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := &Claims{
		Role:     role,
		UserType: userType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// VerifyAccessToken parses and validates an access token, distinguishing
// expiry from every other failure.
func VerifyAccessToken(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !tok.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// NewRefreshToken returns an opaque random token (40 bytes, hex-encoded) and
// its expiry.
func NewRefreshToken(ttl time.Duration) (RefreshToken, error) {
	raw, err := randomHex(40)
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{Raw: raw, Exp: time.Now().UTC().Add(ttl)}, nil
}

// NewResetToken returns a raw password-reset token and the SHA-256 hash that
// is stored on the principal.
func NewResetToken() (raw, hash string, err error) {
	raw, err = randomHex(32)
	if err != nil {
		return "", "", err
	}
	return raw, HashToken(raw), nil
}

// HashToken returns the hex SHA-256 digest of a raw token. Applied to both
// refresh and reset tokens before they touch the store.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
