package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/procurehub/marketplace-api/internal/model"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("secret", "42", "buyer", model.PrincipalUser, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := VerifyAccessToken("secret", tok.Token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "42" || claims.Role != "buyer" || claims.UserType != model.PrincipalUser {
		t.Errorf("claims = %+v", claims)
	}
}

func TestVerifyAccessTokenExpired(t *testing.T) {
	tok, err := NewAccessToken("secret", "42", "buyer", model.PrincipalUser, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := VerifyAccessToken("secret", tok.Token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyAccessTokenWrongSecret(t *testing.T) {
	tok, _ := NewAccessToken("secret", "42", "buyer", model.PrincipalUser, time.Minute)
	if _, err := VerifyAccessToken("other", tok.Token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerifyAccessTokenGarbage(t *testing.T) {
	if _, err := VerifyAccessToken("secret", "not.a.jwt"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestNewRefreshTokenEntropy(t *testing.T) {
	a, err := NewRefreshToken(time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := NewRefreshToken(time.Hour)
	if len(a.Raw) != 80 { // 40 random bytes, hex-encoded
		t.Errorf("raw length = %d", len(a.Raw))
	}
	if a.Raw == b.Raw {
		t.Error("two refresh tokens are identical")
	}
}

func TestHashTokenStable(t *testing.T) {
	if HashToken("abc") != HashToken("abc") {
		t.Error("hash not deterministic")
	}
	if HashToken("abc") == HashToken("abd") {
		t.Error("distinct tokens collide")
	}
	if len(HashToken("abc")) != 64 {
		t.Error("expected hex sha256 digest")
	}
}

func TestNewResetToken(t *testing.T) {
	raw, hash, err := NewResetToken()
	if err != nil {
		t.Fatal(err)
	}
	if HashToken(raw) != hash {
		t.Error("returned hash does not match the raw token")
	}
}
