package auth

import (
	"errors"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// ErrWeakPassword is returned when a password fails the policy: at least 8
// characters with one upper, one lower and one digit.
var ErrWeakPassword = errors.New("password must be at least 8 characters with upper, lower and digit")

// dummyHash is a valid bcrypt hash of a random string. It is compared
// against when login hits an unknown email so the response time does not
// reveal whether the account exists.
const dummyHash = "$2a$12$K8gHcfKGFPSQuAJVMxFg9eZ4X0r1uGqLhQyTn0eOMcBhF9EyuC8iS"

// CheckPolicy validates a candidate password against the policy.
func CheckPolicy(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return ErrWeakPassword
	}
	return nil
}

// HashPassword returns a bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares a bcrypt hash and a plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// DummyCompare burns the same time as a failed VerifyPassword. Called on the
// no-such-account path of login.
func DummyCompare(plain string) {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(plain))
}
