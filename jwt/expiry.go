package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoExpiry is returned when the token is not a JWT or carries no exp claim.
var ErrNoExpiry = errors.New("jwt: token has no expiry")

var parser = jwt.NewParser()

// ExpiresAt returns the exp claim of an unverified JWT.
func ExpiresAt(token string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, errors.Join(ErrNoExpiry, err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// ExpiresIn returns the remaining lifetime of token relative to now. An already
// expired token yields zero, not an error.
func ExpiresIn(token string, now time.Time) (time.Duration, error) {
	exp, err := ExpiresAt(token)
	if err != nil {
		return 0, err
	}
	remaining := exp.Sub(now)
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}
