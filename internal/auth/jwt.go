package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Predefined JWT errors.
var (
	ErrMalformedToken = errors.New("malformed access token")
	ErrNoExpiry       = errors.New("access token has no expiry")
)

// ExpiresAt reads the exp claim of a JWT without verifying its signature.
// The signing key belongs to the datacenter; the client only uses the claim
// to avoid a verification round trip for a token that has already expired.
func ExpiresAt(token string) (time.Time, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %s", ErrMalformedToken, err.Error())
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// Expired reports whether token carries an exp claim that lies before now.
// Tokens that are not JWTs or carry no exp claim are never reported expired;
// only the verification endpoint can judge them.
func Expired(token string, now time.Time) bool {
	exp, err := ExpiresAt(token)
	if err != nil {
		return false
	}
	return !now.Before(exp)
}
