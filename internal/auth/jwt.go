package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry reads the exp claim of an access token without verifying its
// signature. ok is false for opaque tokens or tokens without exp.
func TokenExpiry(tokenString string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// AccessTokenExpired reports whether tokenString expires within leeway of now.
// Tokens whose expiry cannot be read are assumed valid; the backend will
// answer 401 if they are not.
func AccessTokenExpired(tokenString string, leeway time.Duration, now time.Time) bool {
	exp, ok := TokenExpiry(tokenString)
	if !ok {
		return false
	}
	return !now.Add(leeway).Before(exp)
}
