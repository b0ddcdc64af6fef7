package api

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpired reports whether the JWT access token's exp claim is in the
// past. The signature is deliberately not verified — the server is the only
// party that validates tokens; the client only needs the expiry timestamp to
// decide whether a refresh round-trip is worthwhile.
//
// A token that cannot be parsed is reported as expired, forcing a refresh.
// A token without an exp claim is reported as valid, matching servers that
// issue non-expiring tokens.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}

	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return true
	}

	if exp == nil {
		return false
	}

	return exp.Before(now)
}
