// Package auth holds the portal's side of authentication: the browser
// session cookie, bearer-token inspection and the password rules.
//
// CREDENTIAL FLOW OVERVIEW:
//  1. Every browser gets an opaque "sid" cookie. It is a random xid, not a
//     token: it carries no claims and is never signed.
//  2. The sid keys a row in the session store holding the credentials the
//     remote API issued at login (its cookies and, sometimes, a bearer JWT).
//  3. The gateway replays those credentials on every upstream call.
//
// The remote API signs its own JWTs with a key the portal does not have, so
// the portal never verifies them. It only reads the "exp" claim to stop
// keeping a session row around after the upstream token has lapsed.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoExpiry is returned when a token carries no usable "exp" claim.
var ErrNoExpiry = errors.New("auth: token has no expiry")

// BearerExpiry reads the "exp" claim of a JWT without verifying its
// signature.
//
// WHY UNVERIFIED?
// The token was handed to us by the remote API over its own TLS connection
// and is only ever sent back to that same API, which does verify it. The
// expiry read here is advisory: it bounds how long the session row lives.
func BearerExpiry(token string) (time.Time, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("auth: parsing bearer token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// SessionExpiry returns when a session row holding token should expire:
// now+ttl, cut short to the token's own expiry when that is sooner.
// Tokens that cannot be read, or that are already past expiry, leave the
// ttl in charge; the remote API will answer 401 and the row is cleared then.
func SessionExpiry(token string, now time.Time, ttl time.Duration) time.Time {
	limit := now.Add(ttl)
	if token == "" {
		return limit
	}
	exp, err := BearerExpiry(token)
	if err != nil || !exp.After(now) {
		return limit
	}
	if exp.Before(limit) {
		return exp
	}
	return limit
}
