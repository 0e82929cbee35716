// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credential is the live bearer credential. Tokens that are not JWTs stay
// opaque and carry empty Claims.
type Credential struct {
	Token    string
	Claims   Claims
	Obtained time.Time
}

// Claims are the display fields decoded from a JWT token. They are never
// verified and never used for authorization decisions.
type Claims struct {
	Subject   string
	Email     string
	Name      string
	ExpiresAt time.Time // zero when the token has no exp
}

// Expired reports whether the token carries an exp claim in the past.
func (c Credential) Expired(now time.Time) bool {
	return !c.Claims.ExpiresAt.IsZero() && !now.Before(c.Claims.ExpiresAt)
}

// DisplayName returns the best label for the signed-in user.
func (c Credential) DisplayName() string {
	switch {
	case c.Claims.Name != "":
		return c.Claims.Name
	case c.Claims.Email != "":
		return c.Claims.Email
	case c.Claims.Subject != "":
		return c.Claims.Subject
	default:
		return "signed in"
	}
}

// newCredential wraps token, decoding JWT claims when it has that shape.
func newCredential(token string, now time.Time) Credential {
	return Credential{Token: token, Claims: decodeClaims(token), Obtained: now}
}

func decodeClaims(token string) Claims {
	if strings.Count(token, ".") != 2 {
		return Claims{}
	}
	claims := jwt.MapClaims{}
	// SECURITY: the signature is the server's business; claims are display-only.
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Claims{}
	}

	var out Claims
	out.Subject, _ = claims.GetSubject()
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	out.Email = stringClaim(claims, "email")
	out.Name = stringClaim(claims, "name")
	if out.Email == "" && strings.Contains(out.Subject, "@") {
		out.Email = out.Subject
	}
	return out
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
