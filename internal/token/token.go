package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role constants used by the back-office. Comparison is case-sensitive.
const (
	RoleAdmin   = "ADMIN"
	RoleEditor  = "EDITOR"
	RoleSupport = "SUPPORT"
)

// ErrTokenMalformed is returned when a token cannot be decoded (wrong segment
// count, invalid encoding, or unparsable payload).
var ErrTokenMalformed = errors.New("token is malformed")

// Claims represents the decoded access token payload. Roles are carried under
// the realm_access claim, matching what the identity provider issues.
type Claims struct {
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
	jwt.RegisteredClaims
}

// Decode parses an access token payload without verifying its signature.
// The client never holds the signing key; the token is trusted because it
// came from the identity provider over TLS. Server-side validation is the
// only authority on token authenticity.
func Decode(raw string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	return claims, nil
}

// Roles returns the claimed roles in the order the token lists them.
func (c *Claims) Roles() []string {
	return c.RealmAccess.Roles
}

// HasRole checks if the token claims a specific role
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.RealmAccess.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole checks if the token claims at least one of the given roles
func (c *Claims) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if c.HasRole(role) {
			return true
		}
	}
	return false
}

// IsAdmin checks for the distinguished admin role
func (c *Claims) IsAdmin() bool {
	return c.HasRole(RoleAdmin)
}

// Expired reports whether the exp claim has passed. Tokens without an exp
// claim are treated as non-expiring.
func (c *Claims) Expired(now time.Time) bool {
	if c.RegisteredClaims.ExpiresAt == nil {
		return false
	}
	return c.RegisteredClaims.ExpiresAt.Time.Before(now)
}
