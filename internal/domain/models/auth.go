package models

import "github.com/golang-jwt/jwt/v5"

// IdentityClaims represents the JWT claims issued by the identity
// provider. Only the subject is load-bearing: it becomes the caller's
// user id. The store behaves identically when no identity is present.
type IdentityClaims struct {
	jwt.RegisteredClaims
	Email       string `json:"email"`
	Role        string `json:"role"` // "authenticated" or "anon"
	SessionID   string `json:"session_id"`
	IsAnonymous bool   `json:"is_anonymous"`
}

// GetUserID returns the user ID from the JWT subject claim.
func (c *IdentityClaims) GetUserID() string {
	return c.Subject
}
