package auth

import "mindmoney/internal/domain/models"

// TokenVerifier defines the interface for bearer token verification.
// The identity provider is optional for this service: when none is
// configured a nil verifier is wired and every caller is anonymous.
type TokenVerifier interface {
	// VerifyToken validates a JWT token string and returns the parsed
	// claims. Returns an error if the token is invalid, expired, or has
	// an invalid signature.
	VerifyToken(tokenString string) (*models.IdentityClaims, error)

	// Close releases any resources held by the verifier.
	Close() error
}
