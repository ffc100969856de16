package auth

import (
	"context"
	"time"
)

// TokenService issues and validates bearer tokens for job clients.
// Clients are other services or operators dispatching generation jobs,
// identified by the token subject.
type TokenService interface {
	// GenerateToken creates a signed token for subject valid for lifetime.
	GenerateToken(ctx context.Context, subject string, lifetime time.Duration) (string, error)

	// ValidateToken validates tokenString and extracts its claims.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims is the validated content of a client token.
type Claims struct {
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
