package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims are the claims carried by tokens the booking service issues.
type JWTClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the caller id, falling back to the registered subject.
func (c *JWTClaims) Identity() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.RegisteredClaims.Subject
}
