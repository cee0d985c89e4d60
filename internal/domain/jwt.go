package domain

import (
	"github.com/golang-jwt/jwt/v5"
)

// PlannaClaims are the HMAC token claims accepted when Firebase is not configured.
// UserID falls back to the registered subject when empty.
type PlannaClaims struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the caller identity carried by the token
func (c *PlannaClaims) Identity() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}
