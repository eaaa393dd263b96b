package jwt

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// TokenTypeAccess is the token_type claim carried by access tokens.
const TokenTypeAccess = "access"

var (
	ErrMalformed    = errors.New("token malformed")
	ErrBadSignature = errors.New("token signature invalid")
	ErrExpired      = errors.New("token expired")
)

// AccessClaims are the claims of a self-issued access token.
type AccessClaims struct {
	TokenType string `json:"token_type"`
	jwtlib.RegisteredClaims
}

// UserID returns the subject of the token.
func (c *AccessClaims) UserID() string {
	return c.Subject
}

// ExpiresAtTime returns the exp claim, or the zero time when absent.
func (c *AccessClaims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// IssuedAtTime returns the iat claim, or the zero time when absent.
func (c *AccessClaims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}
