package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/algelab-auth/token/keys"
)

// Creator handles access token creation
type Creator struct {
	signer  keys.Signer
	issuer  string
	expiry  time.Duration
	nowFunc func() time.Time
}

// NewCreator creates a new JWT creator
func NewCreator(signer keys.Signer, issuer string, expiry time.Duration, nowFunc func() time.Time) *Creator {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &Creator{
		signer:  signer,
		issuer:  issuer,
		expiry:  expiry,
		nowFunc: nowFunc,
	}
}

// CreateAccessToken signs a short-lived access token for userID.
func (c *Creator) CreateAccessToken(userID string) (string, *AccessClaims, error) {
	if strings.TrimSpace(userID) == "" {
		return "", nil, errors.New("subject is required")
	}

	now := c.nowFunc()
	claims := &AccessClaims{
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   userID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(c.expiry)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := c.signer.Sign(claims)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign JWT token: %w", err)
	}
	return signed, claims, nil
}
