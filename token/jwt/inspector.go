package jwt

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/algelab-auth/token/keys"
)

const maxTokenLength = 8192

// Inspector validates access tokens. It never consults a store.
type Inspector struct {
	signer  keys.Signer
	parser  *jwtlib.Parser
	nowFunc func() time.Time
}

// NewInspector creates a validator for tokens signed by signer. leeway only
// widens the expiry check.
func NewInspector(signer keys.Signer, issuer string, leeway time.Duration, nowFunc func() time.Time) *Inspector {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{signer.GetSigningMethod().Alg()}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithLeeway(leeway),
		jwtlib.WithTimeFunc(nowFunc),
	}
	if issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(issuer))
	}
	return &Inspector{
		signer:  signer,
		parser:  jwtlib.NewParser(opts...),
		nowFunc: nowFunc,
	}
}

// Validate verifies the signature and expiry of raw and returns its claims.
// Errors are ErrMalformed, ErrBadSignature or ErrExpired.
func (i *Inspector) Validate(raw string) (*AccessClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxTokenLength {
		return nil, ErrMalformed
	}

	claims := &AccessClaims{}
	token, err := i.parser.ParseWithClaims(raw, claims, i.signer.GetVerificationKey)
	if err != nil {
		return nil, classify(err)
	}
	if !token.Valid {
		return nil, ErrMalformed
	}
	if claims.TokenType != TokenTypeAccess || claims.Subject == "" {
		return nil, ErrMalformed
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwtlib.ErrTokenSignatureInvalid), errors.Is(err, jwtlib.ErrTokenUnverifiable):
		return ErrBadSignature
	case errors.Is(err, jwtlib.ErrTokenExpired):
		return ErrExpired
	default:
		return ErrMalformed
	}
}
