package token

import (
	"errors"

	tokenjwt "github.com/jrsteele09/algelab-auth/token/jwt"
)

var (
	ErrMalformed    = tokenjwt.ErrMalformed
	ErrBadSignature = tokenjwt.ErrBadSignature
	ErrExpired      = tokenjwt.ErrExpired

	// ErrUnknown is returned when a refresh token matches no record.
	ErrUnknown = errors.New("token unknown")

	// ErrRevoked is returned when a refresh token's family has been revoked.
	ErrRevoked = errors.New("token revoked")

	// ErrReuseDetected is returned when a revoked refresh token is presented.
	// The token's family has been revoked by the time the caller sees it.
	ErrReuseDetected = errors.New("token reuse detected")
)

// Code returns the stable string code of a token error, or "" when err is
// not one of them.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrMalformed):
		return "token_malformed"
	case errors.Is(err, ErrBadSignature):
		return "token_bad_signature"
	case errors.Is(err, ErrExpired):
		return "token_expired"
	case errors.Is(err, ErrUnknown):
		return "token_unknown"
	case errors.Is(err, ErrRevoked):
		return "token_revoked"
	case errors.Is(err, ErrReuseDetected):
		return "token_reuse_detected"
	default:
		return ""
	}
}
