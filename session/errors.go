package session

import (
	"errors"

	"github.com/jrsteele09/algelab-auth/token"
)

var (
	// ErrInvalidState is returned when the callback's state is unknown,
	// already used or expired.
	ErrInvalidState = errors.New("invalid login state")

	// ErrUpstreamExchangeFailed is returned when the identity provider did not
	// yield an identity for the code.
	ErrUpstreamExchangeFailed = errors.New("upstream exchange failed")

	// ErrProfilePersistenceFailed is returned when the profile could not be
	// stored. No tokens are issued in that case.
	ErrProfilePersistenceFailed = errors.New("profile persistence failed")

	// ErrUpstreamDenied is returned when the provider redirected back with an
	// error instead of a code, typically because the user declined.
	ErrUpstreamDenied = errors.New("upstream denied authorization")
)

const (
	CodeInvalidState             = "invalid_state"
	CodeUpstreamExchangeFailed   = "upstream_exchange_failed"
	CodeProfilePersistenceFailed = "profile_persistence_failed"
	CodeUpstreamDenied           = "access_denied"
	CodeServerError              = "server_error"
)

// Code returns the stable string code for err, suitable for HTTP responses
// and redirect query parameters.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidState):
		return CodeInvalidState
	case errors.Is(err, ErrUpstreamExchangeFailed):
		return CodeUpstreamExchangeFailed
	case errors.Is(err, ErrProfilePersistenceFailed):
		return CodeProfilePersistenceFailed
	case errors.Is(err, ErrUpstreamDenied):
		return CodeUpstreamDenied
	}
	if c := token.Code(err); c != "" {
		return c
	}
	return CodeServerError
}
