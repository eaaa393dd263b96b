package identity

import (
	"context"
	"errors"
	"strings"
)

// Provider names, also used as the user id prefix.
const (
	ProviderGitHub = "github"
	ProviderOIDC   = "oidc"
)

var (
	// ErrRejected is returned when the provider refused the authorization
	// code or the access token. It is never retried.
	ErrRejected = errors.New("identity provider rejected the request")

	// ErrUnavailable is returned when the provider could not be reached or
	// answered with a server error.
	ErrUnavailable = errors.New("identity provider unavailable")

	// ErrInvalidIdentity is returned when the provider's answer lacks a
	// stable subject.
	ErrInvalidIdentity = errors.New("identity provider returned an invalid identity")
)

// Identity is the user as described by the upstream provider for one login.
type Identity struct {
	Provider   string
	ProviderID string
	Username   string
	FirstName  *string
	LastName   *string
	Email      *string
	AvatarURL  *string
}

// UserID is the stable local id for the identity, e.g. "github_1234".
func (i Identity) UserID() string {
	return i.Provider + "_" + i.ProviderID
}

// Client exchanges an authorization code for the upstream identity.
type Client interface {
	// AuthCodeURL returns the provider URL the browser is sent to.
	AuthCodeURL(state string) string

	// Exchange redeems code and fetches the identity it grants. state is the
	// login state the code was issued for.
	Exchange(ctx context.Context, state, code string) (Identity, error)
}

// SplitName splits a display name on the first run of whitespace. A single
// word yields only a first name; an empty name yields neither.
func SplitName(name string) (first, last *string) {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return nil, nil
	}
	f := fields[0]
	if len(fields) == 1 {
		return &f, nil
	}
	l := strings.Join(fields[1:], " ")
	return &f, &l
}
