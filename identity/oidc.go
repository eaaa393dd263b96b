package identity

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/algelab-auth/internal/utils"
	"golang.org/x/oauth2"
)

// OIDCConfig configures a generic OpenID Connect provider.
type OIDCConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// OIDCClient wraps an OIDC provider and its OAuth2 configuration
type OIDCClient struct {
	verifier   *oidc.IDTokenVerifier
	oauth      oauth2.Config
	timeout    time.Duration
	httpClient *http.Client
}

var _ Client = (*OIDCClient)(nil)

type oidcClaims struct {
	Subject           string `json:"sub"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	GivenName         string `json:"given_name"`
	FamilyName        string `json:"family_name"`
	PreferredUsername string `json:"preferred_username"`
	Picture           string `json:"picture"`
}

// NewOIDCClient discovers the provider's configuration from
// <issuer>/.well-known/openid-configuration.
func NewOIDCClient(ctx context.Context, cfg OIDCConfig) (*OIDCClient, error) {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	discoverCtx, cancel := context.WithTimeout(oidc.ClientContext(ctx, httpClient), timeout)
	defer cancel()
	provider, err := oidc.NewProvider(discoverCtx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	return &OIDCClient{
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       scopes,
		},
		timeout:    timeout,
		httpClient: httpClient,
	}, nil
}

// AuthCodeURL requests an id_token bound to state through the nonce.
func (c *OIDCClient) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("nonce", nonceFor(state)))
}

func (c *OIDCClient) Exchange(ctx context.Context, state, code string) (Identity, error) {
	if strings.TrimSpace(code) == "" {
		return Identity{}, fmt.Errorf("%w: empty authorization code", ErrRejected)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx = oidc.ClientContext(ctx, c.httpClient)

	tok, err := retryOnce(ctx, "oidc token exchange", func() (*oauth2.Token, error) {
		return c.oauth.Exchange(ctx, code)
	})
	if err != nil {
		return Identity{}, classifyOAuthError(err)
	}

	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return Identity{}, fmt.Errorf("%w: no id_token in token response", ErrInvalidIdentity)
	}
	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: id_token verification failed: %v", ErrRejected, err)
	}
	if subtle.ConstantTimeCompare([]byte(idToken.Nonce), []byte(nonceFor(state))) != 1 {
		return Identity{}, fmt.Errorf("%w: id_token nonce does not match the login state", ErrRejected)
	}

	var claims oidcClaims
	if err := idToken.Claims(&claims); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: empty subject", ErrInvalidIdentity)
	}

	first, last := utils.PtrIfNotEmpty(claims.GivenName), utils.PtrIfNotEmpty(claims.FamilyName)
	if first == nil && last == nil {
		first, last = SplitName(claims.Name)
	}
	username := claims.PreferredUsername
	if username == "" {
		username = claims.Subject
	}

	return Identity{
		Provider:   ProviderOIDC,
		ProviderID: claims.Subject,
		Username:   username,
		FirstName:  first,
		LastName:   last,
		Email:      utils.PtrIfNotEmpty(claims.Email),
		AvatarURL:  utils.PtrIfNotEmpty(claims.Picture),
	}, nil
}

// nonceFor derives the OIDC nonce from the single-use login state, so the
// nonce needs no storage of its own.
func nonceFor(state string) string {
	return utils.HashToken("oidc-nonce:" + state)
}

func asRetrieveError(err error) (*oauth2.RetrieveError, bool) {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
