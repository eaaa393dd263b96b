package config

import (
	"strings"
	"time"
)

const (
	ProviderGitHub = "github"
	ProviderOIDC   = "oidc"
)

type OAuthConfig interface {
	GetIdentityProvider() string
	GetGitHubClientID() string
	GetGitHubClientSecret() string
	GetGitHubRedirectURI() string
	GetGitHubAPIURL() string
	GetOIDCIssuer() string
	GetOIDCClientID() string
	GetOIDCClientSecret() string
	GetOIDCRedirectURI() string
	GetUpstreamTimeout() time.Duration
	GetLoginStateTTL() time.Duration
}

type OAuth struct {
	IdentityProvider   string        `env:"IDENTITY_PROVIDER" envDefault:"github"`
	GitHubClientID     string        `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string        `env:"GITHUB_CLIENT_SECRET"`
	GitHubRedirectURI  string        `env:"GITHUB_REDIRECT_URI" envDefault:"http://localhost:8000/api/auth/github/callback"`
	GitHubAPIURL       string        `env:"GITHUB_API_URL" envDefault:"https://api.github.com"`
	OIDCIssuer         string        `env:"OIDC_ISSUER"`
	OIDCClientID       string        `env:"OIDC_CLIENT_ID"`
	OIDCClientSecret   string        `env:"OIDC_CLIENT_SECRET"`
	OIDCRedirectURI    string        `env:"OIDC_REDIRECT_URI" envDefault:"http://localhost:8000/api/auth/github/callback"`
	UpstreamTimeout    time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"10s"`
	LoginStateTTL      time.Duration `env:"LOGIN_STATE_TTL" envDefault:"5m"`
}

var _ OAuthConfig = OAuth{}

func (o OAuth) GetIdentityProvider() string {
	return strings.ToLower(strings.TrimSpace(o.IdentityProvider))
}

func (o OAuth) GetGitHubClientID() string     { return o.GitHubClientID }
func (o OAuth) GetGitHubClientSecret() string { return o.GitHubClientSecret }
func (o OAuth) GetGitHubRedirectURI() string  { return o.GitHubRedirectURI }

func (o OAuth) GetGitHubAPIURL() string {
	return strings.TrimRight(o.GitHubAPIURL, "/")
}

func (o OAuth) GetOIDCIssuer() string       { return o.OIDCIssuer }
func (o OAuth) GetOIDCClientID() string     { return o.OIDCClientID }
func (o OAuth) GetOIDCClientSecret() string { return o.OIDCClientSecret }
func (o OAuth) GetOIDCRedirectURI() string  { return o.OIDCRedirectURI }

func (o OAuth) GetUpstreamTimeout() time.Duration {
	return o.UpstreamTimeout
}

func (o OAuth) GetLoginStateTTL() time.Duration {
	return o.LoginStateTTL
}
