package config

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

const minSecretKeyLength = 32

type SecurityConfig interface {
	GetSecretKey() string
	GetSigningKeyPEMFile() string
	GetTokenIssuer() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetTokenLeeway() time.Duration
	GetAccessTokenRenewWindow() time.Duration
	GetCookiePolicy() CookiePolicy
	GetSecurityHeaders() map[string]string
}

// CookiePolicy describes how session cookies are written. Secure and SameSite
// default from the environment: lenient in DEV, strict in PROD.
type CookiePolicy struct {
	AccessName  string
	RefreshName string
	Domain      string
	Secure      bool
	SameSite    http.SameSite
}

type Security struct {
	SecretKey                string        `env:"SECRET_KEY"`
	SigningKeyPEMFile        string        `env:"SIGNING_KEY_PEM_FILE"`
	TokenIssuer              string        `env:"TOKEN_ISSUER" envDefault:"algelab"`
	AccessTokenExpireMinutes int           `env:"ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"30"`
	RefreshTokenExpireHours  int           `env:"REFRESH_TOKEN_EXPIRE_HOURS" envDefault:"168"`
	TokenLeeway              time.Duration `env:"TOKEN_LEEWAY" envDefault:"30s"`
	AccessTokenRenewWindow   time.Duration `env:"ACCESS_TOKEN_RENEW_WINDOW" envDefault:"10m"`
	CookieSecure             string        `env:"COOKIE_SECURE"`
	CookieSameSite           string        `env:"COOKIE_SAMESITE"`
	CookieDomain             string        `env:"COOKIE_DOMAIN"`
	JWTCookieName            string        `env:"JWT_COOKIE_NAME" envDefault:"jwt_token"`
	RefreshCookieName        string        `env:"REFRESH_COOKIE_NAME" envDefault:"refresh_token"`

	env string
}

var _ SecurityConfig = Security{}

func (s Security) GetSecretKey() string {
	return s.SecretKey
}

func (s Security) GetSigningKeyPEMFile() string {
	return s.SigningKeyPEMFile
}

func (s Security) GetTokenIssuer() string {
	return s.TokenIssuer
}

func (s Security) GetAccessTokenExpiry() time.Duration {
	return time.Duration(s.AccessTokenExpireMinutes) * time.Minute
}

func (s Security) GetRefreshTokenExpiry() time.Duration {
	return time.Duration(s.RefreshTokenExpireHours) * time.Hour
}

func (s Security) GetTokenLeeway() time.Duration {
	return s.TokenLeeway
}

func (s Security) GetAccessTokenRenewWindow() time.Duration {
	return s.AccessTokenRenewWindow
}

func (s Security) GetCookiePolicy() CookiePolicy {
	prod := s.env == EnvProduction

	secure := prod
	if v, err := strconv.ParseBool(strings.TrimSpace(s.CookieSecure)); err == nil {
		secure = v
	}

	sameSite := http.SameSiteLaxMode
	if prod {
		sameSite = http.SameSiteStrictMode
	}
	switch strings.ToLower(strings.TrimSpace(s.CookieSameSite)) {
	case "lax":
		sameSite = http.SameSiteLaxMode
	case "strict":
		sameSite = http.SameSiteStrictMode
	case "none":
		// Browsers drop SameSite=None cookies that are not Secure.
		sameSite = http.SameSiteNoneMode
		secure = true
	}

	return CookiePolicy{
		AccessName:  s.JWTCookieName,
		RefreshName: s.RefreshCookieName,
		Domain:      s.CookieDomain,
		Secure:      secure,
		SameSite:    sameSite,
	}
}

// GetSecurityHeaders returns the response headers added in production.
func (s Security) GetSecurityHeaders() map[string]string {
	if s.env != EnvProduction {
		return nil
	}
	return map[string]string{
		"X-Content-Type-Options":    "nosniff",
		"X-Frame-Options":           "DENY",
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
		"Content-Security-Policy":   "default-src 'self'; frame-ancestors 'none';",
		"Referrer-Policy":           "strict-origin-when-cross-origin",
	}
}
