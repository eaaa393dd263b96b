package session

import (
	"net/http"
	"time"
)

// CookiePolicy describes how session cookies are written.
type CookiePolicy struct {
	AccessName  string
	RefreshName string
	Domain      string
	Path        string
	Secure      bool
	SameSite    http.SameSite
}

func (p CookiePolicy) withDefaults() CookiePolicy {
	if p.AccessName == "" {
		p.AccessName = "jwt_token"
	}
	if p.RefreshName == "" {
		p.RefreshName = "refresh_token"
	}
	if p.Path == "" {
		p.Path = "/"
	}
	if p.SameSite == 0 {
		p.SameSite = http.SameSiteLaxMode
	}
	return p
}

// CookieDirective is an instruction to set or clear one cookie. The HTTP
// layer applies it; the session core never touches a ResponseWriter.
type CookieDirective struct {
	Name     string
	Value    string
	Path     string
	Domain   string
	MaxAge   int // seconds; negative clears the cookie
	Expires  time.Time
	HTTPOnly bool
	Secure   bool
	SameSite http.SameSite
}

// Clears reports whether the directive deletes the cookie.
func (d CookieDirective) Clears() bool {
	return d.MaxAge < 0
}

// Cookie converts the directive into an *http.Cookie.
func (d CookieDirective) Cookie() *http.Cookie {
	return &http.Cookie{
		Name:     d.Name,
		Value:    d.Value,
		Path:     d.Path,
		Domain:   d.Domain,
		MaxAge:   d.MaxAge,
		Expires:  d.Expires,
		HttpOnly: d.HTTPOnly,
		Secure:   d.Secure,
		SameSite: d.SameSite,
	}
}

func (p CookiePolicy) set(name, value string, expiresAt, now time.Time) CookieDirective {
	maxAge := int(expiresAt.Sub(now).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	return CookieDirective{
		Name:     name,
		Value:    value,
		Path:     p.Path,
		Domain:   p.Domain,
		MaxAge:   maxAge,
		Expires:  expiresAt.UTC(),
		HTTPOnly: true,
		Secure:   p.Secure,
		SameSite: p.SameSite,
	}
}

func (p CookiePolicy) clear(name string) CookieDirective {
	return CookieDirective{
		Name:     name,
		Path:     p.Path,
		Domain:   p.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		HTTPOnly: true,
		Secure:   p.Secure,
		SameSite: p.SameSite,
	}
}
