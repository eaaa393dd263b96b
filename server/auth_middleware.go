package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/algelab-auth/token"
	"github.com/rs/zerolog/hlog"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyAuth stores the authResult of the request's access token
	ContextKeyAuth ContextKey = "auth"

	codeNotAuthenticated = "not_authenticated"
)

type authResult struct {
	claims *token.AccessClaims
	err    error
}

// ClaimsFromContext returns the validated access token claims, if any.
func ClaimsFromContext(ctx context.Context) (*token.AccessClaims, bool) {
	res, ok := ctx.Value(ContextKeyAuth).(*authResult)
	if !ok || res.claims == nil {
		return nil, false
	}
	return res.claims, true
}

func authFromContext(ctx context.Context) *authResult {
	res, _ := ctx.Value(ContextKeyAuth).(*authResult)
	return res
}

// accessToken reads the access token from the cookie, falling back to an
// Authorization: Bearer header.
func (s *Server) accessToken(r *http.Request) string {
	if c, err := r.Cookie(s.sessions.Policy().AccessName); err == nil && c.Value != "" {
		return c.Value
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// Authenticate validates the access token when one is present and stores the
// result in the request context. It never rejects a request. When the token
// is close to expiry and a live refresh cookie comes with it, a fresh access
// cookie is added to any response below 400.
func (s *Server) Authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := s.accessToken(r)
		if raw == "" {
			next(w, r)
			return
		}

		claims, err := s.sessions.Validate(raw)
		r = r.WithContext(context.WithValue(r.Context(), ContextKeyAuth, &authResult{claims: claims, err: err}))
		if err != nil {
			hlog.FromRequest(r).Debug().Str("code", token.Code(err)).Msg("access token rejected")
			next(w, r)
			return
		}

		if !s.sessions.ShouldRenew(claims) {
			next(w, r)
			return
		}
		// Renewal needs the refresh cookie so a revoked family stops it.
		rc, err := r.Cookie(s.sessions.Policy().RefreshName)
		if err != nil || rc.Value == "" {
			next(w, r)
			return
		}
		rw := &renewingWriter{ResponseWriter: w, cookieName: s.sessions.Policy().AccessName}
		rw.renew = func() {
			c, err := s.sessions.RenewAccess(r.Context(), claims.UserID(), rc.Value)
			if err != nil {
				if code := token.Code(err); code != "" {
					hlog.FromRequest(r).Info().Str("user_id", claims.UserID()).Str("code", code).Msg("access token not renewed")
				} else {
					hlog.FromRequest(r).Err(err).Msg("access token renewal failed")
				}
				return
			}
			http.SetCookie(w, c.Cookie())
			hlog.FromRequest(r).Debug().Str("user_id", claims.UserID()).Msg("access token renewed")
		}
		next(rw, r)
	}
}

// RequireAuth rejects requests that Authenticate could not attach claims to.
func (s *Server) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := authFromContext(r.Context())
		if res == nil || res.claims == nil {
			code := codeNotAuthenticated
			if res != nil {
				if c := token.Code(res.err); c != "" {
					code = c
				}
			}
			writeJSONError(w, code, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// renewingWriter sets the renewed access cookie just before the status line
// goes out, and only for successful responses. A handler that already wrote
// the access cookie itself (refresh, logout) wins.
type renewingWriter struct {
	http.ResponseWriter
	cookieName  string
	renew       func()
	wroteHeader bool
}

func (w *renewingWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		if status < http.StatusBadRequest && !w.cookieAlreadySet() {
			w.renew()
		}
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *renewingWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *renewingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *renewingWriter) cookieAlreadySet() bool {
	prefix := w.cookieName + "="
	for _, v := range w.Header().Values("Set-Cookie") {
		if strings.HasPrefix(v, prefix) {
			return true
		}
	}
	return false
}
