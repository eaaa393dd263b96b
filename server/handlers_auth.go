package server

import (
	"errors"
	"net/http"

	"github.com/jrsteele09/algelab-auth/session"
	"github.com/jrsteele09/algelab-auth/token"
	"github.com/rs/zerolog/hlog"
)

// GitHubLoginHandler starts a login and returns the provider URL together
// with the state the callback must echo.
func (s *Server) GitHubLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		redirect, err := s.sessions.BeginLogin(r.Context())
		if err != nil {
			hlog.FromRequest(r).Err(err).Msg("begin login failed")
			writeJSONError(w, session.CodeServerError, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, redirect)
	}
}

// GitHubCallbackHandler completes the login. Success and failure both end in
// a redirect to the frontend; failures carry an error code.
func (s *Server) GitHubCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		state := q.Get("state")

		if upstream := q.Get("error"); upstream != "" {
			err := s.sessions.AbortLogin(r.Context(), state, upstream)
			http.Redirect(w, r, s.sessions.ErrorRedirectURL(err), http.StatusFound)
			return
		}

		out, err := s.sessions.CompleteLogin(r.Context(), state, q.Get("code"))
		if err != nil {
			http.Redirect(w, r, s.sessions.ErrorRedirectURL(err), http.StatusFound)
			return
		}
		applyCookies(w, out.Cookies)
		http.Redirect(w, r, out.RedirectURL, http.StatusFound)
	}
}

// LogoutHandler revokes the refresh token family and clears both cookies. It
// always succeeds.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var refreshToken string
		if c, err := r.Cookie(s.sessions.Policy().RefreshName); err == nil {
			refreshToken = c.Value
		}
		out := s.sessions.Logout(r.Context(), refreshToken)
		applyCookies(w, out.Cookies)
		writeJSON(w, http.StatusOK, MessageResponse{Message: "Successfully logged out"})
	}
}

func (s *Server) TokenInfoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := ClaimsFromContext(r.Context())
		writeJSON(w, http.StatusOK, TokenInfo{
			UserID:    claims.UserID(),
			ExpiresAt: claims.ExpiresAtTime().Unix(),
		})
	}
}

func (s *Server) ValidateTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := s.accessToken(r)
		if raw == "" {
			writeJSON(w, http.StatusUnauthorized, ValidateResponse{Error: codeNotAuthenticated})
			return
		}
		claims, err := s.sessions.Validate(raw)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, ValidateResponse{Error: token.Code(err)})
			return
		}
		writeJSON(w, http.StatusOK, ValidateResponse{Valid: true, Claims: claimsView(claims)})
	}
}

// RefreshTokenHandler rotates the refresh cookie. Any token failure clears
// both cookies so the browser stops presenting them.
func (s *Server) RefreshTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var refreshToken string
		if c, err := r.Cookie(s.sessions.Policy().RefreshName); err == nil {
			refreshToken = c.Value
		}

		out, err := s.sessions.Refresh(r.Context(), refreshToken)
		if err != nil {
			code := session.Code(err)
			if code == session.CodeServerError {
				hlog.FromRequest(r).Err(err).Msg("refresh failed")
				writeJSONError(w, code, http.StatusInternalServerError)
				return
			}
			if errors.Is(err, token.ErrReuseDetected) {
				hlog.FromRequest(r).Warn().Msg("refresh token reuse rejected")
			}
			applyCookies(w, s.sessions.ClearCookies())
			writeJSONError(w, code, http.StatusUnauthorized)
			return
		}

		applyCookies(w, out.Cookies)
		writeJSON(w, http.StatusOK, TokenInfo{
			UserID:    out.Session.UserID,
			ExpiresAt: out.Session.AccessExpiresAt.Unix(),
		})
	}
}

func claimsView(c *token.AccessClaims) *ClaimsView {
	return &ClaimsView{
		Subject:   c.UserID(),
		Issuer:    c.Issuer,
		TokenType: c.TokenType,
		ID:        c.ID,
		IssuedAt:  c.IssuedAtTime().Unix(),
		ExpiresAt: c.ExpiresAtTime().Unix(),
	}
}
