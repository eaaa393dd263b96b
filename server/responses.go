package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/algelab-auth/session"
)

const contentTypeJSON = "application/json; charset=utf-8"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	if w.Header().Get("Cache-Control") == "" {
		w.Header().Set("Cache-Control", "no-store")
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes {"error": code}
func writeJSONError(w http.ResponseWriter, code string, status int) {
	writeJSON(w, status, ErrorResponse{Error: code})
}

func applyCookies(w http.ResponseWriter, cookies []session.CookieDirective) {
	for _, c := range cookies {
		http.SetCookie(w, c.Cookie())
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// TokenInfo describes the caller's access token.
type TokenInfo struct {
	UserID    string `json:"user_id"`
	ExpiresAt int64  `json:"expires_at"`
}

type ValidateResponse struct {
	Valid  bool        `json:"valid"`
	Error  string      `json:"error,omitempty"`
	Claims *ClaimsView `json:"claims,omitempty"`
}

type ClaimsView struct {
	Subject   string `json:"sub"`
	Issuer    string `json:"iss,omitempty"`
	TokenType string `json:"token_type"`
	ID        string `json:"jti,omitempty"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// UserInfo is the public view of a profile.
type UserInfo struct {
	UserID    string  `json:"user_id"`
	Username  string  `json:"username"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	AvatarURL *string `json:"avatar_url"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
}
