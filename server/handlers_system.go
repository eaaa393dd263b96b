package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"
)

const healthPingTimeout = 2 * time.Second

// HealthHandler reports liveness. When a store is wired it is pinged and an
// unreachable store yields 503.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:      "healthy",
			Name:        s.config.GetAppName(),
			Version:     s.config.GetVersion(),
			Environment: s.env,
		}
		status := http.StatusOK
		if s.store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
			defer cancel()
			if err := s.store.Ping(ctx); err != nil {
				hlog.FromRequest(r).Err(err).Msg("store ping failed")
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
			}
		}
		writeJSON(w, status, resp)
	}
}

// RootHandler returns basic service information.
func (s *Server) RootHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"name":        s.config.GetAppName(),
			"version":     s.config.GetVersion(),
			"environment": s.env,
		})
	}
}

// JWKSHandler serves the public signing key when tokens are RS256 signed.
func (s *Server) JWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jwks, ok, err := s.keySet.JWKS()
		if err != nil {
			hlog.FromRequest(r).Err(err).Msg("jwks export failed")
			writeJSONError(w, "server_error", http.StatusInternalServerError)
			return
		}
		if !ok {
			writeJSONError(w, "not_found", http.StatusNotFound)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=300")
		writeJSON(w, http.StatusOK, jwks)
	}
}
