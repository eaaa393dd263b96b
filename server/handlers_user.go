package server

import (
	"errors"
	"net/http"

	"github.com/jrsteele09/algelab-auth/identity"
	"github.com/jrsteele09/algelab-auth/profiles"
	"github.com/jrsteele09/algelab-auth/session"
	"github.com/rs/zerolog/hlog"
)

const codeUserNotFound = "user_not_found"

// UserInfoHandler returns the profile of the access token's subject.
func (s *Server) UserInfoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := ClaimsFromContext(r.Context())

		p, err := s.profiles.Get(r.Context(), claims.UserID())
		if errors.Is(err, profiles.ErrNotFound) {
			writeJSONError(w, codeUserNotFound, http.StatusNotFound)
			return
		}
		if err != nil {
			hlog.FromRequest(r).Err(err).Str("user_id", claims.UserID()).Msg("profile lookup failed")
			writeJSONError(w, session.CodeServerError, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toUserInfo(p))
	}
}

func toUserInfo(p *profiles.Profile) UserInfo {
	avatar := p.AvatarURL
	if p.Provider == identity.ProviderGitHub && p.Username != "" {
		u := identity.GitHubAvatarURL(p.Username)
		avatar = &u
	}
	return UserInfo{
		UserID:    p.UserID,
		Username:  p.Username,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		AvatarURL: avatar,
	}
}
