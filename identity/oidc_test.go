package identity_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/algelab-auth/identity"
	"github.com/jrsteele09/algelab-auth/internal/utils"
	"github.com/jrsteele09/algelab-auth/token/keys"
	"github.com/stretchr/testify/require"
)

const testState = "login-state"

func newFakeOIDC(t *testing.T, claims func(issuer string) jwt.MapClaims) *httptest.Server {
	t.Helper()
	kp, err := keys.GenerateRSAKeyPair("test-key", 2048)
	require.NoError(t, err)
	signer := keys.NewKeyPairSigner(kp)

	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                                srv.URL,
			"authorization_endpoint":                srv.URL + "/authorize",
			"token_endpoint":                        srv.URL + "/token",
			"jwks_uri":                              srv.URL + "/jwks",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("GET /jwks", func(w http.ResponseWriter, r *http.Request) {
		jwks, err := signer.GetJWKS()
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	})
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		idToken, err := signer.Sign(claims(srv.URL))
		require.NoError(t, err)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at",
			"token_type":   "Bearer",
			"expires_in":   300,
			"id_token":     idToken,
		})
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func validClaims(issuer string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":                issuer,
		"aud":                "oidc-client",
		"sub":                "user-123",
		"iat":                now.Unix(),
		"exp":                now.Add(5 * time.Minute).Unix(),
		"email":              "jane@example.com",
		"name":               "Jane Q Doe",
		"preferred_username": "jane",
	}
}

func newOIDCClient(t *testing.T, srv *httptest.Server) *identity.OIDCClient {
	t.Helper()
	c, err := identity.NewOIDCClient(context.Background(), identity.OIDCConfig{
		Issuer:       srv.URL,
		ClientID:     "oidc-client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:8000/api/auth/github/callback",
		HTTPClient:   srv.Client(),
	})
	require.NoError(t, err)
	return c
}

// nonceOf returns the nonce the client asks the provider to embed.
func nonceOf(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	return u.Query().Get("nonce")
}

func TestOIDCExchange(t *testing.T) {
	var nonce string
	srv := newFakeOIDC(t, func(issuer string) jwt.MapClaims {
		c := validClaims(issuer)
		c["nonce"] = nonce
		return c
	})
	c := newOIDCClient(t, srv)

	authURL := c.AuthCodeURL(testState)
	require.Contains(t, authURL, "state="+testState)
	nonce = nonceOf(t, authURL)
	require.NotEmpty(t, nonce)
	require.NotContains(t, nonce, testState)

	id, err := c.Exchange(context.Background(), testState, "good-code")
	require.NoError(t, err)
	require.Equal(t, "oidc_user-123", id.UserID())
	require.Equal(t, "jane", id.Username)
	require.Equal(t, "Jane", utils.Value(id.FirstName))
	require.Equal(t, "Q Doe", utils.Value(id.LastName))
	require.Equal(t, "jane@example.com", utils.Value(id.Email))
}

func TestOIDCRejectsNonceForAnotherLogin(t *testing.T) {
	var nonce string
	srv := newFakeOIDC(t, func(issuer string) jwt.MapClaims {
		c := validClaims(issuer)
		if nonce != "" {
			c["nonce"] = nonce
		}
		return c
	})
	c := newOIDCClient(t, srv)

	// No nonce in the id_token.
	_, err := c.Exchange(context.Background(), testState, "good-code")
	require.ErrorIs(t, err, identity.ErrRejected)

	// An id_token minted for a different login state.
	nonce = nonceOf(t, c.AuthCodeURL("other-state"))
	_, err = c.Exchange(context.Background(), testState, "good-code")
	require.ErrorIs(t, err, identity.ErrRejected)
}

func TestOIDCRejectsBadCode(t *testing.T) {
	srv := newFakeOIDC(t, validClaims)
	_, err := newOIDCClient(t, srv).Exchange(context.Background(), testState, "bad-code")
	require.ErrorIs(t, err, identity.ErrRejected)
}

func TestOIDCRejectsWrongAudience(t *testing.T) {
	srv := newFakeOIDC(t, func(issuer string) jwt.MapClaims {
		c := validClaims(issuer)
		c["aud"] = "someone-else"
		return c
	})
	_, err := newOIDCClient(t, srv).Exchange(context.Background(), testState, "good-code")
	require.ErrorIs(t, err, identity.ErrRejected)
}
