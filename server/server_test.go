package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/jrsteele09/algelab-auth/identity"
	"github.com/jrsteele09/algelab-auth/internal/config"
	"github.com/jrsteele09/algelab-auth/internal/utils"
	"github.com/jrsteele09/algelab-auth/server"
	"github.com/stretchr/testify/require"
)

const (
	goodCode   = "good-code"
	successURL = "http://localhost:5173/anh-algelab"
)

type fakeIdP struct{}

func (fakeIdP) AuthCodeURL(state string) string {
	return "https://github.example/login/oauth/authorize?state=" + url.QueryEscape(state)
}

func (fakeIdP) Exchange(_ context.Context, _, code string) (identity.Identity, error) {
	if code != goodCode {
		return identity.Identity{}, identity.ErrRejected
	}
	first, last := identity.SplitName("Mona Lisa")
	return identity.Identity{
		Provider:   identity.ProviderGitHub,
		ProviderID: "42",
		Username:   "octocat",
		FirstName:  first,
		LastName:   last,
		Email:      utils.Ptr("mona@example.com"),
	}, nil
}

func newApp(t *testing.T, overrides map[string]string) *server.App {
	t.Helper()
	vars := map[string]string{
		"SECRET_KEY":           "0123456789abcdef0123456789abcdef",
		"GITHUB_CLIENT_ID":     "client-id",
		"GITHUB_CLIENT_SECRET": "client-secret",
	}
	for k, v := range overrides {
		vars[k] = v
	}
	cfg, err := config.FromEnvMap(vars)
	require.NoError(t, err)

	app, err := server.Bootstrap(context.Background(), cfg, server.WithIdentityClient(fakeIdP{}))
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

func do(t *testing.T, h http.Handler, method, target string, cookies []*http.Cookie, header map[string]string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Result()
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func cookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// login runs the whole browser flow and returns the session cookies.
func login(t *testing.T, h http.Handler) (access, refresh *http.Cookie) {
	t.Helper()
	resp := do(t, h, http.MethodPost, server.RouteGitHubLogin, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	begin := decode[map[string]string](t, resp)
	require.NotEmpty(t, begin["state"])
	require.Contains(t, begin["redirect_url"], url.QueryEscape(begin["state"]))

	q := url.Values{"state": {begin["state"]}, "code": {goodCode}}
	resp = do(t, h, http.MethodGet, server.RouteGitHubCallback+"?"+q.Encode(), nil, nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, successURL, resp.Header.Get("Location"))

	access = cookie(resp, "jwt_token")
	refresh = cookie(resp, "refresh_token")
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	require.True(t, access.HttpOnly)
	require.Equal(t, "/", access.Path)
	require.False(t, access.Secure)
	require.Equal(t, http.SameSiteLaxMode, access.SameSite)
	return access, refresh
}

func TestLoginAndUserInfo(t *testing.T) {
	h := newApp(t, nil).Server
	access, _ := login(t, h)

	resp := do(t, h, http.MethodGet, server.RouteUser, []*http.Cookie{access}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	user := decode[server.UserInfo](t, resp)
	require.Equal(t, "github_42", user.UserID)
	require.Equal(t, "octocat", user.Username)
	require.Equal(t, "Mona", utils.Value(user.FirstName))
	require.Equal(t, "Lisa", utils.Value(user.LastName))
	require.Equal(t, "https://github.com/octocat.png", utils.Value(user.AvatarURL))

	resp = do(t, h, http.MethodGet, server.RouteUser+"github_1", []*http.Cookie{access}, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, h, http.MethodGet, server.RouteToken, nil, map[string]string{"Authorization": "Bearer " + access.Value})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	info := decode[server.TokenInfo](t, resp)
	require.Equal(t, "github_42", info.UserID)
	require.NotZero(t, info.ExpiresAt)
}

func TestCallbackFailuresRedirectWithCode(t *testing.T) {
	h := newApp(t, nil).Server

	resp := do(t, h, http.MethodGet, server.RouteGitHubCallback+"?state=forged&code="+goodCode, nil, nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "http://localhost:5173/auth-error?error=invalid_state", resp.Header.Get("Location"))
	require.Nil(t, cookie(resp, "jwt_token"))

	begin := decode[map[string]string](t, do(t, h, http.MethodPost, server.RouteGitHubLogin, nil, nil))
	resp = do(t, h, http.MethodGet, server.RouteGitHubCallback+"?state="+url.QueryEscape(begin["state"])+"&code=bad", nil, nil)
	require.Equal(t, "http://localhost:5173/auth-error?error=upstream_exchange_failed", resp.Header.Get("Location"))

	begin = decode[map[string]string](t, do(t, h, http.MethodGet, server.RouteGitHubLogin, nil, nil))
	resp = do(t, h, http.MethodGet, server.RouteGitHubCallback+"?state="+url.QueryEscape(begin["state"])+"&error=access_denied", nil, nil)
	require.Equal(t, "http://localhost:5173/auth-error?error=access_denied", resp.Header.Get("Location"))

	// The aborted state is gone.
	resp = do(t, h, http.MethodGet, server.RouteGitHubCallback+"?state="+url.QueryEscape(begin["state"])+"&code="+goodCode, nil, nil)
	require.Equal(t, "http://localhost:5173/auth-error?error=invalid_state", resp.Header.Get("Location"))
}

func TestUnauthenticatedRequests(t *testing.T) {
	h := newApp(t, nil).Server

	resp := do(t, h, http.MethodGet, server.RouteUser, nil, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "not_authenticated", decode[server.ErrorResponse](t, resp).Error)

	resp = do(t, h, http.MethodGet, server.RouteUser, []*http.Cookie{{Name: "jwt_token", Value: "garbage"}}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "token_malformed", decode[server.ErrorResponse](t, resp).Error)

	resp = do(t, h, http.MethodPost, server.RouteValidateToken, nil, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	v := decode[server.ValidateResponse](t, resp)
	require.False(t, v.Valid)
}

func TestValidateToken(t *testing.T) {
	h := newApp(t, nil).Server
	access, _ := login(t, h)

	resp := do(t, h, http.MethodPost, server.RouteValidateToken, []*http.Cookie{access}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	v := decode[server.ValidateResponse](t, resp)
	require.True(t, v.Valid)
	require.Equal(t, "github_42", v.Claims.Subject)
	require.Equal(t, "access", v.Claims.TokenType)
	require.Equal(t, "algelab", v.Claims.Issuer)

	tampered := &http.Cookie{Name: "jwt_token", Value: access.Value[:len(access.Value)-2] + "xx"}
	resp = do(t, h, http.MethodPost, server.RouteValidateToken, []*http.Cookie{tampered}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	v = decode[server.ValidateResponse](t, resp)
	require.False(t, v.Valid)
	require.Equal(t, "token_bad_signature", v.Error)
}

func TestRefreshRotationAndReuse(t *testing.T) {
	h := newApp(t, nil).Server
	_, r1 := login(t, h)

	resp := do(t, h, http.MethodPost, server.RouteRefreshToken, []*http.Cookie{r1}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	r2 := cookie(resp, "refresh_token")
	require.NotNil(t, r2)
	require.NotEqual(t, r1.Value, r2.Value)
	require.NotNil(t, cookie(resp, "jwt_token"))

	// Presenting R1 again revokes the family and clears the cookies.
	resp = do(t, h, http.MethodPost, server.RouteRefreshToken, []*http.Cookie{r1}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	cleared := cookie(resp, "refresh_token")
	require.NotNil(t, cleared)
	require.Negative(t, cleared.MaxAge)
	require.Equal(t, "token_reuse_detected", decode[server.ErrorResponse](t, resp).Error)

	resp = do(t, h, http.MethodPost, server.RouteRefreshToken, []*http.Cookie{r2}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, h, http.MethodPost, server.RouteRefreshToken, nil, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "token_unknown", decode[server.ErrorResponse](t, resp).Error)
}

func TestLogout(t *testing.T) {
	h := newApp(t, nil).Server
	access, refresh := login(t, h)

	resp := do(t, h, http.MethodPost, server.RouteLogout, []*http.Cookie{access, refresh}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Negative(t, cookie(resp, "jwt_token").MaxAge)
	require.Negative(t, cookie(resp, "refresh_token").MaxAge)
	require.Equal(t, "Successfully logged out", decode[server.MessageResponse](t, resp).Message)

	resp = do(t, h, http.MethodPost, server.RouteRefreshToken, []*http.Cookie{refresh}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Logging out twice, or without cookies, still succeeds.
	resp = do(t, h, http.MethodPost, server.RouteLogout, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAccessTokenAutoRenewal(t *testing.T) {
	// A renew window longer than the token lifetime renews on every request.
	h := newApp(t, map[string]string{"ACCESS_TOKEN_RENEW_WINDOW": "31m"}).Server
	access, refresh := login(t, h)

	resp := do(t, h, http.MethodGet, server.RouteToken, []*http.Cookie{access, refresh}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	renewed := cookie(resp, "jwt_token")
	require.NotNil(t, renewed)
	require.Positive(t, renewed.MaxAge)
	require.NotEqual(t, access.Value, renewed.Value)

	// Without the refresh cookie the access token is served but not renewed.
	resp = do(t, h, http.MethodGet, server.RouteToken, []*http.Cookie{access}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, accessCookies(resp))

	// A failed refresh clears the cookie; the 401 gets no renewal on top.
	resp = do(t, h, http.MethodPost, server.RouteRefreshToken, []*http.Cookie{access}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Len(t, accessCookies(resp), 1)
	require.Negative(t, accessCookies(resp)[0].MaxAge)

	// Logout clears the cookie and is not overridden by the renewal.
	resp = do(t, h, http.MethodPost, server.RouteLogout, []*http.Cookie{access}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, accessCookies(resp), 1)
	require.Negative(t, accessCookies(resp)[0].MaxAge)
}

func TestNoRenewalAfterLogout(t *testing.T) {
	h := newApp(t, map[string]string{"ACCESS_TOKEN_RENEW_WINDOW": "31m"}).Server
	access, refresh := login(t, h)

	resp := do(t, h, http.MethodPost, server.RouteLogout, []*http.Cookie{access, refresh}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// A copy of the old cookies keeps working until the access token
	// expires, but never yields a fresh access token.
	for i := 0; i < 3; i++ {
		resp = do(t, h, http.MethodGet, server.RouteUser, []*http.Cookie{access, refresh}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Empty(t, accessCookies(resp), "request %d", i)
	}
}

func TestNoRenewalAfterReuseDetected(t *testing.T) {
	h := newApp(t, map[string]string{"ACCESS_TOKEN_RENEW_WINDOW": "31m"}).Server
	_, stolen := login(t, h)

	resp := do(t, h, http.MethodPost, server.RouteRefreshToken, []*http.Cookie{stolen}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	access, refresh := cookie(resp, "jwt_token"), cookie(resp, "refresh_token")
	require.NotNil(t, access)
	require.NotNil(t, refresh)

	resp = do(t, h, http.MethodPost, server.RouteRefreshToken, []*http.Cookie{stolen}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "token_reuse_detected", decode[server.ErrorResponse](t, resp).Error)

	resp = do(t, h, http.MethodGet, server.RouteToken, []*http.Cookie{access, refresh}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, accessCookies(resp))
}

func accessCookies(resp *http.Response) []*http.Cookie {
	var out []*http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "jwt_token" {
			out = append(out, c)
		}
	}
	return out
}

func TestCORS(t *testing.T) {
	h := newApp(t, nil).Server

	resp := do(t, h, http.MethodOptions, server.RouteRefreshToken, nil, map[string]string{
		"Origin":                        "http://localhost:5173",
		"Access-Control-Request-Method": "POST",
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
	require.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")

	resp = do(t, h, http.MethodOptions, server.RouteRefreshToken, nil, map[string]string{
		"Origin":                        "https://evil.example",
		"Access-Control-Request-Method": "POST",
	})
	require.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))

	resp = do(t, h, http.MethodGet, server.RouteHealth, nil, map[string]string{"Origin": "http://localhost:5173"})
	require.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestHealthMetricsAndHeaders(t *testing.T) {
	h := newApp(t, nil).Server

	resp := do(t, h, http.MethodGet, server.RouteHealth, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	health := decode[server.HealthResponse](t, resp)
	require.Equal(t, "healthy", health.Status)
	require.Equal(t, config.EnvDevelopment, health.Environment)
	require.Empty(t, resp.Header.Get("X-Frame-Options"))
	require.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	login(t, h)
	resp = do(t, h, http.MethodGet, server.RouteMetrics, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := new(strings.Builder)
	_, err := io.Copy(body, resp.Body)
	require.NoError(t, err)
	require.Contains(t, body.String(), `algelab_auth_login_outcomes_total{outcome="established"} 1`)

	prod := newApp(t, map[string]string{"ENV": "PROD"}).Server
	resp = do(t, prod, http.MethodGet, server.RouteHealth, nil, nil)
	require.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	require.NotEmpty(t, resp.Header.Get("Strict-Transport-Security"))
}

func TestJWKSOnlyForKeyPairs(t *testing.T) {
	h := newApp(t, nil).Server
	resp := do(t, h, http.MethodGet, server.RouteWellKnownJWKS, nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
