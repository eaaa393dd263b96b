package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/algelab-auth/internal/utils"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	defaultGitHubAPIURL = "https://api.github.com"
	defaultTimeout      = 10 * time.Second
	maxBodyBytes        = 1 << 20
)

// GitHubConfig configures the GitHub client. Empty endpoint fields fall back
// to github.com.
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	AuthURL      string
	TokenURL     string
	APIURL       string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// GitHubClient implements Client against GitHub's OAuth app flow and REST API.
type GitHubClient struct {
	oauth      oauth2.Config
	apiURL     string
	timeout    time.Duration
	httpClient *http.Client
}

var _ Client = (*GitHubClient)(nil)

type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func NewGitHubClient(cfg GitHubConfig) *GitHubClient {
	endpoint := github.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
		endpoint.AuthStyle = oauth2.AuthStyleInParams
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"user"}
	}
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = defaultGitHubAPIURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &GitHubClient{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		apiURL:     apiURL,
		timeout:    timeout,
		httpClient: httpClient,
	}
}

func (c *GitHubClient) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// Exchange ignores state: GitHub issues no id_token to bind it to.
func (c *GitHubClient) Exchange(ctx context.Context, _, code string) (Identity, error) {
	if strings.TrimSpace(code) == "" {
		return Identity{}, fmt.Errorf("%w: empty authorization code", ErrRejected)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	tok, err := retryOnce(ctx, "github token exchange", func() (*oauth2.Token, error) {
		return c.oauth.Exchange(ctx, code)
	})
	if err != nil {
		return Identity{}, classifyOAuthError(err)
	}

	user, err := retryOnce(ctx, "github user", func() (githubUser, error) {
		var u githubUser
		return u, c.getJSON(ctx, tok, "/user", &u)
	})
	if err != nil {
		return Identity{}, err
	}
	if user.ID == 0 || user.Login == "" {
		return Identity{}, fmt.Errorf("%w: missing id or login", ErrInvalidIdentity)
	}

	email := user.Email
	if email == "" {
		email = c.primaryEmail(ctx, tok)
	}

	first, last := SplitName(user.Name)
	return Identity{
		Provider:   ProviderGitHub,
		ProviderID: strconv.FormatInt(user.ID, 10),
		Username:   user.Login,
		FirstName:  first,
		LastName:   last,
		Email:      utils.PtrIfNotEmpty(email),
		AvatarURL:  utils.Ptr(GitHubAvatarURL(user.Login)),
	}, nil
}

// GitHubAvatarURL is the public avatar location for a GitHub login.
func GitHubAvatarURL(login string) string {
	return "https://github.com/" + login + ".png"
}

// primaryEmail looks the address up in /user/emails. Failures are logged and
// yield "".
func (c *GitHubClient) primaryEmail(ctx context.Context, tok *oauth2.Token) string {
	var emails []githubEmail
	if err := c.getJSON(ctx, tok, "/user/emails", &emails); err != nil {
		log.Warn().Err(err).Msg("failed to fetch GitHub user emails")
		return ""
	}
	for _, e := range emails {
		if e.Primary {
			return e.Email
		}
	}
	return ""
}

func (c *GitHubClient) getJSON(ctx context.Context, tok *oauth2.Token, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	tok.SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &transportError{err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &transportError{err: err}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: GET %s returned %d", ErrUnavailable, path, resp.StatusCode)
	default:
		return fmt.Errorf("%w: GET %s returned %d", ErrRejected, path, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrInvalidIdentity, path, err)
	}
	return nil
}

func classifyOAuthError(err error) error {
	if re, ok := asRetrieveError(err); ok {
		if re.Response != nil && re.Response.StatusCode >= 500 {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
