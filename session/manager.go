package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/algelab-auth/identity"
	"github.com/jrsteele09/algelab-auth/internal/metrics"
	"github.com/jrsteele09/algelab-auth/loginstate"
	"github.com/jrsteele09/algelab-auth/profiles"
	"github.com/jrsteele09/algelab-auth/token"
	"github.com/rs/zerolog/log"
)

// Phase is a step of the login state machine.
type Phase string

const (
	PhaseStart            Phase = "START"
	PhaseAwaitingCallback Phase = "AWAITING_CALLBACK"
	PhaseExchanging       Phase = "EXCHANGING"
	PhaseEstablished      Phase = "ESTABLISHED"
	PhaseFailed           Phase = "FAILED"
)

const defaultRenewWindow = 10 * time.Minute

// StateStore issues and consumes single-use login states.
type StateStore interface {
	Issue(ctx context.Context) (loginstate.LoginState, error)
	Consume(ctx context.Context, token string) error
}

// ProfileStore records the profile of a user who just logged in.
type ProfileStore interface {
	Upsert(ctx context.Context, id identity.Identity) (*profiles.Profile, error)
}

// TokenService is the part of token.Service the session layer drives.
type TokenService interface {
	RenewAccess(ctx context.Context, userID, refreshToken string) (token.AccessToken, error)
	IssuePair(ctx context.Context, userID string) (*token.Pair, error)
	Refresh(ctx context.Context, refreshToken string) (*token.Pair, error)
	RevokeByToken(ctx context.Context, refreshToken string) error
	ValidateAccess(raw string) (*token.AccessClaims, error)
}

// Session is an established pair of tokens for a user.
type Session struct {
	UserID           string
	FamilyID         string
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Outcome is what the HTTP layer must do after a session operation.
type Outcome struct {
	Session     *Session
	Cookies     []CookieDirective
	RedirectURL string
}

// LoginRedirect starts a login: send the browser to RedirectURL.
type LoginRedirect struct {
	RedirectURL string `json:"redirect_url"`
	State       string `json:"state"`
}

// Manager drives the login exchange and the cookie-carried session.
type Manager struct {
	states      StateStore
	idp         identity.Client
	profiles    ProfileStore
	tokens      TokenService
	policy      CookiePolicy
	successURL  string
	errorURL    string
	renewWindow time.Duration
	metrics     *metrics.Metrics
	nowFunc     func() time.Time
}

type ManagerOption func(*Manager)

func WithCookiePolicy(p CookiePolicy) ManagerOption {
	return func(m *Manager) {
		m.policy = p
	}
}

// WithRedirects sets where the browser lands after a login. errorURL gets an
// "error" query parameter appended.
func WithRedirects(successURL, errorURL string) ManagerOption {
	return func(m *Manager) {
		m.successURL = successURL
		m.errorURL = errorURL
	}
}

func WithRenewWindow(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.renewWindow = d
	}
}

func WithMetrics(mt *metrics.Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = mt
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func NewManager(states StateStore, idp identity.Client, profileStore ProfileStore, tokens TokenService, options ...ManagerOption) *Manager {
	m := &Manager{
		states:   states,
		idp:      idp,
		profiles: profileStore,
		tokens:   tokens,
	}
	for _, opt := range options {
		opt(m)
	}
	m.policy = m.policy.withDefaults()
	if m.successURL == "" {
		m.successURL = "/"
	}
	if m.errorURL == "" {
		m.errorURL = "/auth-error"
	}
	if m.renewWindow <= 0 {
		m.renewWindow = defaultRenewWindow
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

// Policy returns the cookie policy in use.
func (m *Manager) Policy() CookiePolicy {
	return m.policy
}

// BeginLogin issues a login state and returns the provider URL for it.
func (m *Manager) BeginLogin(ctx context.Context) (*LoginRedirect, error) {
	m.enter(PhaseStart)
	state, err := m.states.Issue(ctx)
	if err != nil {
		m.enter(PhaseFailed)
		return nil, fmt.Errorf("[session BeginLogin] %w", err)
	}
	m.enter(PhaseAwaitingCallback)
	return &LoginRedirect{
		RedirectURL: m.idp.AuthCodeURL(state.Token),
		State:       state.Token,
	}, nil
}

// CompleteLogin handles the provider callback. The state is consumed before
// anything else, whatever the outcome.
func (m *Manager) CompleteLogin(ctx context.Context, state, code string) (*Outcome, error) {
	if err := m.states.Consume(ctx, state); err != nil {
		m.metrics.StateConsume(stateConsumeOutcome(err))
		return nil, m.fail(fmt.Errorf("%w: %w", ErrInvalidState, err))
	}
	m.metrics.StateConsume("ok")

	m.enter(PhaseExchanging)
	id, err := m.idp.Exchange(ctx, state, code)
	if err != nil {
		return nil, m.fail(fmt.Errorf("%w: %w", ErrUpstreamExchangeFailed, err))
	}

	profile, err := m.profiles.Upsert(ctx, id)
	if err != nil {
		return nil, m.fail(fmt.Errorf("%w: %w", ErrProfilePersistenceFailed, err))
	}

	pair, err := m.tokens.IssuePair(ctx, profile.UserID)
	if err != nil {
		return nil, m.fail(fmt.Errorf("[session CompleteLogin] issue tokens: %w", err))
	}

	m.enter(PhaseEstablished)
	m.metrics.LoginOutcome("established")
	log.Info().Str("user_id", profile.UserID).Str("provider", id.Provider).Msg("login established")

	out := m.outcome(pair)
	out.RedirectURL = m.successURL
	return out, nil
}

// AbortLogin handles a callback that carries a provider error instead of a
// code. The state is still consumed so it cannot be replayed.
func (m *Manager) AbortLogin(ctx context.Context, state, reason string) error {
	if err := m.states.Consume(ctx, state); err != nil {
		m.metrics.StateConsume(stateConsumeOutcome(err))
		return m.fail(fmt.Errorf("%w: %w", ErrInvalidState, err))
	}
	m.metrics.StateConsume("ok")
	return m.fail(fmt.Errorf("%w: %s", ErrUpstreamDenied, reason))
}

// Logout revokes the refresh token's family and clears both cookies. It
// never fails: unknown tokens and store errors still clear the cookies.
func (m *Manager) Logout(ctx context.Context, refreshToken string) *Outcome {
	if strings.TrimSpace(refreshToken) != "" {
		if err := m.tokens.RevokeByToken(ctx, refreshToken); err != nil {
			log.Err(err).Msg("logout: failed to revoke refresh token family")
		}
	}
	return &Outcome{Cookies: m.ClearCookies()}
}

// Refresh rotates the refresh token and returns new cookies.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*Outcome, error) {
	pair, err := m.tokens.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return m.outcome(pair), nil
}

// Validate checks an access token.
func (m *Manager) Validate(accessToken string) (*token.AccessClaims, error) {
	return m.tokens.ValidateAccess(accessToken)
}

// ShouldRenew reports whether claims expire within the renew window.
func (m *Manager) ShouldRenew(claims *token.AccessClaims) bool {
	exp := claims.ExpiresAtTime()
	return !exp.IsZero() && exp.Sub(m.nowFunc()) <= m.renewWindow
}

// RenewAccess issues a fresh access token for userID and returns the cookie
// that carries it. refreshToken must be the caller's live refresh token; it
// is checked but not rotated.
func (m *Manager) RenewAccess(ctx context.Context, userID, refreshToken string) (*CookieDirective, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, token.ErrUnknown
	}
	access, err := m.tokens.RenewAccess(ctx, userID, refreshToken)
	if err != nil {
		return nil, err
	}
	d := m.policy.set(m.policy.AccessName, access.Token, access.ExpiresAt, m.nowFunc())
	return &d, nil
}

// ClearCookies returns directives that delete both session cookies.
func (m *Manager) ClearCookies() []CookieDirective {
	return []CookieDirective{
		m.policy.clear(m.policy.AccessName),
		m.policy.clear(m.policy.RefreshName),
	}
}

// ErrorRedirectURL is where the browser goes when a login fails with err.
func (m *Manager) ErrorRedirectURL(err error) string {
	return m.ErrorRedirectURLForCode(Code(err))
}

func (m *Manager) ErrorRedirectURLForCode(code string) string {
	sep := "?"
	if strings.Contains(m.errorURL, "?") {
		sep = "&"
	}
	return m.errorURL + sep + "error=" + url.QueryEscape(code)
}

func (m *Manager) outcome(pair *token.Pair) *Outcome {
	now := m.nowFunc()
	return &Outcome{
		Session: &Session{
			UserID:           pair.UserID,
			FamilyID:         pair.Refresh.FamilyID,
			AccessToken:      pair.Access.Token,
			AccessExpiresAt:  pair.Access.ExpiresAt,
			RefreshToken:     pair.Refresh.Token,
			RefreshExpiresAt: pair.Refresh.ExpiresAt,
		},
		Cookies: []CookieDirective{
			m.policy.set(m.policy.AccessName, pair.Access.Token, pair.Access.ExpiresAt, now),
			m.policy.set(m.policy.RefreshName, pair.Refresh.Token, pair.Refresh.ExpiresAt, now),
		},
	}
}

func (m *Manager) enter(p Phase) {
	m.metrics.LoginPhase(string(p))
	log.Debug().Str("phase", string(p)).Msg("login phase")
}

func (m *Manager) fail(err error) error {
	m.enter(PhaseFailed)
	code := Code(err)
	m.metrics.LoginOutcome(code)
	log.Warn().Err(err).Str("code", code).Msg("login failed")
	return err
}

func stateConsumeOutcome(err error) string {
	switch {
	case errors.Is(err, loginstate.ErrNotFound):
		return "not_found"
	case errors.Is(err, loginstate.ErrExpired):
		return "expired"
	default:
		return "error"
	}
}
