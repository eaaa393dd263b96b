package server

import (
	"context"
	"fmt"

	"github.com/jrsteele09/algelab-auth/identity"
	"github.com/jrsteele09/algelab-auth/internal/config"
	apperrors "github.com/jrsteele09/algelab-auth/internal/errors"
	"github.com/jrsteele09/algelab-auth/internal/janitor"
	"github.com/jrsteele09/algelab-auth/internal/metrics"
	"github.com/jrsteele09/algelab-auth/internal/storage/postgres"
	"github.com/jrsteele09/algelab-auth/internal/storage/sqlite"
	"github.com/jrsteele09/algelab-auth/loginstate"
	"github.com/jrsteele09/algelab-auth/profiles"
	"github.com/jrsteele09/algelab-auth/session"
	"github.com/jrsteele09/algelab-auth/token"
	"github.com/jrsteele09/algelab-auth/token/keys"
	"github.com/jrsteele09/algelab-auth/token/refresh"
	"github.com/rs/zerolog/log"
)

const signingKeyID = "algelab-auth-1"

// App is the fully wired service: the HTTP handler plus the background
// janitor and the stores they share.
type App struct {
	Server  *Server
	Janitor *janitor.Janitor
	Metrics *metrics.Metrics
	closers []func()
}

// Close releases the stores. It does not stop the janitor.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

type bootstrapOptions struct {
	idp identity.Client
}

type BootstrapOption func(*bootstrapOptions)

// WithIdentityClient replaces the provider built from configuration.
func WithIdentityClient(c identity.Client) BootstrapOption {
	return func(o *bootstrapOptions) {
		o.idp = c
	}
}

type stores struct {
	loginStates loginstate.Repo
	refresh     refresh.Repo
	profiles    profiles.Repo
	pinger      Pinger
	close       func()
}

// Bootstrap builds every component from cfg. Misconfiguration, such as a
// weak secret or an unreachable database, is returned as an error.
func Bootstrap(ctx context.Context, cfg config.Config, options ...BootstrapOption) (*App, error) {
	var opts bootstrapOptions
	for _, opt := range options {
		opt(&opts)
	}

	app := &App{Metrics: metrics.New()}

	st, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, st.close)

	idp := opts.idp
	if idp == nil {
		if idp, err = newIdentityClient(ctx, cfg); err != nil {
			app.Close()
			return nil, err
		}
	}

	signer, err := keys.NewSigner(cfg.GetSecretKey(), cfg.GetSigningKeyPEMFile(), signingKeyID)
	if err != nil {
		app.Close()
		return nil, apperrors.Wrapf(err, "[server Bootstrap] %w signing key", apperrors.ErrMisconfigured)
	}
	tokens, err := token.NewService(signer, st.refresh,
		token.WithTokenExpiry(cfg.GetAccessTokenExpiry(), cfg.GetRefreshTokenExpiry()),
		token.WithLeeway(cfg.GetTokenLeeway()),
		token.WithIssuer(cfg.GetTokenIssuer()),
		token.WithMetrics(app.Metrics),
	)
	if err != nil {
		app.Close()
		return nil, err
	}

	states := loginstate.NewManager(st.loginStates, loginstate.WithTTL(cfg.GetLoginStateTTL()))
	profileStore := profiles.NewStore(st.profiles)

	sessions := session.NewManager(states, idp, profileStore, tokens,
		session.WithCookiePolicy(cookiePolicy(cfg.GetCookiePolicy())),
		session.WithRedirects(cfg.GetFrontendSuccessURL(), cfg.GetFrontendURL()+"/auth-error"),
		session.WithRenewWindow(cfg.GetAccessTokenRenewWindow()),
		session.WithMetrics(app.Metrics),
	)

	app.Server, err = New(cfg, Deps{
		Sessions: sessions,
		Profiles: profileStore,
		KeySet:   tokens,
		Metrics:  app.Metrics,
		Store:    st.pinger,
	})
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Janitor = janitor.New(
		janitor.WithInterval(cfg.GetJanitorInterval()),
		janitor.WithMetrics(app.Metrics),
		janitor.WithPurger("login_state", states),
		janitor.WithPurger("refresh_token", tokens),
	)
	return app, nil
}

func openStores(ctx context.Context, cfg config.StorageConfig) (*stores, error) {
	switch cfg.GetStoreDriver() {
	case config.DriverMemory:
		log.Warn().Msg("using in-memory stores; sessions are lost on restart")
		return &stores{
			loginStates: loginstate.NewInMemoryRepo(),
			refresh:     refresh.NewInMemoryRepo(),
			profiles:    profiles.NewInMemoryRepo(),
			close:       func() {},
		}, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.GetSQLitePath())
		if err != nil {
			return nil, fmt.Errorf("[server openStores] %w", err)
		}
		log.Info().Str("path", cfg.GetSQLitePath()).Msg("using sqlite store")
		return &stores{
			loginStates: db.LoginStates(),
			refresh:     db.RefreshTokens(),
			profiles:    db.Profiles(),
			pinger:      db,
			close:       func() { _ = db.Close() },
		}, nil

	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.GetDatabaseURL(), postgres.Options{})
		if err != nil {
			return nil, fmt.Errorf("[server openStores] %w", err)
		}
		log.Info().Msg("using postgres store")
		return &stores{
			loginStates: db.LoginStates(),
			refresh:     db.RefreshTokens(),
			profiles:    db.Profiles(),
			pinger:      db,
			close:       db.Close,
		}, nil
	}
	return nil, fmt.Errorf("[server openStores] %w: store driver %q", apperrors.ErrUnsupported, cfg.GetStoreDriver())
}

func newIdentityClient(ctx context.Context, cfg config.OAuthConfig) (identity.Client, error) {
	switch cfg.GetIdentityProvider() {
	case config.ProviderGitHub:
		return identity.NewGitHubClient(identity.GitHubConfig{
			ClientID:     cfg.GetGitHubClientID(),
			ClientSecret: cfg.GetGitHubClientSecret(),
			RedirectURL:  cfg.GetGitHubRedirectURI(),
			APIURL:       cfg.GetGitHubAPIURL(),
			Timeout:      cfg.GetUpstreamTimeout(),
		}), nil

	case config.ProviderOIDC:
		c, err := identity.NewOIDCClient(ctx, identity.OIDCConfig{
			Issuer:       cfg.GetOIDCIssuer(),
			ClientID:     cfg.GetOIDCClientID(),
			ClientSecret: cfg.GetOIDCClientSecret(),
			RedirectURL:  cfg.GetOIDCRedirectURI(),
			Timeout:      cfg.GetUpstreamTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("[server newIdentityClient] %w", err)
		}
		return c, nil
	}
	return nil, fmt.Errorf("[server newIdentityClient] %w: identity provider %q", apperrors.ErrUnsupported, cfg.GetIdentityProvider())
}

func cookiePolicy(p config.CookiePolicy) session.CookiePolicy {
	return session.CookiePolicy{
		AccessName:  p.AccessName,
		RefreshName: p.RefreshName,
		Domain:      p.Domain,
		Path:        "/",
		Secure:      p.Secure,
		SameSite:    p.SameSite,
	}
}
