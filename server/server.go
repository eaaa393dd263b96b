package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/algelab-auth/internal/config"
	"github.com/jrsteele09/algelab-auth/internal/metrics"
	"github.com/jrsteele09/algelab-auth/profiles"
	"github.com/jrsteele09/algelab-auth/session"
	"github.com/jrsteele09/algelab-auth/token/keys"
	"github.com/rs/zerolog/log"
)

// ProfileReader loads the profile of an authenticated user.
type ProfileReader interface {
	Get(ctx context.Context, userID string) (*profiles.Profile, error)
}

// KeySetProvider exposes the public signing keys, when there are any.
type KeySetProvider interface {
	JWKS() (*keys.JWKS, bool, error)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the HTTP layer drives. Sessions and Profiles are
// required.
type Deps struct {
	Sessions *session.Manager
	Profiles ProfileReader
	KeySet   KeySetProvider
	Metrics  *metrics.Metrics
	Store    Pinger
}

type Server struct {
	env      string
	mux      *http.ServeMux
	handler  http.HandlerFunc
	routes   []string
	config   config.Config
	sessions *session.Manager
	profiles ProfileReader
	keySet   KeySetProvider
	metrics  *metrics.Metrics
	store    Pinger
}

func New(cfg config.Config, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("[Server New] config is required")
	}
	if deps.Sessions == nil || deps.Profiles == nil {
		return nil, errors.New("[Server New] session manager and profile reader are required")
	}

	s := &Server{
		env:      cfg.GetEnv(),
		mux:      http.NewServeMux(),
		config:   cfg,
		sessions: deps.Sessions,
		profiles: deps.Profiles,
		keySet:   deps.KeySet,
		metrics:  deps.Metrics,
		store:    deps.Store,
	}

	s.initRoutes()
	s.handler = ChainMiddleware(s.mux.ServeHTTP, s.GlobalMiddleware()...)
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Routes returns the registered patterns in registration order.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) logRoutes() {
	if s.env != config.EnvDevelopment {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	log.Debug().Msgf("[%s] %s", color+paddedMethod+ResetColor, path)
}
