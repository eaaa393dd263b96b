package server

func (s *Server) initRoutes() {
	// LOGIN
	s.RegisterRouteHandler("POST "+RouteGitHubLogin, ChainMiddleware(s.GitHubLoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteGitHubLogin, ChainMiddleware(s.GitHubLoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteGitHubCallback, ChainMiddleware(s.GitHubCallbackHandler(), s.APIMiddleware()...))

	// SESSION
	s.RegisterRouteHandler("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteToken, ChainMiddleware(s.TokenInfoHandler(), s.APIMiddleware(s.RequireAuth)...))
	s.RegisterRouteHandler("POST "+RouteValidateToken, ChainMiddleware(s.ValidateTokenHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteRefreshToken, ChainMiddleware(s.RefreshTokenHandler(), s.APIMiddleware()...))

	// USERS
	s.RegisterRouteHandler("GET "+RouteUser+"{$}", ChainMiddleware(s.UserInfoHandler(), s.APIMiddleware(s.RequireAuth)...))

	// SYSTEM
	s.RegisterRouteFunc("GET "+RouteRoot, s.RootHandler())
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	if s.metrics != nil {
		s.RegisterRouteHandler("GET "+RouteMetrics, s.metrics.Handler())
	}
	if s.keySet != nil {
		if _, ok, _ := s.keySet.JWKS(); ok {
			s.RegisterRouteFunc("GET "+RouteWellKnownJWKS, s.JWKSHandler())
		}
	}
}
