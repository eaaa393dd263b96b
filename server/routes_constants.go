package server

// Route path constants
const (
	// Login flow
	RouteGitHubLogin    = "/api/auth/github"
	RouteGitHubCallback = "/api/auth/github/callback"

	// Session
	RouteLogout        = "/api/auth/logout"
	RouteToken         = "/api/auth/token"
	RouteValidateToken = "/api/auth/validate-token"
	RouteRefreshToken  = "/api/auth/refresh-token"

	// Users
	RouteUser = "/api/user/" // registered as an exact match

	// System
	RouteRoot          = "/{$}"
	RouteHealth        = "/health"
	RouteMetrics       = "/metrics"
	RouteWellKnownJWKS = "/.well-known/jwks.json"
)
