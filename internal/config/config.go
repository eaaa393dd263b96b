package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "DEV"
	EnvProduction  = "PROD"
)

type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
	SecurityConfig
	StorageConfig
	Validate() error
}

type mainConfig struct {
	EnvVars
	Cors
	OAuth
	Security
	Storage
}

var _ Config = mainConfig{}

// New parses the configuration from the process environment. Dotenv files are
// loaded first if present: ".env.<env>" and then ".env". Variables already set
// in the environment always win.
func New() (Config, error) {
	loadDotEnv()

	var c mainConfig
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("[config New] parse environment: %w", err)
	}
	c.Security.env = c.EnvVars.GetEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// FromEnvMap builds a configuration from an explicit map instead of the
// process environment. Used by tests and tooling.
func FromEnvMap(vars map[string]string) (Config, error) {
	var c mainConfig
	if err := env.ParseWithOptions(&c, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("[config FromEnvMap] parse environment: %w", err)
	}
	c.Security.env = c.EnvVars.GetEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func loadDotEnv() {
	files := make([]string, 0, 2)
	if e := strings.ToLower(os.Getenv("ENV")); e != "" {
		files = append(files, ".env."+e)
	}
	files = append(files, ".env")
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

func (c mainConfig) Validate() error {
	var errs []error
	if len(c.Security.SecretKey) < minSecretKeyLength && c.Security.SigningKeyPEMFile == "" {
		errs = append(errs, fmt.Errorf("SECRET_KEY must be at least %d characters", minSecretKeyLength))
	}
	if c.Security.AccessTokenExpireMinutes <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive"))
	}
	if c.Security.RefreshTokenExpireHours <= 0 {
		errs = append(errs, errors.New("REFRESH_TOKEN_EXPIRE_HOURS must be positive"))
	}
	if c.OAuth.LoginStateTTL <= 0 {
		errs = append(errs, errors.New("LOGIN_STATE_TTL must be positive"))
	}
	switch c.OAuth.GetIdentityProvider() {
	case ProviderGitHub:
		if c.OAuth.GitHubClientID == "" || c.OAuth.GitHubClientSecret == "" {
			errs = append(errs, errors.New("GITHUB_CLIENT_ID and GITHUB_CLIENT_SECRET are required"))
		}
	case ProviderOIDC:
		if c.OAuth.OIDCIssuer == "" || c.OAuth.OIDCClientID == "" {
			errs = append(errs, errors.New("OIDC_ISSUER and OIDC_CLIENT_ID are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported IDENTITY_PROVIDER %q", c.OAuth.IdentityProvider))
	}
	switch c.Storage.GetStoreDriver() {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported STORE_DRIVER %q", c.Storage.StoreDriver))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
