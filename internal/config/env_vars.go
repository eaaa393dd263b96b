package config

import (
	"strings"
)

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetVersion() string
	GetEnv() string
	IsProduction() bool
	GetLogLevel() string
	GetFrontendURL() string
	GetFrontendSuccessURL() string
}

type EnvVars struct {
	Port                string `env:"PORT" envDefault:"8000"`
	AppName             string `env:"APP_NAME" envDefault:"AlgeLab API"`
	Version             string `env:"APP_VERSION" envDefault:"0.1.0"`
	Env                 string `env:"ENV" envDefault:"DEV"`
	LogLevel            string `env:"LOG_LEVEL" envDefault:"info"`
	FrontendURL         string `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`
	FrontendSuccessPath string `env:"FRONTEND_SUCCESS_PATH" envDefault:"/anh-algelab"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	if strings.HasPrefix(e.Port, ":") {
		return e.Port
	}
	return ":" + e.Port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetVersion() string {
	return e.Version
}

// GetEnv normalises the environment name to DEV or PROD.
func (e EnvVars) GetEnv() string {
	switch strings.ToUpper(strings.TrimSpace(e.Env)) {
	case "PROD", "PRODUCTION":
		return EnvProduction
	default:
		return EnvDevelopment
	}
}

func (e EnvVars) IsProduction() bool {
	return e.GetEnv() == EnvProduction
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

func (e EnvVars) GetFrontendURL() string {
	return strings.TrimRight(e.FrontendURL, "/")
}

func (e EnvVars) GetFrontendSuccessURL() string {
	return e.GetFrontendURL() + e.FrontendSuccessPath
}
