package config

import (
	"strings"
	"time"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type StorageConfig interface {
	GetStoreDriver() string
	GetDatabaseURL() string
	GetSQLitePath() string
	GetJanitorInterval() time.Duration
}

type Storage struct {
	StoreDriver     string        `env:"STORE_DRIVER" envDefault:"memory"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	SQLitePath      string        `env:"SQLITE_PATH" envDefault:"./data/algelab.db"`
	JanitorInterval time.Duration `env:"JANITOR_INTERVAL" envDefault:"5m"`
}

var _ StorageConfig = Storage{}

func (s Storage) GetStoreDriver() string {
	return strings.ToLower(strings.TrimSpace(s.StoreDriver))
}

func (s Storage) GetDatabaseURL() string {
	return s.DatabaseURL
}

func (s Storage) GetSQLitePath() string {
	return s.SQLitePath
}

func (s Storage) GetJanitorInterval() time.Duration {
	return s.JanitorInterval
}
