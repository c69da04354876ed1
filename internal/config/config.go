// internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config is read from the environment (and a .env file when present, see cmd/server).
type Config struct {
	Port     string       `env:"PORT" envDefault:"8080"`
	LogLevel logrus.Level `env:"LOG_LEVEL" envDefault:"info"`

	// StorageDriver is one of "postgres" or "memory".
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`

	Postgres PostgresConfig
	Redis    RedisConfig
	Auth     AuthConfig

	WaitingCacheTTL time.Duration `env:"WAITING_CACHE_TTL" envDefault:"30s"`
	GameQueueName   string        `env:"GAME_QUEUE_NAME" envDefault:"tambola_games"`
	ListLimit       int           `env:"GAME_LIST_LIMIT" envDefault:"100"`
}

type PostgresConfig struct {
	// URL takes precedence over the individual fields when set.
	URL      string `env:"DATABASE_URL"`
	User     string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD"`
	Host     string `env:"PG_HOST" envDefault:"localhost"`
	Port     string `env:"PG_PORT" envDefault:"5432"`
	Database string `env:"PG_DATABASE" envDefault:"tambola"`
}

type RedisConfig struct {
	Enabled bool   `env:"REDIS_ENABLED" envDefault:"true"`
	Addr    string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	DB      int    `env:"REDIS_DB" envDefault:"0"`
}

type AuthConfig struct {
	// TokenExpireTime accepts a Go duration, or "never"/"0" for tokens without exp.
	TokenExpireTime string `env:"TOKEN_EXPIRE_TIME" envDefault:"72h"`
	PrivateKeyPath  string `env:"AUTH_PRIVATE_KEY_PATH"`
	PublicKeyPath   string `env:"AUTH_PUBLIC_KEY_PATH"`
}

// Load parses the environment into a Config and checks cross-field constraints.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case StorageMemory, StoragePostgres:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StoragePostgres, StorageMemory, c.StorageDriver)
	}
	if c.Auth.PrivateKeyPath != "" && c.Auth.PublicKeyPath == "" {
		return fmt.Errorf("AUTH_PUBLIC_KEY_PATH is required when AUTH_PRIVATE_KEY_PATH is set")
	}
	if c.ListLimit < 0 {
		return fmt.Errorf("GAME_LIST_LIMIT must not be negative")
	}
	return nil
}

// DSN returns the postgres connection string.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   p.Host + ":" + p.Port,
		Path:   "/" + p.Database,
	}
	return u.String()
}

// Redacted returns the DSN with the password masked, for logging.
func (p PostgresConfig) Redacted() string {
	u, err := url.Parse(p.DSN())
	if err != nil {
		return "<unparseable dsn>"
	}
	return u.Redacted()
}
