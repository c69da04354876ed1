package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	assert.Equal(t, StoragePostgres, cfg.StorageDriver)
	assert.Equal(t, 30*time.Second, cfg.WaitingCacheTTL)
	assert.Equal(t, "tambola_games", cfg.GameQueueName)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "72h", cfg.Auth.TokenExpireTime)
	assert.Equal(t, "postgres://postgres:@localhost:5432/tambola", cfg.Postgres.DSN())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("POSTGRES_USER", "tambola")
	t.Setenv("POSTGRES_PASSWORD", "s3cr#t")
	t.Setenv("PG_HOST", "db")
	t.Setenv("PG_PORT", "6543")
	t.Setenv("PG_DATABASE", "games")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("WAITING_CACHE_TTL", "1m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	assert.Equal(t, StorageMemory, cfg.StorageDriver)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, time.Minute, cfg.WaitingCacheTTL)
	assert.Equal(t, "postgres://tambola:s3cr%23t@db:6543/games", cfg.Postgres.DSN())
	assert.Equal(t, "postgres://tambola:xxxxx@db:6543/games", cfg.Postgres.Redacted())
}

func TestDatabaseURLWins(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@remote/db?sslmode=require")
	t.Setenv("PG_HOST", "ignored")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@remote/db?sslmode=require", cfg.Postgres.DSN())
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown driver":      {"STORAGE_DRIVER": "mongo"},
		"bad log level":       {"LOG_LEVEL": "loud"},
		"bad ttl":             {"WAITING_CACHE_TTL": "soon"},
		"private without pub": {"AUTH_PRIVATE_KEY_PATH": "/keys/id"},
		"negative limit":      {"GAME_LIST_LIMIT": "-1"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range vars {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
