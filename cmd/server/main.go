// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/tambola/internal/auth"
	"github.com/jason-s-yu/tambola/internal/cache"
	"github.com/jason-s-yu/tambola/internal/config"
	"github.com/jason-s-yu/tambola/internal/database"
	"github.com/jason-s-yu/tambola/internal/game"
	"github.com/jason-s-yu/tambola/internal/handlers"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := logrus.New()
	if err := run(ctx, logger); err != nil {
		logger.WithError(err).Error("server exited")
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *logrus.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.SetLevel(cfg.LogLevel)

	ttl, err := auth.ParseTokenTTL(cfg.Auth.TokenExpireTime)
	if err != nil {
		return fmt.Errorf("parsing TOKEN_EXPIRE_TIME: %w", err)
	}
	authority, err := newAuthority(cfg.Auth, ttl, logger)
	if err != nil {
		return err
	}

	checks := map[string]handlers.Checker{}

	var store game.Store
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pool, err := database.Connect(ctx, cfg.Postgres.DSN())
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		logger.WithField("dsn", cfg.Postgres.Redacted()).Info("connected to postgres")

		store = database.NewGameRepository(pool, logger)
		checks["postgres"] = handlers.CheckFunc(pool.Ping)
	default:
		logger.Warn("using in-memory game store; games are lost on restart")
		store = game.NewMemoryStore()
	}

	opts := []game.Option{game.WithListLimit(cfg.ListLimit)}
	deps := handlers.Deps{
		Logger:        logger,
		Authenticator: authority,
		Checks:        checks,
	}

	if cfg.Redis.Enabled {
		rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		logger.WithField("addr", cfg.Redis.Addr).Info("connected to redis")

		bus := cache.NewEventBus(rdb, cfg.GameQueueName, logger)
		opts = append(opts,
			game.WithCache(cache.NewWaitingGames(rdb, cfg.WaitingCacheTTL)),
			game.WithPublisher(bus),
		)
		deps.Events = bus
		checks["redis"] = redisChecker{rdb}
	}

	deps.Games = game.NewService(store, logger, opts...)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newAuthority(cfg config.AuthConfig, ttl time.Duration, logger *logrus.Logger) (*auth.TokenAuthority, error) {
	if cfg.PublicKeyPath == "" {
		logger.Warn("no AUTH_PUBLIC_KEY_PATH set, generating ephemeral signing keys")
		ta, err := auth.NewTokenAuthority(ttl)
		if err != nil {
			return nil, fmt.Errorf("generating signing keys: %w", err)
		}
		return ta, nil
	}
	ta, err := auth.LoadTokenAuthority(cfg.PrivateKeyPath, cfg.PublicKeyPath, ttl)
	if err != nil {
		return nil, fmt.Errorf("loading signing keys: %w", err)
	}
	return ta, nil
}

// redisChecker adapts *redis.Client to handlers.Checker.
type redisChecker struct{ client *redis.Client }

func (r redisChecker) Check(ctx context.Context) error { return r.client.Ping(ctx).Err() }
