// @title        IAM Service API
// @version      1.0
// @description  User registration, login and bearer token issuance.
// @BasePath     /
//
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Type "Bearer" followed by a space and the access token.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"

	"github.com/muusmart/iam-service/internal/api"
	"github.com/muusmart/iam-service/internal/core/service"
	"github.com/muusmart/iam-service/internal/infrastructure/db/mongo"
	"github.com/muusmart/iam-service/internal/infrastructure/db/redis"
	"github.com/muusmart/iam-service/internal/infrastructure/http/handlers"
	"github.com/muusmart/iam-service/internal/infrastructure/queue"
	"github.com/muusmart/iam-service/internal/infrastructure/security"
	"github.com/muusmart/iam-service/internal/pkg/config"
	"github.com/muusmart/iam-service/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "iam-service: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: "iam-service",
		Env:     cfg.Env,
	})

	mongoClient, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Warn().Err(err).Msg("mongo disconnect failed")
		}
	}()

	users := mongo.NewUserRepository(db)
	if err := users.EnsureIndexes(ctx); err != nil {
		return err
	}

	checks := map[string]handlers.Check{
		"mongodb": func(ctx context.Context) error { return mongo.Ping(ctx, db) },
	}

	tokens, err := service.NewTokenService([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	// Activity trail: workers keep running until the server has drained.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	dispatcher := queue.NewDispatcher(
		cfg.ActivityWorkers,
		service.NewActivityService(mongo.NewActivityRepository(db), logger.Component("activity")),
		logger.Component("dispatcher"),
	)
	dispatcher.Start(workerCtx)

	opts := []service.AuthOption{service.WithActivitySink(dispatcher)}

	if cfg.ThrottleEnabled() {
		rdb, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			stopWorkers()
			return err
		}
		defer rdb.Close()

		opts = append(opts, service.WithLoginThrottle(redis.NewLoginThrottle(rdb, cfg.Auth.MaxAttempts, cfg.Auth.LockoutWindow)))
		checks["redis"] = redisCheck(rdb)
	}

	authService := service.NewAuthService(
		users,
		security.NewBcryptHasher(cfg.Auth.BcryptCost),
		tokens,
		logger.Component("auth"),
		opts...,
	)

	e := api.NewRouter(api.Deps{
		AuthService: authService,
		Tokens:      tokens,
		Loader:      service.NewIdentityLoader(users),
		Checks:      checks,
		Logger:      logger.Component("http"),
	})

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("http server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		stopWorkers()
		dispatcher.Wait()
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}

	stopWorkers()
	dispatcher.Wait()

	log.Info().Msg("shutdown complete")
	return nil
}

func redisCheck(rdb *goredis.Client) handlers.Check {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}
