package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/nkiryanov/blog/internal/cache"
	"github.com/nkiryanov/blog/internal/db"
	"github.com/nkiryanov/blog/internal/handlers"
	"github.com/nkiryanov/blog/internal/logger"
	"github.com/nkiryanov/blog/internal/repository/postgres"
	"github.com/nkiryanov/blog/internal/repository/redis"
	"github.com/nkiryanov/blog/internal/service/auth"
	"github.com/nkiryanov/blog/internal/service/auth/revocation"
	"github.com/nkiryanov/blog/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/blog/internal/service/user"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger logger.Logger
	pool   *pgxpool.Pool
	rdb    *goredis.Client
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Connect to redis. Revocation can't work without it, so fail fast
	rdb, err := cache.Connect(ctx, cache.Config{
		URL:            c.RedisURL,
		Timeout:        c.RedisTimeout,
		MaxConnections: c.RedisMaxConnections,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("error while connecting to redis. Err: %w", err)
	}

	app := &ServerApp{
		ListenAddr: c.ListenAddr,
		logger:     logger,
		pool:       pool,
		rdb:        rdb,
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)
	revocationStore := revocation.New(revocation.Config{}, &redis.BlacklistRepo{RDB: rdb})

	// Initialize services
	tokenManager, err := tokenmanager.New(
		tokenmanager.Config{
			SecretKey:  c.SecretKey,
			Alg:        c.JWTAlgorithm,
			AccessTTL:  time.Duration(c.AccessTokenExpireMinutes) * time.Minute,
			RefreshTTL: time.Duration(c.RefreshTokenExpireMinutes) * time.Minute,
		},
		revocationStore,
	)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}
	userService := user.NewService(auth.DefaultHasher, storage)
	authService, err := auth.NewService(
		auth.Config{CookieInsecure: c.CookieInsecure},
		tokenManager,
		revocationStore,
		userService,
	)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	app.Handler = handlers.NewRouter(authService, userService, logger)

	return app, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}

// Close process wide connections
func (s *ServerApp) Close() {
	if err := s.rdb.Close(); err != nil {
		s.logger.Warn("Failed to close redis client", "error", err)
	}
	s.pool.Close()
}
