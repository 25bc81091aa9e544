package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/agura-market/agura_market/internal/config"
	"github.com/agura-market/agura_market/internal/infra"
	"github.com/agura-market/agura_market/internal/logging"
	"github.com/agura-market/agura_market/internal/routes"
	"github.com/agura-market/agura_market/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.AppName, cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// Postgres and Redis are optional in development; in-memory stores stand in.
	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	}

	nc, err := infra.NewNATSConn(cfg.NATSURL, cfg.AppName, logger)
	if err != nil {
		logger.Error("connect nats", "error", err)
		os.Exit(1)
	}
	if nc != nil {
		defer nc.Close()
	}

	srv, err := server.New(routes.Deps{
		Cfg:      cfg,
		DB:       db,
		Cache:    cache,
		NATS:     nc,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	})
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()
	logger.Info("server starting",
		"addr", cfg.Address(),
		"env", cfg.AppEnv,
		"paypack_environment", cfg.Paypack.Environment,
		"admin_routes", cfg.Paypack.AdminRoutes)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
