package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpAdapter "github.com/corebank/corebank/internal/adapter/http"
	"github.com/corebank/corebank/internal/adapter/http/handler"
	"github.com/corebank/corebank/internal/adapter/http/middleware"
	"github.com/corebank/corebank/internal/adapter/repository/memory"
	postgresRepo "github.com/corebank/corebank/internal/adapter/repository/postgres"
	redisRepo "github.com/corebank/corebank/internal/adapter/repository/redis"
	"github.com/corebank/corebank/internal/infrastructure/config"
	"github.com/corebank/corebank/internal/infrastructure/logger"
	"github.com/corebank/corebank/internal/infrastructure/metrics"
	"github.com/corebank/corebank/internal/infrastructure/postgres"
	"github.com/corebank/corebank/internal/infrastructure/redis"
	"github.com/corebank/corebank/internal/journal"
	"github.com/corebank/corebank/internal/ledger"
	"github.com/corebank/corebank/internal/router"
	"github.com/corebank/corebank/internal/watchdog"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Setup logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx := context.Background()

	// Event store backend
	var (
		store        journal.Store
		healthChecks []handler.HealthCheck
	)
	switch cfg.StoreBackend {
	case "postgres":
		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to postgres")
		}
		defer pool.Close()
		log.Info().Msg("connected to postgres")

		store = postgresRepo.NewEventStore(pool)
		healthChecks = append(healthChecks, pool.Ping)
	case "memory":
		store = memory.NewEventStore()
		log.Warn().Msg("using in-memory event store, state is lost on restart")
	default:
		log.Fatal().Str("backend", cfg.StoreBackend).Msg("unknown store backend")
	}

	// Redis-backed request idempotency (optional)
	var idempotencyStore middleware.IdempotencyStore
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		log.Info().Msg("connected to redis")

		idempotencyStore = redisRepo.NewIdempotencyStore(redisClient)
		healthChecks = append(healthChecks, func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	// Watchdog and account router reference each other; the watchdog is
	// bound to the router after construction.
	wd := watchdog.New(store, watchdog.Config{
		Buckets:      cfg.WatchdogBuckets,
		PingInterval: cfg.WatchdogPingInterval,
	}, log.Logger, m)

	accounts := router.New(store, wd, router.Config{
		AskTimeout:    cfg.AskTimeout,
		IdleAfter:     cfg.PassivateIdle,
		SweepInterval: cfg.SweepInterval,
		Partitions:    cfg.Partitions,
		Ledger: ledger.Config{
			AskTimeout:        cfg.AskTimeout,
			RedeliverInterval: cfg.RedeliverInterval,
			WarnAfter:         cfg.UnconfirmedWarn,
		},
	}, log.Logger, m)

	wd.SetAccounts(accounts)
	if err := wd.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start transfer watchdog")
	}
	accounts.Start()

	// HTTP server
	httpRouter := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		AccountHandler:   handler.NewAccountHandler(accounts),
		HealthHandler:    handler.NewHealthHandler(healthChecks...),
		IdempotencyStore: idempotencyStore,
		IdempotencyTTL:   cfg.IdempotencyTTL,
		Logger:           log.Logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      httpRouter,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	accounts.Stop()
	wd.Stop()

	log.Info().Msg("server stopped")
}
