package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"glowspa/api/internal/audit"
	"glowspa/api/internal/authz"
	"glowspa/api/internal/cache"
	"glowspa/api/internal/config"
	"glowspa/api/internal/database"
	"glowspa/api/internal/handlers"
	"glowspa/api/internal/jobs"
	"glowspa/api/internal/log"
	"glowspa/api/internal/repository"
	"glowspa/api/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	// A broken role table is a configuration error, not something to limp
	// past at request time.
	registry, err := authz.NewRegistry(authz.DefaultRoles())
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid role registry")
	}

	var sink audit.Sink
	if cfg.Audit.Enabled {
		archive, err := audit.NewArchive(cfg.Audit)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init audit archive")
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			logger.Warn().Err(err).Msg("ensure audit bucket failed")
		}
		sink = archive
	}
	auditor := audit.NewRecorder(sink, cfg.Audit.BufferSize, logger)

	handlerSet := handlers.NewHandlerSet(logger, dbPool, redisClient, registry, auditor, cfg)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(repository.NewSessionStore(redisClient), auditor, cfg.Audit.FlushInterval, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("forced shutdown failed")
		}
	}

	if scheduler != nil {
		scheduler.Stop()
	}

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
