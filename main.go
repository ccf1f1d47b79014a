package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/zombiestats/tracker/api"
	"github.com/zombiestats/tracker/pkg"
	"github.com/zombiestats/tracker/pkg/config"
	"github.com/zombiestats/tracker/pkg/event"
	"github.com/zombiestats/tracker/pkg/locale"
	"github.com/zombiestats/tracker/pkg/metrics"
	"github.com/zombiestats/tracker/pkg/redis"
	"github.com/zombiestats/tracker/pkg/storage"
	"github.com/zombiestats/tracker/pkg/task"
	"github.com/zombiestats/tracker/pkg/tracker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := run(logger); err != nil {
		logger.Fatal().Err(err).Msg("program exited with an error")
	}
}

func run(logger zerolog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warn().Str("level", cfg.LogLevel).Msg("unknown LOG_LEVEL, defaulting to info")
		level = zerolog.InfoLevel
	}
	logger = logger.Level(level)
	logger.Info().Str("version", pkg.Version).Str("commit", pkg.Commit).Str("node_id", cfg.NodeID).Msg("starting zombies tracker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	psql := storage.NewPsqlInterface(component(logger, "storage"))
	if err := psql.Init(ctx, storage.ConstructPsqlConnectURL(cfg.PostgresAddr, cfg.PostgresUser, cfg.PostgresPass)); err != nil {
		return err
	}
	defer psql.Close()
	if err := psql.EnsureSchema(ctx); err != nil {
		return err
	}
	logger.Info().Msg("connected to postgres")

	redisDriver := redis.NewDriver(redis.Params{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUser,
		Password: cfg.RedisPass,
	}, component(logger, "redis"))
	defer redisDriver.Close()
	if err := redisDriver.Ping(ctx); err != nil {
		return err
	}
	logger.Info().Msg("connected to redis")

	var locker tracker.Locker
	switch cfg.LockBackend {
	case config.LockBackendMemory:
		locker = tracker.NewKeyedMutex()
	default:
		locker = redisDriver.Locker(cfg.LockTTL)
	}
	logger.Info().Str("backend", cfg.LockBackend).Msg("lock backend selected")

	dispatcher := event.NewDispatcher(redisDriver, cfg.EventBuffer, component(logger, "events"))
	defer dispatcher.Close()

	matchTracker := tracker.NewTracker(psql, locker, dispatcher, component(logger, "tracker"))
	totals := redisDriver.TotalsCache(psql)

	sched, err := startTotalsScheduler(ctx, newTotalsRefresher(totals, component(logger, "scheduler")), cfg.TotalsRefreshInterval)
	if err != nil {
		return err
	}
	defer func() {
		if err := sched.Shutdown(); err != nil {
			logger.Error().Err(err).Msg("failed to stop scheduler")
		}
	}()

	translator := locale.NewTranslator(cfg.LocalePath, cfg.DefaultLang, component(logger, "locale"))
	readApi := api.NewApi(matchTracker, totals, redisDriver, redisDriver, translator, component(logger, "api"))

	go func() {
		collector := metrics.NewCollector(totals, cfg.NodeID, component(logger, "metrics"))
		logger.Info().Str("port", cfg.MetricsPort).Msg("serving prometheus metrics")
		if err := metrics.PrometheusMetricsServer(collector, cfg.MetricsPort); err != nil {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	go func() {
		logger.Info().Str("port", cfg.HealthPort).Msg("serving health checks")
		err := api.StartHealthCheckServer(cfg.HealthPort, map[string]api.Pinger{
			"postgres": psql,
			"redis":    redisDriver,
		})
		if err != nil {
			logger.Error().Err(err).Msg("health check server stopped")
		}
	}()

	go func() {
		logger.Info().Str("port", cfg.ApiPort).Msg("serving api")
		if err := readApi.StartServer(cfg.ApiPort); err != nil {
			logger.Error().Err(err).Msg("api server stopped")
		}
	}()

	worker := task.NewWorker(redisDriver, matchTracker, cfg.WorkerShards, component(logger, "worker"))
	err = worker.Run(ctx)

	logger.Info().Msg("shutting down, waiting for in-flight jobs")
	drained := make(chan struct{})
	go func() {
		worker.Stop()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(shutdownTimeout):
		logger.Warn().Msg("gave up waiting for in-flight jobs")
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
