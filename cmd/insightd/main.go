// SPDX-License-Identifier: MIT

// Command insightd runs the learning-insight platform daemon: the HTTP
// API, the Prometheus metrics endpoint, and the background maintenance
// loops (poll auto-close, event log garbage collection).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/insight-platform/insightd/internal/api"
	"github.com/insight-platform/insightd/internal/bus"
	"github.com/insight-platform/insightd/internal/cache"
	"github.com/insight-platform/insightd/internal/config"
	"github.com/insight-platform/insightd/internal/eventlog"
	"github.com/insight-platform/insightd/internal/health"
	"github.com/insight-platform/insightd/internal/log"
	"github.com/insight-platform/insightd/internal/metrics"
	"github.com/insight-platform/insightd/internal/store"
	"github.com/insight-platform/insightd/internal/telemetry"
	"github.com/insight-platform/insightd/internal/version"
)

const (
	shutdownTimeout = 10 * time.Second
	gcInterval      = 6 * time.Hour
	sweepInterval   = time.Minute
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.BuildDate)
		os.Exit(0)
	}

	// Configure logger with safe defaults until config is loaded
	log.Configure(log.Config{
		Level:   "info",
		Service: "insightd",
		Version: version.Version,
	})

	logger := log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Determine config path:
	// - Explicit via --config
	// - Otherwise auto-load ${INSIGHT_DATA}/config.yaml if it exists
	explicitConfigPath := strings.TrimSpace(*configPath)
	effectiveConfigPath := explicitConfigPath
	if effectiveConfigPath == "" {
		dataDir := strings.TrimSpace(config.ParseString("INSIGHT_DATA", ""))
		if dataDir != "" {
			autoPath := filepath.Join(dataDir, "config.yaml")
			if _, err := os.Stat(autoPath); err == nil {
				effectiveConfigPath = autoPath
			}
		}
	}

	// Load configuration with precedence: ENV > File > Defaults
	loader := config.NewLoader(effectiveConfigPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", effectiveConfigPath).
			Msg("failed to load configuration")
	}

	// Re-configure logger with loaded configuration
	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Service: "insightd",
		Version: cfg.Version,
	})

	if effectiveConfigPath != "" {
		source := "file"
		if explicitConfigPath == "" {
			source = "file(auto)"
		}
		logger.Info().
			Str("event", "config.loaded").
			Str("source", source).
			Str("path", effectiveConfigPath).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.check_failed").
			Str("data_dir", cfg.DataDir).
			Msg("cannot create data directory")
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Msg("starting insightd")
	logger.Info().Msgf("→ Listen: %s", cfg.ListenAddr)
	logger.Info().Msgf("→ Metrics: %s", cfg.MetricsAddr)
	logger.Info().Msgf("→ Data dir: %s", cfg.DataDir)
	logger.Info().Msgf("→ SQLite: %s", cfg.SQLitePath)
	logger.Info().Msgf("→ Event log: %s (retention: %s)", cfg.EventLogDir, cfg.EventRetention)
	if cfg.Redis.Enabled {
		logger.Info().Msgf("→ Cache: redis (%s)", cfg.Redis.Addr)
	} else {
		logger.Info().Msgf("→ Cache: in-memory (TTL: %s)", cfg.CacheTTL)
	}
	if cfg.Tracing.Enabled {
		logger.Info().Msgf("→ Tracing: %s (%s, sampling: %.2f)", cfg.Tracing.ExporterType, cfg.Tracing.Endpoint, cfg.Tracing.SamplingRate)
	}

	// Hot reload: tunable thresholds and the log level follow the config
	// file; listen addresses and storage paths stay pinned until restart.
	manager := config.NewManager(loader, cfg)
	manager.OnChange(func(next config.AppConfig) {
		log.Configure(log.Config{
			Level:   next.LogLevel,
			Service: "insightd",
			Version: next.Version,
		})
	})

	if err := run(ctx, manager, logger); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "daemon.failed").
			Msg("daemon failed")
	}

	logger.Info().Msg("server exiting")
}

// run wires the storage, cache, bus and telemetry subsystems, then blocks
// serving until ctx is cancelled.
func run(ctx context.Context, manager *config.Manager, logger zerolog.Logger) error {
	cfg := manager.Current()

	db, err := store.Open(cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	events, err := eventlog.Open(cfg.EventLogDir, cfg.EventRetention, log.WithComponent("eventlog"))
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer func() { _ = events.Close() }()

	var (
		sharedCache cache.Cache
		redisCache  *cache.RedisCache
	)
	if cfg.Redis.Enabled {
		redisCache, err = cache.NewRedisCache(cache.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, log.WithComponent("cache"))
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer func() { _ = redisCache.Close() }()
		sharedCache = redisCache
	} else {
		mem := cache.NewMemoryCache(cfg.CacheCleanupInterval)
		defer mem.Stop()
		sharedCache = mem
	}

	tracing, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    "insightd",
		ServiceVersion: version.Version,
		Environment:    cfg.Tracing.Environment,
		ExporterType:   cfg.Tracing.ExporterType,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := tracing.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}()

	hm := health.NewManager(version.Version)
	hm.RegisterChecker(health.NewPingChecker("sqlite", db.HealthCheck))
	hm.RegisterChecker(health.NewPingChecker("eventlog", events.HealthCheck))
	if redisCache != nil {
		hm.RegisterChecker(health.NewPingChecker("redis", redisCache.HealthCheck))
	}

	msgBus := bus.NewMemoryBus()
	defer msgBus.Close()

	srv := api.New(api.Deps{
		Config: cfg,
		Store:  db,
		Events: events,
		Bus:    msgBus,
		Cache:  sharedCache,
		Health: hm,
	})
	manager.OnChange(srv.ApplyConfig)

	apiServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("event", "server.listen").Str("addr", cfg.ListenAddr).Msg("API server listening")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info().Str("event", "metrics.listen").Str("addr", cfg.MetricsAddr).Msg("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	// Poll auto-close sweeper: polls older than the configured window are
	// closed so stale classroom questions do not collect votes forever.
	g.Go(func() error {
		sweepPolls(ctx, db, sharedCache, msgBus, cfg.Polls.AutoClose, logger)
		return nil
	})

	// Config file watcher for hot reload of tunable thresholds.
	g.Go(func() error {
		if err := manager.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("config watcher: %w", err)
		}
		return nil
	})

	// Periodic value-log garbage collection for the event log.
	g.Go(func() error {
		ticker := time.NewTicker(gcInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := events.RunGC(); err != nil {
					logger.Warn().Err(err).Str("event", "eventlog.gc_failed").Msg("event log GC failed")
				}
			}
		}
	})

	// Graceful shutdown on ctx cancellation.
	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Str("event", "shutdown").Msg("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("api shutdown: %w", err))
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("metrics shutdown: %w", err))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// sweepPolls closes open polls that have outlived the auto-close window.
func sweepPolls(ctx context.Context, db *store.Store, c cache.Cache, b bus.Bus, autoClose time.Duration, logger zerolog.Logger) {
	if autoClose <= 0 {
		return
	}

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now().UTC()
			stale, err := db.ListOpenPollsOlderThan(ctx, now.Add(-autoClose))
			if err != nil {
				logger.Warn().Err(err).Str("event", "poll.sweep_failed").Msg("listing stale polls failed")
				continue
			}
			for _, p := range stale {
				if err := db.ClosePoll(ctx, p.ID, now); err != nil {
					logger.Warn().Err(err).Str("poll_id", p.ID).Msg("auto-close failed")
					continue
				}
				metrics.IncPollClosed("auto")
				c.Delete(cache.PollResultsKey(p.ID))

				closed, err := db.GetPoll(ctx, p.ID)
				if err == nil {
					_ = b.Publish(ctx, bus.TopicPollUpdated, closed)
				}
				logger.Info().
					Str("event", "poll.auto_closed").
					Str("poll_id", p.ID).
					Str("question", p.Question).
					Msg("closed stale poll")
			}
		}
	}
}
