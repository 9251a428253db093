package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/propguard/security-analytics-backend/internal/api/rest"
	"github.com/propguard/security-analytics-backend/internal/infrastructure/cache"
	"github.com/propguard/security-analytics-backend/internal/infrastructure/config"
	"github.com/propguard/security-analytics-backend/internal/infrastructure/database"
	"github.com/propguard/security-analytics-backend/internal/infrastructure/telemetry"
	"github.com/propguard/security-analytics-backend/internal/metrics"
	"github.com/propguard/security-analytics-backend/internal/service/analytics"
	"github.com/propguard/security-analytics-backend/internal/service/threatdetect"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to configuration file")
		migrate    = flag.Bool("migrate", false, "Run database migrations and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, err := telemetry.SetupLogger(cfg.LogLevel)
	if err != nil {
		slog.Error("failed to setup logger", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	if err := run(cfg, logger, *migrate); err != nil {
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, migrateOnly bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zapLogger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to create infrastructure logger: %w", err)
	}
	defer zapLogger.Sync()

	if migrateOnly {
		if err := database.RunMigrations(cfg.Database.URL, zapLogger); err != nil {
			return err
		}
		logger.Info("migrations completed")
		return nil
	}

	provider, err := telemetry.InitializeOpenTelemetry(ctx, &telemetry.Config{
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SamplingRate:   cfg.Telemetry.SamplingRate,
		ExportTimeout:  cfg.Telemetry.ExportTimeout,
		BatchTimeout:   cfg.Telemetry.BatchTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	pool, err := database.NewPool(ctx, &cfg.Database, zapLogger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	store := resultStore(cfg, zapLogger)
	defer store.Close()

	registry, err := metrics.NewRegistry()
	if err != nil {
		return fmt.Errorf("failed to create metrics registry: %w", err)
	}

	events := database.NewEventRepository(pool)
	detector := threatdetect.NewDetector(events, threatdetect.DefaultRules(), zapLogger)
	engine := analytics.NewService(events, detector, store, registry, zapLogger)

	handler := rest.NewHandler(engine, events, logger)
	server := rest.NewServer(cfg, handler, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down gracefully")
	return server.Shutdown(context.Background())
}

// resultStore builds the configured cache backend. The cache is an
// optimization, not a correctness dependency: when Redis is unreachable the
// host degrades to an in-memory store instead of refusing to start.
func resultStore(cfg *config.Config, logger *zap.Logger) cache.Store {
	switch cfg.Analytics.CacheBackend {
	case "redis":
		store, err := cache.NewRedisStore(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("redis result cache unavailable, falling back to in-memory store",
				zap.String("redis_url", cfg.Redis.URL),
				zap.Error(err))
			return cache.NewMemoryStore(cfg.Analytics.SweepInterval, logger)
		}
		return store
	default:
		return cache.NewMemoryStore(cfg.Analytics.SweepInterval, logger)
	}
}
