package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"apotekpos/backend/internal/cache"
	"apotekpos/backend/internal/config"
	"apotekpos/backend/internal/events"
	"apotekpos/backend/internal/httpapi"
	"apotekpos/backend/internal/seed"
	"apotekpos/backend/internal/service"
	"apotekpos/backend/internal/store"
	"apotekpos/backend/internal/store/memory"
	pgstore "apotekpos/backend/internal/store/postgres"
	sqlitestore "apotekpos/backend/internal/store/sqlite"
	"apotekpos/backend/internal/txnum"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatal("invalid security configuration", zap.Error(err))
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("invalid timezone", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 3)

	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("repository unavailable", zap.Error(err))
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}

	if cfg.SeedFile != "" {
		if _, err := seed.LoadFile(ctx, repo, cfg.SeedFile, logger); err != nil {
			logger.Fatal("seed file", zap.String("path", cfg.SeedFile), zap.Error(err))
		}
	}

	saleCache := cache.SaleCache(cache.NoopSaleCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisSaleCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, using noop cache", zap.Error(err))
			_ = redisCache.Close()
		} else {
			saleCache = redisCache
			closers = append(closers, redisCache.Close)
			logger.Info("cache: redis", zap.String("addr", cfg.RedisAddr))
		}
	} else {
		logger.Info("cache: noop")
	}

	publisher := events.Publisher(events.NoopPublisher{})
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, err := events.NewKafkaPublisher(cfg.KafkaBrokers, map[string]string{
			events.EventSaleCommitted: cfg.KafkaTopicSales,
			events.EventStockAdjusted: cfg.KafkaTopicStock,
		})
		if err != nil {
			logger.Fatal("kafka publisher", zap.Error(err))
		}
		publisher = kafkaPublisher
		closers = append(closers, kafkaPublisher.Close)
		logger.Info("events: kafka", zap.Strings("brokers", cfg.KafkaBrokers))
	} else {
		logger.Info("events: noop")
	}

	numbers := txnum.New(cfg.TransactionPrefix, txnum.WithLocation(loc))
	svc := service.New(repo, saleCache, publisher, numbers, logger, service.Options{
		Location:            loc,
		EnforceCatalogPrice: cfg.EnforceCatalogPrice,
		SaleCacheTTL:        cfg.SaleCacheTTL(),
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, logger)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("apotek POS backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("close error", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}

// openRepository picks Postgres when DATABASE_URL is set, then SQLite when
// SQLITE_PATH is set, and falls back to the seeded in-memory store.
func openRepository(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Repository, func() error, error) {
	switch {
	case cfg.DatabaseURL != "":
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		logger.Info("repository: postgres")
		return pg, pg.Close, nil
	case cfg.SQLitePath != "":
		lite, err := sqlitestore.New(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite: %w", err)
		}
		logger.Info("repository: sqlite", zap.String("path", cfg.SQLitePath))
		return lite, lite.Close, nil
	default:
		logger.Info("repository: in-memory")
		return memory.NewSeeded(), nil, nil
	}
}

func newLogger(level string) (*zap.Logger, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "debug" {
		return zap.NewDevelopment()
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}
