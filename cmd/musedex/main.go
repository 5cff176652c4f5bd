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

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/kailas-cloud/musedex/internal/backend"
	"github.com/kailas-cloud/musedex/internal/config"
	"github.com/kailas-cloud/musedex/internal/domain/search/request"
	logpkg "github.com/kailas-cloud/musedex/internal/logger"
	"github.com/kailas-cloud/musedex/internal/metrics"
	"github.com/kailas-cloud/musedex/internal/repository/guard"
	"github.com/kailas-cloud/musedex/internal/seed"
	chiTransport "github.com/kailas-cloud/musedex/internal/transport/chi"
	healthuc "github.com/kailas-cloud/musedex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/musedex/internal/usecase/search"
	trendinguc "github.com/kailas-cloud/musedex/internal/usecase/trending"
	"github.com/kailas-cloud/musedex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting musedex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	ctx := context.Background()
	be, err := backend.Open(ctx, backend.FromConfig(&cfg))
	if err != nil {
		logger.Fatal("Failed to open catalog store", zap.Error(err))
	}
	defer be.Close()
	logger.Info("Connected to catalog store")

	if err := be.Store.EnsureSchema(ctx); err != nil {
		logger.Fatal("Failed to ensure catalog schema", zap.Error(err))
	}
	if cfg.Database.Driver == config.DriverMemory && cfg.Database.SeedFile != "" {
		loadSeed(ctx, be.Store, cfg.Database.SeedFile, logger)
	}

	// Register catalog metrics explicitly (no init())
	metrics.RegisterCatalogMetrics()

	catalog := guard.New(be.Store, guard.Config{
		Backend:          cfg.Database.Driver,
		Enabled:          cfg.Breaker.Enabled,
		FailureThreshold: cfg.Breaker.FailureThreshold,
		OpenTimeout:      time.Duration(cfg.Breaker.OpenTimeoutSec) * time.Second,
		HalfOpenRequests: cfg.Breaker.HalfOpenRequests,
	}, logger)

	// Validated by config.Validate.
	locale := language.MustParse(cfg.Search.CollationLocale)

	searchSvc := searchuc.New(catalog, time.Duration(cfg.Search.FanoutTimeoutMs)*time.Millisecond, locale)
	trendingSvc := trendinguc.New(catalog, trendinguc.Config{
		Limit:        cfg.Trending.Limit,
		WindowMonths: cfg.Trending.WindowMonths,
	})

	var breaker healthuc.BreakerState
	if cfg.Breaker.Enabled {
		breaker = catalog
	}
	healthSvc := healthuc.New(catalog, breaker, be.Store)

	server := chiTransport.NewServer(searchSvc, trendingSvc, healthSvc, request.Limits{
		DefaultPageSize: cfg.Search.DefaultPageSize,
		MaxPageSize:     cfg.Search.MaxPageSize,
	}, logger)
	r := chiTransport.NewRouter(server, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

func loadSeed(ctx context.Context, w seed.Writer, path string, logger *zap.Logger) {
	f, err := seed.ReadFile(path)
	if err != nil {
		logger.Fatal("Failed to read seed file", zap.String("path", path), zap.Error(err))
	}
	if _, err := seed.Load(ctx, w, f, time.Now().UTC(), seed.DefaultBatchSize, logger); err != nil {
		logger.Fatal("Failed to seed catalog", zap.String("path", path), zap.Error(err))
	}
}
