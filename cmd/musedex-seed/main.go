// Command musedex-seed loads a catalog fixture into the configured store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/musedex/internal/backend"
	"github.com/kailas-cloud/musedex/internal/config"
	logpkg "github.com/kailas-cloud/musedex/internal/logger"
	"github.com/kailas-cloud/musedex/internal/seed"
	"github.com/kailas-cloud/musedex/internal/version"
)

func main() {
	var (
		file      = flag.String("file", "fixtures/catalog.yaml", "catalog fixture (YAML)")
		cfgPath   = flag.String("config", "", "config file (default: config/<ENV>.yaml)")
		batchSize = flag.Int("batch", seed.DefaultBatchSize, "records per write")
	)
	flag.Parse()

	if err := run(*file, *cfgPath, *batchSize); err != nil {
		fmt.Fprintln(os.Stderr, "musedex-seed:", err)
		os.Exit(1)
	}
}

func run(file, cfgPath string, batchSize int) error {
	env := config.GetEnv()

	var (
		cfg config.Config
		err error
	)
	if cfgPath != "" {
		cfg, err = config.LoadFile(cfgPath)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.Driver == config.DriverMemory {
		return fmt.Errorf("the memory driver is seeded at server startup via database.seed_file")
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Seeding catalog",
		zap.String("build", version.String()),
		zap.String("file", file),
		zap.String("db_driver", cfg.Database.Driver),
	)

	fixture, err := seed.ReadFile(file)
	if err != nil {
		return err
	}

	be, err := backend.Open(ctx, backend.FromConfig(&cfg))
	if err != nil {
		return err
	}
	defer be.Close()

	res, err := seed.Load(ctx, be.Store, fixture, time.Now().UTC(), batchSize, logger)
	if err != nil {
		return err
	}
	for kind, n := range res.Loaded {
		logger.Info("Seeded kind", zap.String("kind", string(kind)), zap.Int("records", n))
	}
	return nil
}
