// Package backend opens the configured catalog store.
package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/musedex/internal/config"
	"github.com/kailas-cloud/musedex/internal/domain/catalog"
	logpkg "github.com/kailas-cloud/musedex/internal/logger"
	dbRedis "github.com/kailas-cloud/musedex/internal/db/redis"
	catalogrepo "github.com/kailas-cloud/musedex/internal/repository/catalog"
	"github.com/kailas-cloud/musedex/internal/repository/catalogmem"
	"github.com/kailas-cloud/musedex/internal/repository/catalogpg"
	"github.com/kailas-cloud/musedex/internal/repository/guard"
)

// Store is the full catalog surface every driver implements.
type Store interface {
	guard.Catalog
	EnsureSchema(ctx context.Context) error
	Put(ctx context.Context, recs ...catalog.Record) error
	Size(ctx context.Context) (map[catalog.Kind]int, error)
}

// Options select and configure a driver.
type Options struct {
	Driver           string
	Addrs            []string
	Password         string
	DSN              string
	MaxConns         int32
	KeyPrefix        string
	ReadinessTimeout time.Duration
}

// FromConfig maps the database and storage sections to Options.
func FromConfig(cfg *config.Config) Options {
	return Options{
		Driver:           cfg.Database.Driver,
		Addrs:            cfg.Database.Addrs,
		Password:         cfg.Database.Password,
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		KeyPrefix:        cfg.Storage.KeyPrefix,
		ReadinessTimeout: time.Duration(cfg.Database.ReadinessTimeout) * time.Second,
	}
}

// Backend is an open catalog store.
type Backend struct {
	Store Store
	close func()
}

// Close releases the driver's connections.
func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// Open connects the driver named in opts and waits until it is ready.
func Open(ctx context.Context, opts Options) (*Backend, error) {
	if opts.ReadinessTimeout <= 0 {
		opts.ReadinessTimeout = 10 * time.Second
	}
	switch opts.Driver {
	case config.DriverMemory:
		return &Backend{Store: catalogmem.New()}, nil
	case config.DriverRedis:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:      opts.Addrs,
			Password:   opts.Password,
			ClientName: logpkg.Service,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		if err := store.WaitForReady(ctx, opts.ReadinessTimeout); err != nil {
			store.Close()
			return nil, err
		}
		return &Backend{Store: catalogrepo.New(store, opts.KeyPrefix), close: store.Close}, nil
	case config.DriverPostgres:
		ctx, cancel := context.WithTimeout(ctx, opts.ReadinessTimeout)
		defer cancel()
		repo, err := catalogpg.Open(ctx, opts.DSN, opts.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return &Backend{Store: repo, close: repo.Close}, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", opts.Driver)
	}
}
