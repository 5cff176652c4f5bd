package health

import (
	"context"

	"github.com/kailas-cloud/musedex/internal/domain/catalog"
)

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// BreakerState reports whether the catalog circuit breaker is open.
type BreakerState interface {
	Open() bool
}

// CatalogSizer reports how many records each kind holds.
type CatalogSizer interface {
	Size(ctx context.Context) (map[catalog.Kind]int, error)
}
