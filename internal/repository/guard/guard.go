// Package guard decorates a catalog store with a circuit breaker, per
// operation metrics and failure logging.
package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/musedex/internal/domain"
	domcat "github.com/kailas-cloud/musedex/internal/domain/catalog"
	"github.com/kailas-cloud/musedex/internal/domain/pipeline"
	"github.com/kailas-cloud/musedex/internal/metrics"
)

// Operation labels.
const (
	OpFind      = "find"
	OpCount     = "count"
	OpAggregate = "aggregate"
)

// Metric status labels.
const (
	statusOK       = "ok"
	statusError    = "error"
	statusRejected = "rejected"
)

// Catalog is the store contract the guard wraps and exposes.
type Catalog interface {
	Ping(ctx context.Context) error
	FindByField(
		ctx context.Context, kind domcat.Kind, field, pattern string, page, pageSize int, populate bool,
	) ([]domcat.Record, error)
	CountByField(ctx context.Context, kind domcat.Kind, field, pattern string) (int, error)
	Aggregate(ctx context.Context, p *pipeline.Pipeline) ([]pipeline.Doc, error)
}

// Config controls the breaker.
type Config struct {
	Backend          string // metrics and breaker name
	Enabled          bool
	FailureThreshold uint32 // consecutive store faults that open the breaker
	OpenTimeout      time.Duration
	HalfOpenRequests uint32
}

// Guard is a Catalog decorator.
type Guard struct {
	inner   Catalog
	cb      *gobreaker.CircuitBreaker[any] // nil when disabled
	backend string
	logger  *zap.Logger
}

// New wraps inner. With the breaker disabled only metrics and logging apply.
func New(inner Catalog, cfg Config, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Guard{inner: inner, backend: cfg.Backend, logger: logger}
	if !cfg.Enabled {
		return g
	}

	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 1
	}
	g.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "catalog-" + cfg.Backend,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CatalogBreakerState.WithLabelValues(cfg.Backend).Set(float64(to))
			logger.Warn("Catalog breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	metrics.CatalogBreakerState.WithLabelValues(cfg.Backend).Set(float64(gobreaker.StateClosed))
	return g
}

// isSuccessful reports whether err leaves the store's health untouched:
// caller cancellation and requests the store rejected by shape are not faults.
func isSuccessful(err error) bool {
	return err == nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, pipeline.ErrUnsupported) ||
		errors.Is(err, domain.ErrInvalidArgument)
}

// Open reports whether the breaker currently rejects calls.
func (g *Guard) Open() bool {
	return g.cb != nil && g.cb.State() == gobreaker.StateOpen
}

// Ping checks connectivity, bypassing the breaker.
func (g *Guard) Ping(ctx context.Context) error {
	return g.inner.Ping(ctx)
}

// FindByField delegates to the wrapped store.
func (g *Guard) FindByField(
	ctx context.Context, kind domcat.Kind, field, pattern string, page, pageSize int, populate bool,
) ([]domcat.Record, error) {
	return call(g, OpFind, string(kind), func() ([]domcat.Record, error) {
		return g.inner.FindByField(ctx, kind, field, pattern, page, pageSize, populate)
	})
}

// CountByField delegates to the wrapped store.
func (g *Guard) CountByField(ctx context.Context, kind domcat.Kind, field, pattern string) (int, error) {
	return call(g, OpCount, string(kind), func() (int, error) {
		return g.inner.CountByField(ctx, kind, field, pattern)
	})
}

// Aggregate delegates to the wrapped store.
func (g *Guard) Aggregate(ctx context.Context, p *pipeline.Pipeline) ([]pipeline.Doc, error) {
	return call(g, OpAggregate, string(p.Source), func() ([]pipeline.Doc, error) {
		return g.inner.Aggregate(ctx, p)
	})
}

func call[T any](g *Guard, op, kind string, fn func() (T, error)) (T, error) {
	start := time.Now()

	var (
		out T
		err error
	)
	if g.cb == nil {
		out, err = fn()
	} else {
		var v any
		v, err = g.cb.Execute(func() (any, error) {
			res, ferr := fn()
			return res, ferr
		})
		if err == nil {
			out, _ = v.(T)
		}
	}

	status := statusOK
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		status = statusRejected
		err = fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
	case err != nil:
		status = statusError
	}
	duration := time.Since(start)
	metrics.CatalogOpDuration.WithLabelValues(op, kind, status).Observe(duration.Seconds())

	if err != nil && !errors.Is(err, context.Canceled) {
		g.logger.Warn("Catalog operation failed",
			zap.String("backend", g.backend),
			zap.String("op", op),
			zap.String("kind", kind),
			zap.String("status", status),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
	}
	return out, err
}
