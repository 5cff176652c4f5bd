package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Catalog and discovery Prometheus metrics.
var (
	CatalogOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "musedex",
			Name:      "catalog_op_duration_seconds",
			Help:      "Catalog store operation duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"op", "kind", "status"}, // status: ok / error / rejected
	)

	CatalogBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "musedex",
			Name:      "catalog_breaker_state",
			Help:      "Catalog circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"backend"},
	)

	SearchFanoutDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "musedex",
			Name:      "search_fanout_duration_seconds",
			Help:      "Federated search fan-out duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"mode", "status"}, // mode: all / single
	)

	TrendingSourceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "musedex",
			Name:      "trending_source_total",
			Help:      "Trending lists served, by how they were produced",
		},
		[]string{"source"}, // "ranked" / "sample"
	)
)

var registerCatalogOnce sync.Once

// RegisterCatalogMetrics registers catalog metrics with the default registry.
// Safe to call more than once.
func RegisterCatalogMetrics() {
	registerCatalogOnce.Do(func() {
		prometheus.MustRegister(
			CatalogOpDuration,
			CatalogBreakerState,
			SearchFanoutDuration,
			TrendingSourceTotal,
		)
	})
}
