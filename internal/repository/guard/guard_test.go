package guard

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/musedex/internal/domain"
	domcat "github.com/kailas-cloud/musedex/internal/domain/catalog"
	"github.com/kailas-cloud/musedex/internal/domain/pipeline"
	"github.com/kailas-cloud/musedex/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterCatalogMetrics()
	os.Exit(m.Run())
}

type mockCatalog struct {
	err   error
	calls int
}

func (m *mockCatalog) Ping(_ context.Context) error { return m.err }

func (m *mockCatalog) FindByField(
	_ context.Context, kind domcat.Kind, _, _ string, _, _ int, _ bool,
) ([]domcat.Record, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return []domcat.Record{domcat.Reconstruct(kind, "x", nil)}, nil
}

func (m *mockCatalog) CountByField(_ context.Context, _ domcat.Kind, _, _ string) (int, error) {
	m.calls++
	return 3, m.err
}

func (m *mockCatalog) Aggregate(_ context.Context, _ *pipeline.Pipeline) ([]pipeline.Doc, error) {
	m.calls++
	return []pipeline.Doc{{"id": "a"}}, m.err
}

func breakerConfig(backend string) Config {
	return Config{
		Backend:          backend,
		Enabled:          true,
		FailureThreshold: 2,
		OpenTimeout:      time.Minute,
		HalfOpenRequests: 1,
	}
}

func TestGuard_PassesResults(t *testing.T) {
	inner := &mockCatalog{}
	g := New(inner, breakerConfig("pass"), zap.NewNop())
	ctx := context.Background()

	recs, err := g.FindByField(ctx, domcat.Track, "title", "x", 1, 10, false)
	if err != nil || len(recs) != 1 {
		t.Fatalf("find = %v, %v", recs, err)
	}
	n, err := g.CountByField(ctx, domcat.Track, "title", "x")
	if err != nil || n != 3 {
		t.Fatalf("count = %d, %v", n, err)
	}
	docs, err := g.Aggregate(ctx, pipeline.From(domcat.Album).Sample(1).MustBuild())
	if err != nil || len(docs) != 1 {
		t.Fatalf("aggregate = %v, %v", docs, err)
	}

	if testutil.CollectAndCount(metrics.CatalogOpDuration) == 0 {
		t.Error("expected catalog op observations")
	}
}

func TestGuard_OpensAfterConsecutiveFaults(t *testing.T) {
	inner := &mockCatalog{err: errors.New("connection refused")}
	g := New(inner, breakerConfig("trip"), zap.NewNop())
	ctx := context.Background()

	for range 2 {
		if _, err := g.CountByField(ctx, domcat.Track, "title", "x"); err == nil {
			t.Fatal("expected store error")
		}
	}
	if !g.Open() {
		t.Fatal("expected breaker to be open")
	}

	_, err := g.CountByField(ctx, domcat.Track, "title", "x")
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable while open, got %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("open breaker must not reach the store, calls = %d", inner.calls)
	}
	if v := testutil.ToFloat64(metrics.CatalogBreakerState.WithLabelValues("trip")); v != 2 {
		t.Errorf("breaker state gauge = %f, want 2", v)
	}
}

func TestGuard_CancellationIsNotAFault(t *testing.T) {
	inner := &mockCatalog{err: context.Canceled}
	g := New(inner, breakerConfig("cancel"), zap.NewNop())

	for range 5 {
		_, _ = g.FindByField(context.Background(), domcat.Track, "title", "x", 1, 10, false)
	}
	if g.Open() {
		t.Fatal("cancellations must not open the breaker")
	}
}

func TestGuard_UnsupportedIsNotAFault(t *testing.T) {
	inner := &mockCatalog{err: pipeline.ErrUnsupported}
	g := New(inner, breakerConfig("unsupported"), zap.NewNop())
	p := pipeline.From(domcat.Album).Sample(1).MustBuild()

	for range 5 {
		_, _ = g.Aggregate(context.Background(), p)
	}
	if g.Open() {
		t.Fatal("unsupported shapes must not open the breaker")
	}
}

func TestGuard_Disabled(t *testing.T) {
	inner := &mockCatalog{err: errors.New("down")}
	g := New(inner, Config{Backend: "off"}, nil)

	for range 10 {
		_, _ = g.CountByField(context.Background(), domcat.Track, "title", "x")
	}
	if g.Open() {
		t.Fatal("disabled breaker never opens")
	}
	if inner.calls != 10 {
		t.Errorf("calls = %d, want 10", inner.calls)
	}
	if err := g.Ping(context.Background()); err == nil {
		t.Error("ping must reach the store")
	}
}
