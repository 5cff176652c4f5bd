package chi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/kailas-cloud/musedex/internal/domain/catalog"
	"github.com/kailas-cloud/musedex/internal/domain/search/request"
	"github.com/kailas-cloud/musedex/internal/metrics"
	"github.com/kailas-cloud/musedex/internal/repository/catalogmem"
	healthuc "github.com/kailas-cloud/musedex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/musedex/internal/usecase/search"
	trendinguc "github.com/kailas-cloud/musedex/internal/usecase/trending"
)

func TestMain(m *testing.M) {
	metrics.RegisterCatalogMetrics()
	os.Exit(m.Run())
}

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// --- Mocks ---

type failingCatalog struct{ err error }

func (f failingCatalog) FindByField(
	context.Context, catalog.Kind, string, string, int, int, bool,
) ([]catalog.Record, error) {
	return nil, f.err
}

func (f failingCatalog) CountByField(context.Context, catalog.Kind, string, string) (int, error) {
	return 0, f.err
}

type mockPinger struct{ err error }

func (m mockPinger) Ping(context.Context) error { return m.err }

// --- Fixtures ---

func seededStore(t *testing.T) *catalogmem.Store {
	t.Helper()
	store := catalogmem.New()
	put := func(kind catalog.Kind, id string, raw map[string]any) {
		t.Helper()
		rec, err := catalog.New(kind, id, raw)
		if err != nil {
			t.Fatalf("new %s: %v", id, err)
		}
		if err := store.Put(context.Background(), rec); err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}
	put(catalog.Performer, "p1", map[string]any{"name": "Test Pilots"})
	put(catalog.Account, "u1", map[string]any{"handle": "tester", "fullName": "Tess"})
	put(catalog.Track, "t1", map[string]any{
		"title": "Test", "performer": "p1", "album": "a1", "plays": 500,
		"releaseDate": now.AddDate(0, 0, -5),
	})
	put(catalog.Album, "a1", map[string]any{
		"title": "First Flight", "performer": "p1", "genre": []string{"rock"},
		"releaseDate": now.AddDate(0, 0, -5),
	})
	return store
}

func newTestRouter(t *testing.T, store *catalogmem.Store) http.Handler {
	t.Helper()
	srv := NewServer(
		searchuc.New(store, time.Second, language.Und),
		trendinguc.New(store, trendinguc.Config{Now: func() time.Time { return now }}),
		healthuc.New(store, nil, store),
		request.DefaultLimits(),
		zap.NewNop(),
	)
	return NewRouter(srv, zap.NewNop())
}

func do(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

// --- Tests ---

func TestSearch_Federated(t *testing.T) {
	h := newTestRouter(t, seededStore(t))

	rr := do(t, h, "/search?query=test")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}

	resp := decode[SearchResponse](t, rr)
	if resp.Total != 3 || resp.Page != 1 || resp.PageSize != 10 || resp.TotalPages != 1 {
		t.Errorf("envelope = %+v", resp)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("expected 3 results, got %v", resp.Results)
	}
	first := resp.Results[0]
	if first["kind"] != "track" || first["id"] != "t1" || first["title"] != "Test" {
		t.Errorf("exact match not first: %v", first)
	}
	performer, ok := first["performer"].(map[string]any)
	if !ok || performer["id"] != "p1" || performer["name"] != "Test Pilots" {
		t.Errorf("performer not populated: %v", first["performer"])
	}
	if _, ok := first["releaseDate"].(string); !ok {
		t.Errorf("releaseDate = %v, want RFC 3339 string", first["releaseDate"])
	}
}

func TestSearch_SingleKindAndPaging(t *testing.T) {
	h := newTestRouter(t, seededStore(t))

	rr := do(t, h, "/search?query=TEST&type=account&page=abc&limit=500")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	resp := decode[SearchResponse](t, rr)
	if resp.Page != 1 || resp.PageSize != request.MaxPageSize {
		t.Errorf("page = %d, pageSize = %d", resp.Page, resp.PageSize)
	}
	if resp.Total != 1 || len(resp.Results) != 1 || resp.Results[0]["kind"] != "account" {
		t.Errorf("results = %+v", resp)
	}
}

func TestSearch_InvalidArgument(t *testing.T) {
	h := newTestRouter(t, seededStore(t))

	tests := []struct {
		name    string
		target  string
		message string
	}{
		{"missing query", "/search", request.MsgQueryRequired},
		{"empty query", "/search?query=", request.MsgQueryRequired},
		{"bogus type", "/search?query=x&type=bogus", request.MsgInvalidType},
		{"album is not searchable", "/search?query=x&type=album", request.MsgInvalidType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, tt.target)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
			resp := decode[ErrorResponse](t, rr)
			if resp.Code != CodeInvalidArgument || resp.Message != tt.message {
				t.Errorf("error = %+v", resp)
			}
		})
	}
}

func TestSearch_StoreFailureHidesCause(t *testing.T) {
	srv := NewServer(
		searchuc.New(failingCatalog{err: errors.New("dial tcp 10.0.0.7:6379: refused")}, time.Second, language.Und),
		nil, nil, request.DefaultLimits(), zap.NewNop(),
	)
	rr := do(t, NewRouter(srv, zap.NewNop()), "/search?query=x")

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "10.0.0.7") {
		t.Errorf("internal detail leaked: %s", rr.Body)
	}
	resp := decode[ErrorResponse](t, rr)
	if resp.Code != CodeInternalError || resp.Message != "internal error" {
		t.Errorf("error = %+v", resp)
	}
}

func TestTopPicks(t *testing.T) {
	h := newTestRouter(t, seededStore(t))

	rr := do(t, h, "/discovery/top-picks")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	resp := decode[TopPicksResponse](t, rr)
	if len(resp.TopAlbums) != 1 {
		t.Fatalf("topAlbums = %+v", resp.TopAlbums)
	}
	a := resp.TopAlbums[0]
	if a.ID != "a1" || a.Title != "First Flight" || a.Performer != "Test Pilots" {
		t.Errorf("album = %+v", a)
	}
	if a.ReleaseDate == nil || len(a.Genre) != 1 {
		t.Errorf("album fields missing: %+v", a)
	}
}

func TestTopPicks_EmptyCatalog(t *testing.T) {
	rr := do(t, newTestRouter(t, catalogmem.New()), "/discovery/top-picks")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"topAlbums":[]}` {
		t.Errorf("body = %s", got)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name   string
		ping   error
		status int
		want   string
	}{
		{"healthy", nil, http.StatusOK, "ok"},
		{"database down", errors.New("down"), http.StatusServiceUnavailable, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(nil, nil, healthuc.New(mockPinger{err: tt.ping}, nil, nil), request.DefaultLimits(), zap.NewNop())
			rr := do(t, NewRouter(srv, zap.NewNop()), "/health")
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			resp := decode[HealthResponse](t, rr)
			if resp.Status != tt.want {
				t.Errorf("status = %q, want %q", resp.Status, tt.want)
			}
			if _, ok := resp.Checks[healthuc.CheckDatabase]; !ok {
				t.Errorf("checks = %v", resp.Checks)
			}
		})
	}
}

func TestHealthCheck_CatalogSizes(t *testing.T) {
	rr := do(t, newTestRouter(t, seededStore(t)), "/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decode[HealthResponse](t, rr)
	if resp.Checks[healthuc.CheckCatalog] != "ok" {
		t.Errorf("checks = %v", resp.Checks)
	}
	if resp.Catalog["album"] == 0 || resp.Catalog["track"] == 0 {
		t.Errorf("catalog = %v", resp.Catalog)
	}
}

func TestRouter_MetricsAndNotFound(t *testing.T) {
	h := newTestRouter(t, seededStore(t))

	_ = do(t, h, "/search?query=test")
	rr := do(t, h, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "musedex_http_requests_total") {
		t.Error("http metrics not exported")
	}

	rr = do(t, h, "/collections")
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d", rr.Code)
	}
}

func TestJSONRecoverer(t *testing.T) {
	h := JSONRecoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := do(t, h, "/")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decode[ErrorResponse](t, rr)
	if resp.Code != CodeInternalError {
		t.Errorf("error = %+v", resp)
	}
}
