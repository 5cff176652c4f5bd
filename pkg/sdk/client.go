package musedex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/text/language"

	"github.com/kailas-cloud/musedex/internal/backend"
	"github.com/kailas-cloud/musedex/internal/domain/catalog"
	"github.com/kailas-cloud/musedex/internal/domain/search/request"
	"github.com/kailas-cloud/musedex/internal/domain/search/result"
	domtrend "github.com/kailas-cloud/musedex/internal/domain/trending"
	"github.com/kailas-cloud/musedex/internal/seed"
	healthuc "github.com/kailas-cloud/musedex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/musedex/internal/usecase/search"
	trendinguc "github.com/kailas-cloud/musedex/internal/usecase/trending"
)

const defaultReadinessTimeout = 10 * time.Second

// Internal interfaces, swapped out in tests.
type searchUseCase interface {
	Search(ctx context.Context, req *request.Request) (result.Page, error)
}

type trendingUseCase interface {
	TopPicks(ctx context.Context) ([]domtrend.Candidate, error)
}

// Client is the musedex SDK entry point.
type Client struct {
	backend     *backend.Backend
	limits      request.Limits
	searchSvc   searchUseCase
	trendingSvc trendingUseCase
	healthSvc   healthUseCase
	obs         *observer
}

// New creates a Client and connects to the catalog store.
// The provided context is used for the readiness check and fixture load.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		keyPrefix: "musedex:",
		locale:    language.Und,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.driver == "" {
		return nil, errors.New("musedex: catalog store required (use WithRedis, WithPostgres or WithMemory)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	be, err := backend.Open(ctx, backend.Options{
		Driver:           cfg.driver,
		Addrs:            cfg.addrs,
		Password:         cfg.password,
		DSN:              cfg.dsn,
		KeyPrefix:        cfg.keyPrefix,
		ReadinessTimeout: defaultReadinessTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("musedex: %w", err)
	}

	if cfg.fixture != "" {
		if err := loadFixture(ctx, be.Store, cfg.fixture); err != nil {
			be.Close()
			return nil, fmt.Errorf("musedex: %w", err)
		}
	}

	return wireClient(be, cfg, obs), nil
}

func loadFixture(ctx context.Context, w seed.Writer, path string) error {
	f, err := seed.ReadFile(path)
	if err != nil {
		return err
	}
	if _, err := seed.Load(ctx, w, f, time.Now().UTC(), seed.DefaultBatchSize, nil); err != nil {
		return fmt.Errorf("load fixture: %w", err)
	}
	return nil
}

func wireClient(be *backend.Backend, cfg *clientConfig, obs *observer) *Client {
	return &Client{
		backend: be,
		limits: request.Limits{
			DefaultPageSize: cfg.defaultPageSize,
			MaxPageSize:     cfg.maxPageSize,
		},
		searchSvc:   searchuc.New(be.Store, searchuc.DefaultFanoutTimeout, cfg.locale),
		trendingSvc: trendinguc.New(be.Store, trendinguc.Config{}),
		healthSvc:   healthuc.New(be.Store, nil, be.Store),
		obs:         obs,
	}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.backend != nil {
		c.backend.Close()
	}
}

// SearchOption narrows a search.
type SearchOption func(*searchParams)

type searchParams struct {
	kind     Kind
	page     int
	pageSize int
}

// InKind restricts the search to one kind. Default: KindAll.
func InKind(k Kind) SearchOption {
	return func(p *searchParams) { p.kind = k }
}

// Page selects the 1-based page.
func Page(n int) SearchOption {
	return func(p *searchParams) { p.page = n }
}

// PageSize sets the number of results per kind and page.
func PageSize(n int) SearchOption {
	return func(p *searchParams) { p.pageSize = n }
}

// Search runs a case-insensitive substring search. Exact matches of the
// display field come first, the rest follow in collation order.
func (c *Client) Search(ctx context.Context, query string, opts ...SearchOption) (page SearchPage, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	var p searchParams
	for _, o := range opts {
		o(&p)
	}
	req, err := request.New(query, string(p.kind), p.page, p.pageSize, c.limits)
	if err != nil {
		return SearchPage{}, fmt.Errorf("search: %w", err)
	}

	res, err := c.searchSvc.Search(ctx, &req)
	if err != nil {
		return SearchPage{}, fmt.Errorf("search: %w", err)
	}
	return fromResultPage(res), nil
}

// TopPicks returns the trending albums of the last month, or a random
// selection when none qualifies.
func (c *Client) TopPicks(ctx context.Context) (albums []Album, err error) {
	start := time.Now()
	defer func() { c.obs.observe("top_picks", start, err) }()

	candidates, err := c.trendingSvc.TopPicks(ctx)
	if err != nil {
		return nil, fmt.Errorf("top picks: %w", err)
	}
	albums = make([]Album, len(candidates))
	for i := range candidates {
		albums[i] = fromCandidate(&candidates[i])
	}
	return albums, nil
}

func fromResultPage(p result.Page) SearchPage {
	hits := make([]SearchHit, len(p.Results))
	for i := range p.Results {
		r := &p.Results[i]
		hits[i] = SearchHit{
			Kind:   Kind(r.Kind()),
			ID:     r.Record().ID(),
			Fields: fieldsOf(r.Record()),
		}
	}
	return SearchPage{
		Hits:       hits,
		Total:      p.Total,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: p.TotalPages,
	}
}

func fieldsOf(rec catalog.Record) map[string]any {
	fields := rec.Fields()
	for k, v := range fields {
		if ref, ok := v.(catalog.Record); ok {
			nested := fieldsOf(ref)
			nested["id"] = ref.ID()
			fields[k] = nested
		}
	}
	return fields
}

func fromCandidate(c *domtrend.Candidate) Album {
	return Album{
		ID:          c.AlbumRef,
		Title:       c.Title,
		Performer:   c.PerformerName,
		CoverArt:    c.CoverArt,
		Genre:       c.Genre,
		ReleaseDate: c.ReleaseDate,
		TotalPlays:  c.TotalPlays,
	}
}
