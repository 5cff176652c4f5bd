package search

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/musedex/internal/domain"
	"github.com/kailas-cloud/musedex/internal/domain/catalog"
	"github.com/kailas-cloud/musedex/internal/domain/search/request"
	"github.com/kailas-cloud/musedex/internal/metrics"
)

// fanOut issues a find and a count per kind concurrently. The first failure
// cancels the rest and fails the whole query; there are no partial results.
func (s *Service) fanOut(ctx context.Context, req *request.Request) (map[catalog.Kind]KindResult, error) {
	start := time.Now()
	mode := "single"
	if req.All() {
		mode = "all"
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	kinds := req.Kinds()
	found := make([][]catalog.Record, len(kinds))
	counts := make([]int, len(kinds))

	// Pages past the result window are empty; only the counts are fetched.
	_, inWindow := req.Offset()

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		field := kind.SearchField()
		if inWindow {
			g.Go(func() error {
				recs, err := s.catalog.FindByField(gctx, kind, field, req.Query(), req.Page(), req.PageSize(), true)
				if err != nil {
					return fmt.Errorf("find %s: %w", kind, err)
				}
				found[i] = recs
				return nil
			})
		}
		g.Go(func() error {
			n, err := s.catalog.CountByField(gctx, kind, field, req.Query())
			if err != nil {
				return fmt.Errorf("count %s: %w", kind, err)
			}
			counts[i] = n
			return nil
		})
	}

	err := g.Wait()
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.SearchFanoutDuration.WithLabelValues(mode, status).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, domain.NewStoreError("search", err)
	}

	out := make(map[catalog.Kind]KindResult, len(kinds))
	for i, kind := range kinds {
		out[kind] = KindResult{Records: found[i], Count: counts[i]}
	}
	return out, nil
}
