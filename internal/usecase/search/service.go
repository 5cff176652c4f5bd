package search

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/kailas-cloud/musedex/internal/domain/catalog"
	"github.com/kailas-cloud/musedex/internal/domain/search/request"
	"github.com/kailas-cloud/musedex/internal/domain/search/result"
	"github.com/kailas-cloud/musedex/internal/logger"
)

// DefaultFanoutTimeout bounds a federated query when no timeout is configured.
const DefaultFanoutTimeout = 2 * time.Second

// Service runs federated search across the catalog kinds.
type Service struct {
	catalog Catalog
	timeout time.Duration
	locale  language.Tag
}

// New creates a search service. A zero timeout uses DefaultFanoutTimeout.
func New(c Catalog, timeout time.Duration, locale language.Tag) *Service {
	if timeout <= 0 {
		timeout = DefaultFanoutTimeout
	}
	return &Service{catalog: c, timeout: timeout, locale: locale}
}

// Search queries every kind the request targets, merges the hits in kind
// order and ranks them: exact display matches first, then by collation.
func (s *Service) Search(ctx context.Context, req *request.Request) (result.Page, error) {
	ctx = logger.With(ctx,
		zap.String("query", req.Query()),
		zap.Bool("all_kinds", req.All()),
		zap.Int("page", req.Page()),
	)
	byKind, err := s.fanOut(ctx, req)
	if err != nil {
		logger.FromContext(ctx).Error("Federated search failed", zap.Error(err))
		return result.Page{}, err
	}

	var (
		merged []result.Result
		total  int
	)
	for _, kind := range req.Kinds() {
		kr := byKind[kind]
		total += kr.Count
		for _, rec := range kr.Records {
			merged = append(merged, result.New(kind, rec))
		}
	}
	rank(merged, req.Query(), s.locale)
	logger.FromContext(ctx).Debug("Federated search completed",
		zap.Int("results", len(merged)),
		zap.Int("total", total),
	)

	return result.NewPage(merged, total, req.Page(), req.PageSize()), nil
}

// KindResult is the outcome of one kind's find and count.
type KindResult struct {
	Records []catalog.Record
	Count   int
}
