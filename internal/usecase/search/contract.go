package search

import (
	"context"

	"github.com/kailas-cloud/musedex/internal/domain/catalog"
)

// Catalog defines the storage contract for federated search.
type Catalog interface {
	// FindByField returns one page of records of kind whose field contains
	// pattern as a case-insensitive literal substring. With populate the
	// kind's reference field holds the referenced record.
	FindByField(
		ctx context.Context, kind catalog.Kind, field, pattern string,
		page, pageSize int, populate bool,
	) ([]catalog.Record, error)

	// CountByField returns the number of matches regardless of pagination.
	CountByField(ctx context.Context, kind catalog.Kind, field, pattern string) (int, error)
}
