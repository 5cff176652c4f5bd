package trending

import (
	"context"

	"github.com/kailas-cloud/musedex/internal/domain/pipeline"
)

// Aggregator runs pipelines against the catalog store.
type Aggregator interface {
	Aggregate(ctx context.Context, p *pipeline.Pipeline) ([]pipeline.Doc, error)
}
