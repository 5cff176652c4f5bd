package pipeline

import (
	"time"

	"github.com/kailas-cloud/musedex/internal/domain/catalog"
)

// Builder is a fluent builder for pipelines.
type Builder struct {
	p Pipeline
}

// From starts a pipeline over the documents of kind.
func From(kind catalog.Kind) *Builder {
	return &Builder{p: Pipeline{Source: kind}}
}

// Lookup joins documents of kind where foreign equals local into as.
func (b *Builder) Lookup(from catalog.Kind, local, foreign, as string) *Builder {
	b.p.Stages = append(b.p.Stages, Lookup{From: from, LocalField: local, ForeignField: foreign, As: as})
	return b
}

// Sum adds as = sum of array[*].field.
func (b *Builder) Sum(array, field, as string) *Builder {
	b.p.Stages = append(b.p.Stages, Rollup{Op: Sum, Array: array, Field: field, As: as})
	return b
}

// Avg adds as = average of array[*].field.
func (b *Builder) Avg(array, field, as string) *Builder {
	b.p.Stages = append(b.p.Stages, Rollup{Op: Avg, Array: array, Field: field, As: as})
	return b
}

// Since keeps documents whose time field is at or after t.
func (b *Builder) Since(field string, t time.Time) *Builder {
	b.p.Stages = append(b.p.Stages, Match{Field: field, Op: GTE, Value: catalog.Millis(t)})
	return b
}

// Where keeps documents whose numeric field satisfies op against v.
func (b *Builder) Where(field string, op Compare, v float64) *Builder {
	b.p.Stages = append(b.p.Stages, Match{Field: field, Op: op, Value: v})
	return b
}

// SortDesc orders documents by field, largest first.
func (b *Builder) SortDesc(field string) *Builder {
	b.p.Stages = append(b.p.Stages, Sort{Field: field, Desc: true})
	return b
}

// SortAsc orders documents by field, smallest first.
func (b *Builder) SortAsc(field string) *Builder {
	b.p.Stages = append(b.p.Stages, Sort{Field: field})
	return b
}

// Limit keeps the first n documents.
func (b *Builder) Limit(n int) *Builder {
	b.p.Stages = append(b.p.Stages, Limit{N: n})
	return b
}

// Sample picks n documents at random.
func (b *Builder) Sample(n int) *Builder {
	b.p.Stages = append(b.p.Stages, Sample{N: n})
	return b
}

// Project reshapes documents to the given projections.
func (b *Builder) Project(fields ...Projection) *Builder {
	b.p.Stages = append(b.p.Stages, Project{Fields: fields})
	return b
}

// Field is shorthand for a Projection.
func Field(as, path string) Projection { return Projection{As: as, Path: path} }

// Build validates and returns the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.p.Validate(); err != nil {
		return nil, err
	}
	p := b.p
	return &p, nil
}

// MustBuild calls Build and panics on error.
func (b *Builder) MustBuild() *Pipeline {
	p, err := b.Build()
	if err != nil {
		panic(err)
	}
	return p
}
