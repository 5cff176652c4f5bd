// Package pipeline describes multi-stage aggregations over the catalog that
// backends push down to the store engine.
package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/musedex/internal/domain/catalog"
)

// ErrUnsupported is returned by a backend that cannot push down a pipeline shape.
var ErrUnsupported = errors.New("pipeline: unsupported stage")

// Doc is a pipeline document. Values are string, float64, bool, []any, Doc
// or nil. Times are epoch milliseconds; the record id lives under "id".
type Doc map[string]any

// IDField is the document key holding the record id.
const IDField = "id"

// Stage is one step of a pipeline.
type Stage interface {
	stage() string
}

// Lookup attaches to each document the foreign documents whose ForeignField
// equals its LocalField. Either side may be a list, which matches on any element.
type Lookup struct {
	From         catalog.Kind
	LocalField   string
	ForeignField string
	As           string
}

// RollupOp is an accumulator over a looked-up array.
type RollupOp string

// Rollup operators.
const (
	Sum RollupOp = "sum"
	Avg RollupOp = "avg"
)

// Rollup sets As to Op over the numeric Field of every element of Array.
// The sum of nothing is 0; the average of nothing is absent.
type Rollup struct {
	Op    RollupOp
	Array string
	Field string
	As    string
}

// Compare is a numeric comparison operator.
type Compare string

// Comparison operators.
const (
	GTE Compare = ">="
	LTE Compare = "<="
)

// Match keeps documents whose numeric Field satisfies Op against Value.
// Documents where Field is absent or not a number are dropped.
type Match struct {
	Field string
	Op    Compare
	Value float64
}

// Sort orders documents by a numeric field. Absent values sort lowest.
type Sort struct {
	Field string
	Desc  bool
}

// Limit keeps the first N documents.
type Limit struct {
	N int
}

// Sample picks N documents uniformly at random.
type Sample struct {
	N int
}

// Projection copies the value at Path to As. Path segments are separated by
// dots; numeric segments index into lists.
type Projection struct {
	As   string
	Path string
}

// Project reshapes each document to the id plus the listed projections.
type Project struct {
	Fields []Projection
}

func (Lookup) stage() string  { return "lookup" }
func (Rollup) stage() string  { return "rollup" }
func (Match) stage() string   { return "match" }
func (Sort) stage() string    { return "sort" }
func (Limit) stage() string   { return "limit" }
func (Sample) stage() string  { return "sample" }
func (Project) stage() string { return "project" }

// StageName returns the short name of a stage for logs and errors.
func StageName(s Stage) string { return s.stage() }

// Pipeline is a validated aggregation over the documents of Source.
type Pipeline struct {
	Source catalog.Kind
	Stages []Stage
}

// Validate checks that the pipeline is well-formed.
func (p *Pipeline) Validate() error {
	if !p.Source.IsValid() {
		return fmt.Errorf("pipeline source %q is not a catalog kind", p.Source)
	}
	if len(p.Stages) == 0 {
		return errors.New("pipeline has no stages")
	}
	for i, s := range p.Stages {
		if err := validateStage(s); err != nil {
			return fmt.Errorf("stage %d (%s): %w", i, s.stage(), err)
		}
	}
	return nil
}

func validateStage(s Stage) error {
	switch st := s.(type) {
	case Lookup:
		if !st.From.IsValid() {
			return fmt.Errorf("unknown kind %q", st.From)
		}
		if st.LocalField == "" || st.ForeignField == "" || st.As == "" {
			return errors.New("local, foreign and output fields are required")
		}
	case Rollup:
		if st.Op != Sum && st.Op != Avg {
			return fmt.Errorf("unknown operator %q", st.Op)
		}
		if st.Array == "" || st.Field == "" || st.As == "" {
			return errors.New("array, field and output are required")
		}
	case Match:
		if st.Field == "" {
			return errors.New("field is required")
		}
		if st.Op != GTE && st.Op != LTE {
			return fmt.Errorf("unknown comparison %q", st.Op)
		}
	case Sort:
		if st.Field == "" {
			return errors.New("field is required")
		}
	case Limit:
		if st.N <= 0 {
			return fmt.Errorf("limit must be positive, got %d", st.N)
		}
	case Sample:
		if st.N <= 0 {
			return fmt.Errorf("sample size must be positive, got %d", st.N)
		}
	case Project:
		if len(st.Fields) == 0 {
			return errors.New("at least one projection is required")
		}
		for _, f := range st.Fields {
			if f.As == "" || f.Path == "" {
				return errors.New("projection needs output name and path")
			}
		}
	default:
		return fmt.Errorf("unknown stage %T", s)
	}
	return nil
}

// String returns a compact debug representation of the pipeline.
func (p *Pipeline) String() string {
	parts := []string{string(p.Source)}
	for _, s := range p.Stages {
		switch st := s.(type) {
		case Lookup:
			parts = append(parts, fmt.Sprintf("lookup(%s.%s=%s as %s)", st.From, st.ForeignField, st.LocalField, st.As))
		case Rollup:
			parts = append(parts, fmt.Sprintf("%s(%s.%s as %s)", st.Op, st.Array, st.Field, st.As))
		case Match:
			parts = append(parts, fmt.Sprintf("match(%s %s %v)", st.Field, st.Op, st.Value))
		case Sort:
			dir := "asc"
			if st.Desc {
				dir = "desc"
			}
			parts = append(parts, fmt.Sprintf("sort(%s %s)", st.Field, dir))
		case Limit:
			parts = append(parts, fmt.Sprintf("limit(%d)", st.N))
		case Sample:
			parts = append(parts, fmt.Sprintf("sample(%d)", st.N))
		case Project:
			names := make([]string, len(st.Fields))
			for i, f := range st.Fields {
				names[i] = f.As
			}
			parts = append(parts, "project("+strings.Join(names, ",")+")")
		}
	}
	return strings.Join(parts, " | ")
}
