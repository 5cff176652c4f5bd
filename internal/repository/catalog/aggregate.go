package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/musedex/internal/db"
	domcat "github.com/kailas-cloud/musedex/internal/domain/catalog"
	"github.com/kailas-cloud/musedex/internal/domain/pipeline"
)

// Aggregate runs p with its leading stages pushed down to Redis.
//
// Two leading shapes are pushed down:
//   - a lookup of a foreign kind referencing the source, followed by rollups
//     over it (and optionally matches, a sort and a limit on their outputs),
//     compiled to FT.AGGREGATE GROUPBY over the foreign index;
//   - a sample, compiled to SRANDMEMBER over the source id set.
//
// The remaining stages run in process, with lookups served by this repo.
func (r *Repo) Aggregate(ctx context.Context, p *pipeline.Pipeline) ([]pipeline.Doc, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var (
		docs []pipeline.Doc
		rest []pipeline.Stage
		err  error
	)
	switch first := p.Stages[0].(type) {
	case pipeline.Sample:
		docs, err = r.sample(ctx, p.Source, first.N)
		rest = p.Stages[1:]
	case pipeline.Lookup:
		docs, rest, err = r.rollup(ctx, p.Source, p.Stages)
	default:
		return nil, fmt.Errorf("%w: %s cannot lead a pipeline", pipeline.ErrUnsupported, pipeline.StageName(first))
	}
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", p.Source, err)
	}

	out, err := pipeline.Exec(ctx, docs, rest, r, nil)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", p.Source, err)
	}
	return out, nil
}

func (r *Repo) sample(ctx context.Context, source domcat.Kind, n int) ([]pipeline.Doc, error) {
	ids, err := r.store.SRandMember(ctx, r.idsKey(source), n)
	if err != nil {
		return nil, err
	}
	return r.Fetch(ctx, source, pipeline.IDField, ids)
}

// push-down phases; FT.AGGREGATE applies its steps in argument order.
const (
	phaseRollup = iota
	phaseMatch
	phaseSort
)

func (r *Repo) rollup(
	ctx context.Context, source domcat.Kind, stages []pipeline.Stage,
) ([]pipeline.Doc, []pipeline.Stage, error) {
	lk, _ := stages[0].(pipeline.Lookup)
	ref, ok := domcat.SchemaOf(lk.From).Lookup(lk.ForeignField)
	if lk.LocalField != pipeline.IDField || !ok || ref.Type != domcat.Ref || ref.To != source {
		return nil, nil, fmt.Errorf("%w: lookup %s.%s is not a back-reference to %s",
			pipeline.ErrUnsupported, lk.From, lk.ForeignField, source)
	}

	q := &db.AggregateQuery{Index: r.indexName(lk.From), GroupBy: []string{lk.ForeignField}}
	outputs := make(map[string]pipeline.RollupOp)
	filteredOnAvg := false
	phase := phaseRollup
	i := 1

loop:
	for ; i < len(stages); i++ {
		switch st := stages[i].(type) {
		case pipeline.Rollup:
			if phase > phaseRollup || st.Array != lk.As {
				break loop
			}
			f, ok := domcat.SchemaOf(lk.From).Lookup(st.Field)
			if !ok || (f.Type != domcat.Number && f.Type != domcat.Time) {
				return nil, nil, fmt.Errorf("%w: rollup over non-numeric %s.%s", pipeline.ErrUnsupported, lk.From, st.Field)
			}
			fn := db.ReduceSum
			if st.Op == pipeline.Avg {
				fn = db.ReduceAvg
			}
			q.Reducers = append(q.Reducers, db.Reducer{Func: fn, Field: st.Field, As: st.As})
			outputs[st.As] = st.Op
		case pipeline.Match:
			op, ok := outputs[st.Field]
			if phase > phaseMatch || !ok {
				break loop
			}
			phase = phaseMatch
			q.Filters = append(q.Filters, fmt.Sprintf("@%s %s %s", st.Field, st.Op, formatNumber(st.Value)))
			if op == pipeline.Avg {
				filteredOnAvg = true
			}
		case pipeline.Sort:
			if _, ok := outputs[st.Field]; phase > phaseSort || !ok {
				break loop
			}
			phase = phaseSort
			q.SortBy = append(q.SortBy, db.SortKey{Field: st.Field, Desc: st.Desc})
		case pipeline.Limit:
			q.Limit = st.N
			i++
			break loop
		default:
			break loop
		}
	}

	// Groups exist only for sources with at least one foreign document. That
	// is exact only when an average filter drops the empty ones anyway.
	if !filteredOnAvg {
		return nil, nil, fmt.Errorf("%w: rollup without a filter on an average", pipeline.ErrUnsupported)
	}
	rest := stages[i:]
	if refersTo(rest, lk.As) {
		return nil, nil, fmt.Errorf("%w: %s is not materialized", pipeline.ErrUnsupported, lk.As)
	}

	docs, err := r.groups(ctx, q, source, lk.ForeignField, outputs)
	if err != nil {
		return nil, nil, err
	}
	return docs, rest, nil
}

// groups runs q and loads the source documents its groups point at, with
// the rollup outputs attached. Groups whose source document is gone are
// skipped; with a LIMIT the query is paged until limit documents exist or
// the groups run out.
func (r *Repo) groups(
	ctx context.Context, q *db.AggregateQuery, source domcat.Kind, ref string, outputs map[string]pipeline.RollupOp,
) ([]pipeline.Doc, error) {
	limit := q.Limit
	docs := []pipeline.Doc{}
	seen := make(map[string]bool)

	for {
		res, err := r.store.Aggregate(ctx, q)
		if err != nil {
			return nil, err
		}

		ids := make([]string, 0, len(res.Rows))
		rows := make(map[string]map[string]string, len(res.Rows))
		for _, row := range res.Rows {
			id := row[ref]
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
			rows[id] = row
		}

		if len(ids) > 0 {
			batch, err := r.Fetch(ctx, source, pipeline.IDField, ids)
			if err != nil {
				return nil, err
			}
			for _, d := range batch {
				row := rows[fmt.Sprint(d[pipeline.IDField])]
				for as := range outputs {
					if v, err := strconv.ParseFloat(row[as], 64); err == nil {
						d[as] = v
					}
				}
			}
			docs = append(docs, batch...)
		}

		if limit <= 0 || len(docs) >= limit || len(res.Rows) < limit {
			break
		}
		q.Offset += limit
	}

	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

// refersTo reports whether any stage reads field.
func refersTo(stages []pipeline.Stage, field string) bool {
	for _, s := range stages {
		switch st := s.(type) {
		case pipeline.Rollup:
			if st.Array == field {
				return true
			}
		case pipeline.Match:
			if st.Field == field {
				return true
			}
		case pipeline.Sort:
			if st.Field == field {
				return true
			}
		case pipeline.Lookup:
			if st.LocalField == field {
				return true
			}
		case pipeline.Project:
			for _, f := range st.Fields {
				if head, _, _ := strings.Cut(f.Path, "."); head == field {
					return true
				}
			}
		}
	}
	return false
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
