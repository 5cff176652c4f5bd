package catalogpg

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	domcat "github.com/kailas-cloud/musedex/internal/domain/catalog"
	"github.com/kailas-cloud/musedex/internal/domain/pipeline"
)

// Aggregate runs p with its leading stages compiled to SQL.
//
// A leading back-reference lookup with rollups over it, optionally followed
// by matches, a sort and a limit on the rollup outputs, becomes a grouped
// CTE joined to the source table. A leading sample becomes ORDER BY random().
// The remaining stages run in process with lookups served by this repo.
func (r *Repo) Aggregate(ctx context.Context, p *pipeline.Pipeline) ([]pipeline.Doc, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var (
		q    *query
		rest []pipeline.Stage
		err  error
	)
	switch first := p.Stages[0].(type) {
	case pipeline.Sample:
		q = sampleQuery(p.Source, first.N)
		rest = p.Stages[1:]
	case pipeline.Lookup:
		q, rest, err = rollupQuery(p.Source, p.Stages)
	default:
		err = fmt.Errorf("%w: %s cannot lead a pipeline", pipeline.ErrUnsupported, pipeline.StageName(first))
	}
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", p.Source, err)
	}

	rows, err := r.pool.Query(ctx, q.sql, q.args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", p.Source, err)
	}
	docs, err := scanDocs(rows, q.outputs)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", p.Source, err)
	}

	out, err := pipeline.Exec(ctx, docs, rest, r, nil)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", p.Source, err)
	}
	return out, nil
}

// query is a compiled statement selecting (id, doc, outputs...).
type query struct {
	sql     string
	args    []any
	outputs []string
}

func (q *query) bind(v any) string {
	q.args = append(q.args, v)
	return "$" + strconv.Itoa(len(q.args))
}

func sampleQuery(source domcat.Kind, n int) *query {
	q := &query{}
	q.sql = "SELECT id, doc FROM catalog_records WHERE kind = " + q.bind(string(source)) +
		" ORDER BY random() LIMIT " + q.bind(n)
	return q
}

const (
	phaseRollup = iota
	phaseMatch
	phaseSort
)

func rollupQuery(source domcat.Kind, stages []pipeline.Stage) (*query, []pipeline.Stage, error) {
	lk, _ := stages[0].(pipeline.Lookup)
	ref, ok := domcat.SchemaOf(lk.From).Lookup(lk.ForeignField)
	if lk.LocalField != pipeline.IDField || !ok || ref.Type != domcat.Ref || ref.To != source {
		return nil, nil, fmt.Errorf("%w: lookup %s.%s is not a back-reference to %s",
			pipeline.ErrUnsupported, lk.From, lk.ForeignField, source)
	}

	q := &query{}
	var (
		reducers []string
		where    []string
		order    []string
		limit    string
	)
	// exprs maps each rollup output to its expression over the joined row;
	// the sum of nothing is 0, the average of nothing stays NULL.
	exprs := make(map[string]string)
	foreignKind := q.bind(string(lk.From))
	foreignField := q.bind(lk.ForeignField)
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
			col := pgx.Identifier{st.As}.Sanitize()
			fn := "SUM"
			expr := "COALESCE(a." + col + ", 0)"
			if st.Op == pipeline.Avg {
				fn = "AVG"
				expr = "a." + col
			}
			reducers = append(reducers, fmt.Sprintf("%s((doc ->> %s::text)::float8) AS %s", fn, q.bind(st.Field), col))
			exprs[st.As] = expr
			q.outputs = append(q.outputs, st.As)
		case pipeline.Match:
			expr, ok := exprs[st.Field]
			if phase > phaseMatch || !ok {
				break loop
			}
			phase = phaseMatch
			where = append(where, fmt.Sprintf("%s %s %s", expr, st.Op, q.bind(st.Value)))
		case pipeline.Sort:
			expr, ok := exprs[st.Field]
			if phase > phaseSort || !ok {
				break loop
			}
			phase = phaseSort
			if st.Desc {
				order = append(order, expr+" DESC NULLS LAST")
			} else {
				order = append(order, expr+" ASC NULLS FIRST")
			}
		case pipeline.Limit:
			limit = " LIMIT " + q.bind(st.N)
			i++
			break loop
		default:
			break loop
		}
	}

	if len(reducers) == 0 {
		return nil, nil, fmt.Errorf("%w: lookup %s without rollup", pipeline.ErrUnsupported, lk.As)
	}
	rest := stages[i:]
	if refersTo(rest, lk.As) {
		return nil, nil, fmt.Errorf("%w: %s is not materialized", pipeline.ErrUnsupported, lk.As)
	}

	selects := make([]string, len(q.outputs))
	for j, as := range q.outputs {
		selects[j] = exprs[as]
	}
	where = append([]string{"r.kind = " + q.bind(string(source))}, where...)
	order = append(order, "r.id")

	var b strings.Builder
	b.WriteString("WITH agg AS (SELECT doc ->> " + foreignField + "::text AS ref, ")
	b.WriteString(strings.Join(reducers, ", "))
	b.WriteString(" FROM catalog_records WHERE kind = " + foreignKind + " GROUP BY 1) ")
	b.WriteString("SELECT r.id, r.doc, " + strings.Join(selects, ", "))
	b.WriteString(" FROM catalog_records r LEFT JOIN agg a ON a.ref = r.id")
	b.WriteString(" WHERE " + strings.Join(where, " AND "))
	b.WriteString(" ORDER BY " + strings.Join(order, ", "))
	b.WriteString(limit)
	q.sql = b.String()
	return q, rest, nil
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
