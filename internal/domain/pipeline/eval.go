package pipeline

import (
	"cmp"
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/musedex/internal/domain/catalog"
)

// Source fetches the documents a Lookup joins against.
type Source interface {
	// Fetch returns the documents of kind whose field equals one of keys,
	// or, for a list field, contains one of them.
	Fetch(ctx context.Context, kind catalog.Kind, field string, keys []string) ([]Doc, error)
}

// Exec evaluates stages over docs in process. Backends use it for the
// stages they do not push down. A nil rng uses the global generator.
func Exec(ctx context.Context, docs []Doc, stages []Stage, src Source, rng *rand.Rand) ([]Doc, error) {
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch st := s.(type) {
		case Lookup:
			joined, err := execLookup(ctx, docs, st, src)
			if err != nil {
				return nil, err
			}
			docs = joined
		case Rollup:
			out := make([]Doc, len(docs))
			for i, d := range docs {
				out[i] = rollup(d, st)
			}
			docs = out
		case Match:
			out := make([]Doc, 0, len(docs))
			for _, d := range docs {
				if st.Test(d) {
					out = append(out, d)
				}
			}
			docs = out
		case Sort:
			docs = slices.Clone(docs)
			slices.SortStableFunc(docs, func(a, b Doc) int {
				c := compareNumeric(a[st.Field], b[st.Field])
				if st.Desc {
					return -c
				}
				return c
			})
		case Limit:
			if len(docs) > st.N {
				docs = docs[:st.N]
			}
		case Sample:
			docs = sample(docs, st.N, rng)
		case Project:
			out := make([]Doc, len(docs))
			for i, d := range docs {
				out[i] = project(d, st)
			}
			docs = out
		default:
			return nil, fmt.Errorf("%w: %T", ErrUnsupported, s)
		}
	}
	return docs, nil
}

func execLookup(ctx context.Context, docs []Doc, st Lookup, src Source) ([]Doc, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: lookup without source", ErrUnsupported)
	}
	seen := make(map[string]bool)
	var keys []string
	for _, d := range docs {
		for _, k := range Keys(d[st.LocalField]) {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}

	byKey := make(map[string][]any)
	if len(keys) > 0 {
		foreign, err := src.Fetch(ctx, st.From, st.ForeignField, keys)
		if err != nil {
			return nil, fmt.Errorf("lookup %s: %w", st.From, err)
		}
		for _, f := range foreign {
			for _, k := range Keys(f[st.ForeignField]) {
				byKey[k] = append(byKey[k], f)
			}
		}
	}

	out := make([]Doc, len(docs))
	for i, d := range docs {
		matched := []any{}
		added := make(map[string]bool)
		for _, k := range Keys(d[st.LocalField]) {
			for _, f := range byKey[k] {
				fd, _ := AsDoc(f)
				id := fmt.Sprint(fd[IDField])
				if added[id] {
					continue
				}
				added[id] = true
				matched = append(matched, f)
			}
		}
		nd := d.clone()
		nd[st.As] = matched
		out[i] = nd
	}
	return out, nil
}

// Keys returns the join keys of a value: the value itself for a scalar,
// its elements for a list.
func Keys(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, Keys(e)...)
		}
		return out
	case []string:
		return t
	case string:
		return []string{t}
	case float64:
		return []string{strconv.FormatFloat(t, 'f', -1, 64)}
	case Doc:
		return Keys(t[IDField])
	case map[string]any:
		return Keys(t[IDField])
	default:
		return []string{fmt.Sprint(t)}
	}
}

func rollup(d Doc, st Rollup) Doc {
	var values []float64
	if arr, ok := d[st.Array].([]any); ok {
		for _, e := range arr {
			if ed, ok := AsDoc(e); ok {
				if n, ok := Number(ed[st.Field]); ok {
					values = append(values, n)
				}
			}
		}
	}
	nd := d.clone()
	if v, ok := Accumulate(st.Op, values); ok {
		nd[st.As] = v
	} else {
		delete(nd, st.As)
	}
	return nd
}

// Accumulate applies op to values. The average of no values is undefined.
func Accumulate(op RollupOp, values []float64) (float64, bool) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	switch op {
	case Sum:
		return sum, true
	case Avg:
		if len(values) == 0 {
			return 0, false
		}
		return sum / float64(len(values)), true
	default:
		return 0, false
	}
}

// Test reports whether d satisfies the match.
func (m Match) Test(d Doc) bool {
	n, ok := Number(d[m.Field])
	if !ok {
		return false
	}
	switch m.Op {
	case GTE:
		return n >= m.Value
	case LTE:
		return n <= m.Value
	default:
		return false
	}
}

// Number extracts a float64 from a document value.
func Number(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	n, err := catalog.ToFloat(v)
	return n, err == nil
}

func compareNumeric(a, b any) int {
	na, okA := Number(a)
	nb, okB := Number(b)
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return -1
	case !okB:
		return 1
	default:
		return cmp.Compare(na, nb)
	}
}

func sample(docs []Doc, n int, rng *rand.Rand) []Doc {
	perm := rand.Perm
	if rng != nil {
		perm = rng.Perm
	}
	idx := perm(len(docs))
	if len(idx) > n {
		idx = idx[:n]
	}
	out := make([]Doc, len(idx))
	for i, j := range idx {
		out[i] = docs[j]
	}
	return out
}

func project(d Doc, st Project) Doc {
	out := Doc{IDField: d[IDField]}
	for _, f := range st.Fields {
		if v, ok := Get(d, f.Path); ok {
			out[f.As] = v
		}
	}
	return out
}

// Get resolves a dotted path such as "performerData.0.name" in d.
func Get(d Doc, path string) (any, bool) {
	var cur any = d
	for _, seg := range strings.Split(path, ".") {
		if m, ok := AsDoc(cur); ok {
			cur = m
		}
		switch c := cur.(type) {
		case Doc:
			v, ok := c[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(c) {
				return nil, false
			}
			cur = c[i]
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}

// FromRecord converts a catalog record into a pipeline document.
func FromRecord(rec catalog.Record) Doc {
	fields := rec.Fields()
	d := make(Doc, len(fields)+1)
	for k, v := range fields {
		d[k] = docValue(v)
	}
	d[IDField] = rec.ID()
	return d
}

func docValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return catalog.Millis(t)
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case catalog.Record:
		return FromRecord(t)
	default:
		return v
	}
}

// AsDoc returns v as a Doc when it is a document, including a plain map
// produced by a JSON decoder.
func AsDoc(v any) (Doc, bool) {
	switch t := v.(type) {
	case Doc:
		return t, true
	case map[string]any:
		return Doc(t), true
	default:
		return nil, false
	}
}

func (d Doc) clone() Doc {
	out := make(Doc, len(d)+1)
	for k, v := range d {
		out[k] = v
	}
	return out
}
