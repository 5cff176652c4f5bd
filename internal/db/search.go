package db

import (
	"errors"
	"strconv"
	"strings"
)

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Fields map[string]string
}

// Reducer functions for FT.AGGREGATE GROUPBY.
const (
	ReduceSum   = "SUM"
	ReduceAvg   = "AVG"
	ReduceCount = "COUNT"
)

// Reducer is one REDUCE clause of a GROUPBY.
type Reducer struct {
	Func  string
	Field string // without the leading @; empty for COUNT
	As    string
}

// SortKey is one SORTBY property.
type SortKey struct {
	Field string
	Desc  bool
}

// AggregateQuery is the input for FT.AGGREGATE.
type AggregateQuery struct {
	Index    string
	Query    string // defaults to "*"
	GroupBy  []string
	Reducers []Reducer
	Filters  []string // FILTER expressions, applied in order after GROUPBY
	SortBy   []SortKey
	Offset   int
	Limit    int // 0 means no LIMIT clause
}

// AggregateResult holds the rows produced by FT.AGGREGATE.
type AggregateResult struct {
	Total int
	Rows  []map[string]string
}

// Args renders the query as FT.AGGREGATE arguments.
func (q *AggregateQuery) Args() ([]string, error) {
	if q.Index == "" {
		return nil, errors.New("index name is required")
	}
	query := q.Query
	if query == "" {
		query = "*"
	}
	args := []string{q.Index, query}

	if len(q.GroupBy) > 0 {
		args = append(args, "GROUPBY", strconv.Itoa(len(q.GroupBy)))
		for _, g := range q.GroupBy {
			args = append(args, "@"+g)
		}
		for _, r := range q.Reducers {
			if r.Func == "" || r.As == "" {
				return nil, errors.New("reducer needs a function and an alias")
			}
			if r.Field == "" {
				args = append(args, "REDUCE", r.Func, "0")
			} else {
				args = append(args, "REDUCE", r.Func, "1", "@"+r.Field)
			}
			args = append(args, "AS", r.As)
		}
	} else if len(q.Reducers) > 0 {
		return nil, errors.New("reducers require GROUPBY")
	}

	for _, f := range q.Filters {
		args = append(args, "FILTER", f)
	}

	if len(q.SortBy) > 0 {
		sortArgs := make([]string, 0, 2*len(q.SortBy))
		for _, k := range q.SortBy {
			dir := "ASC"
			if k.Desc {
				dir = "DESC"
			}
			sortArgs = append(sortArgs, "@"+k.Field, dir)
		}
		args = append(args, "SORTBY", strconv.Itoa(len(sortArgs)))
		args = append(args, sortArgs...)
	}

	if q.Limit > 0 {
		args = append(args, "LIMIT", strconv.Itoa(q.Offset), strconv.Itoa(q.Limit))
	}

	return append(args, "DIALECT", "2"), nil
}

// String returns a debug representation of the FT.AGGREGATE command.
func (q *AggregateQuery) String() string {
	args, err := q.Args()
	if err != nil {
		return "FT.AGGREGATE <invalid: " + err.Error() + ">"
	}
	return "FT.AGGREGATE " + strings.Join(args, " ")
}

// TagContains builds an FT.SEARCH clause matching TAG field values that
// contain value as a literal substring. Case-insensitivity comes from the
// TAG field definition.
func TagContains(field, value string) string {
	return "@" + field + ":{*" + tagEscaper.Replace(value) + "*}"
}

// TagEquals builds an FT.SEARCH clause matching any of values exactly.
func TagEquals(field string, values ...string) string {
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = tagEscaper.Replace(v)
	}
	return "@" + field + ":{" + strings.Join(escaped, " | ") + "}"
}

var tagEscaper = strings.NewReplacer(
	`\`, `\\`,
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"[", "\\[",
	"]", "\\]",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"?", "\\?",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	"|", "\\|",
	"/", "\\/",
	" ", "\\ ",
)
