package result

import "github.com/kailas-cloud/musedex/internal/domain/catalog"

// Result is a single search hit tagged with the kind it came from.
type Result struct {
	kind   catalog.Kind
	record catalog.Record
}

// New creates a search result.
func New(kind catalog.Kind, record catalog.Record) Result {
	return Result{kind: kind, record: record}
}

// Kind returns the originating kind.
func (r *Result) Kind() catalog.Kind { return r.kind }

// Record returns the matched record.
func (r *Result) Record() catalog.Record { return r.record }

// Display returns the field the ranker orders by.
func (r *Result) Display() string { return r.record.Display() }

// Page is one page of ranked results.
type Page struct {
	Results    []Result
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// NewPage assembles a page and derives the page count from total.
func NewPage(results []Result, total, page, pageSize int) Page {
	if results == nil {
		results = []Result{}
	}
	return Page{
		Results:    results,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: TotalPages(total, pageSize),
	}
}

// TotalPages returns ceil(total / pageSize).
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
