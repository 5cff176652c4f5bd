package request

import (
	"github.com/kailas-cloud/musedex/internal/domain"
	"github.com/kailas-cloud/musedex/internal/domain/catalog"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength  = 512
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100

	// MaxResultWindow bounds offset plus page size of one find. RediSearch
	// refuses windows past its MAXSEARCHRESULTS default.
	MaxResultWindow = 1_000_000
)

// Client-facing validation messages.
const (
	MsgQueryRequired = "search query required"
	MsgInvalidType   = "invalid search type"
	MsgQueryTooLong  = "search query too long"
)

// Limits bounds the page size of a request.
type Limits struct {
	DefaultPageSize int
	MaxPageSize     int
}

// DefaultLimits returns the built-in page size limits.
func DefaultLimits() Limits {
	return Limits{DefaultPageSize: DefaultPageSize, MaxPageSize: MaxPageSize}
}

// Request is a validated search query.
type Request struct {
	query    string
	kind     catalog.Kind
	all      bool
	page     int
	pageSize int
}

// New validates and normalizes search parameters.
// An empty kind selects every searchable kind. Page and page size below 1
// fall back to defaults; page size is clamped to the maximum.
func New(query, kind string, page, pageSize int, lim Limits) (Request, error) {
	if query == "" {
		return Request{}, domain.NewInvalidArgument(MsgQueryRequired)
	}
	if len(query) > MaxQueryLength {
		return Request{}, domain.NewInvalidArgument(MsgQueryTooLong)
	}

	r := Request{query: query}
	switch k := catalog.Kind(kind); {
	case kind == "" || kind == catalog.All:
		r.all = true
	case k.IsSearchable():
		r.kind = k
	default:
		return Request{}, domain.NewInvalidArgument(MsgInvalidType)
	}

	if lim.DefaultPageSize <= 0 {
		lim.DefaultPageSize = DefaultPageSize
	}
	if lim.MaxPageSize <= 0 {
		lim.MaxPageSize = MaxPageSize
	}
	if page < 1 {
		page = DefaultPage
	}
	if pageSize < 1 {
		pageSize = lim.DefaultPageSize
	}
	if pageSize > lim.MaxPageSize {
		pageSize = lim.MaxPageSize
	}
	r.page = page
	r.pageSize = pageSize
	return r, nil
}

// Query returns the search text.
func (r *Request) Query() string { return r.query }

// All reports whether every searchable kind is queried.
func (r *Request) All() bool { return r.all }

// Kind returns the single queried kind; empty in all mode.
func (r *Request) Kind() catalog.Kind { return r.kind }

// Kinds returns the kinds to query, in merge order.
func (r *Request) Kinds() []catalog.Kind {
	if r.all {
		out := make([]catalog.Kind, len(catalog.Searchable))
		copy(out, catalog.Searchable)
		return out
	}
	return []catalog.Kind{r.kind}
}

// Offset returns the number of matches skipped before this page, and false
// when the page lies past MaxResultWindow and is always empty.
func (r *Request) Offset() (int, bool) { return Window(r.page, r.pageSize) }

// Window returns the offset of a 1-based page and whether the page ends
// inside MaxResultWindow. It never overflows, whatever page is.
func Window(page, pageSize int) (int, bool) {
	if page < 1 || pageSize < 1 || pageSize > MaxResultWindow {
		return 0, false
	}
	if page-1 > (MaxResultWindow-pageSize)/pageSize {
		return 0, false
	}
	return (page - 1) * pageSize, true
}

// Page returns the 1-based page number.
func (r *Request) Page() int { return r.page }

// PageSize returns the number of results per page (per kind in all mode).
func (r *Request) PageSize() int { return r.pageSize }
