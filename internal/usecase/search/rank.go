package search

import (
	"slices"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/kailas-cloud/musedex/internal/domain/search/result"
)

// rank orders results in place. Results whose display field equals query
// under case folding come first; all others follow in case-insensitive
// collation order for locale. Ties keep their merge order.
func rank(results []result.Result, query string, locale language.Tag) {
	if len(results) < 2 {
		return
	}
	// Collators and casers carry state; one per call.
	coll := collate.New(locale, collate.IgnoreCase)
	fold := cases.Fold()
	q := fold.String(query)

	type entry struct {
		r     result.Result
		key   string
		exact bool
	}
	entries := make([]entry, len(results))
	for i, r := range results {
		key := r.Display()
		entries[i] = entry{r: r, key: key, exact: fold.String(key) == q}
	}

	slices.SortStableFunc(entries, func(a, b entry) int {
		switch {
		case a.exact && !b.exact:
			return -1
		case !a.exact && b.exact:
			return 1
		default:
			return coll.CompareString(a.key, b.key)
		}
	})
	for i := range entries {
		results[i] = entries[i].r
	}
}
