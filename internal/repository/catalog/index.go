package catalog

import (
	"github.com/kailas-cloud/musedex/internal/db"
	domcat "github.com/kailas-cloud/musedex/internal/domain/catalog"
)

// searchSeparator is the TAG separator of search fields. Display names may
// contain any printable character, so a control character keeps each value
// a single tag.
const searchSeparator = "\x1f"

// buildIndex derives the FT index of a kind from its schema: the search
// field and references as TAG, numbers and times as NUMERIC.
func buildIndex(name, prefix string, kind domcat.Kind) (*db.IndexDefinition, error) {
	b := db.NewIndex(name).Prefix(prefix)
	search := kind.SearchField()
	for _, f := range domcat.SchemaOf(kind) {
		switch {
		case f.Name == search:
			b.TagWithOpts(f.Name, searchSeparator, false)
		case f.Type == domcat.Ref:
			b.TagWithOpts(f.Name, listSeparator, true)
		case f.Type == domcat.StringList:
			b.TagWithOpts(f.Name, listSeparator, false)
		case f.Type == domcat.Number:
			b.SortableNumeric(f.Name)
		case f.Type == domcat.Time:
			b.Numeric(f.Name)
		}
	}
	return b.Build()
}

// isTagField reports whether field is indexed as TAG for kind.
func isTagField(kind domcat.Kind, field string) bool {
	f, ok := domcat.SchemaOf(kind).Lookup(field)
	if !ok {
		return false
	}
	return field == kind.SearchField() || f.Type == domcat.Ref || f.Type == domcat.StringList
}
