// Package catalog describes the entity kinds of the media library and the
// records the catalog store returns for them.
package catalog

// Kind names an entity collection in the catalog.
type Kind string

// Catalog kinds.
const (
	Account    Kind = "account"
	Track      Kind = "track"
	Performer  Kind = "performer"
	Collection Kind = "collection"
	Album      Kind = "album"
)

// All selects every searchable kind. It is a search mode, not a kind.
const All = "all"

// Kinds lists every catalog kind.
var Kinds = []Kind{Account, Track, Performer, Collection, Album}

// Searchable lists the kinds a federated search covers, in merge order.
var Searchable = []Kind{Account, Track, Performer, Collection}

var kinds = map[Kind]bool{
	Account: true, Track: true, Performer: true, Collection: true, Album: true,
}

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool { return kinds[k] }

// IsSearchable reports whether k participates in search.
func (k Kind) IsSearchable() bool {
	for _, s := range Searchable {
		if s == k {
			return true
		}
	}
	return false
}

// SearchField returns the field a query is matched against for k.
// It is also the display field the ranker compares.
func (k Kind) SearchField() string {
	switch k {
	case Account:
		return "handle"
	case Track, Album:
		return "title"
	case Performer, Collection:
		return "name"
	default:
		return ""
	}
}

// Populate returns the reference field expanded into a nested record when
// k is searched on its own, and the kind it points to.
func (k Kind) Populate() (field string, target Kind, ok bool) {
	switch k {
	case Track:
		return "performer", Performer, true
	case Collection:
		return "owner", Account, true
	default:
		return "", "", false
	}
}

// Plural returns the collection name used for tables and keys.
func (k Kind) Plural() string { return string(k) + "s" }
