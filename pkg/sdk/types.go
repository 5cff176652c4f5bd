package musedex

import "time"

// Kind names a searchable entity kind.
type Kind string

// Searchable kinds. KindAll searches all four.
const (
	KindAll        Kind = "all"
	KindAccount    Kind = "account"
	KindTrack      Kind = "track"
	KindPerformer  Kind = "performer"
	KindCollection Kind = "collection"
)

// SearchHit is a single search result.
type SearchHit struct {
	Kind Kind
	ID   string
	// Fields holds the record's fields. Populated references are nested
	// maps carrying their own "id"; times are time.Time.
	Fields map[string]any
}

// SearchPage is one page of federated search results.
type SearchPage struct {
	Hits       []SearchHit
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// Album is one entry of the trending list.
type Album struct {
	ID          string
	Title       string
	Performer   string
	CoverArt    string
	Genre       []string
	ReleaseDate *time.Time
	// TotalPlays is zero when the list came from the random fallback.
	TotalPlays int64
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status  string            // "ok", "degraded"
	Checks  map[string]string // component → "ok"/"error"
	Catalog map[string]int    // records per kind
}
