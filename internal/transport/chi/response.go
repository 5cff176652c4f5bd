package chi

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SearchResponse is the body of GET /search.
type SearchResponse struct {
	Results    []map[string]any `json:"results"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalPages int              `json:"totalPages"`
}

// AlbumResponse is one entry of the trending list.
type AlbumResponse struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Performer   string   `json:"performer,omitempty"`
	CoverArt    string   `json:"coverArt,omitempty"`
	ReleaseDate *string  `json:"releaseDate,omitempty"`
	Genre       []string `json:"genre"`
}

// TopPicksResponse is the body of GET /discovery/top-picks.
type TopPicksResponse struct {
	TopAlbums []AlbumResponse `json:"topAlbums"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Catalog map[string]int    `json:"catalog,omitempty"`
}
