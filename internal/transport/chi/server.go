package chi

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/oapi-codegen/runtime"
	"go.uber.org/zap"

	"github.com/kailas-cloud/musedex/internal/domain"
	"github.com/kailas-cloud/musedex/internal/domain/catalog"
	"github.com/kailas-cloud/musedex/internal/domain/search/request"
	"github.com/kailas-cloud/musedex/internal/domain/search/result"
	domtrend "github.com/kailas-cloud/musedex/internal/domain/trending"
	"github.com/kailas-cloud/musedex/internal/logger"
	healthuc "github.com/kailas-cloud/musedex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/musedex/internal/usecase/search"
	trendinguc "github.com/kailas-cloud/musedex/internal/usecase/trending"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidArgument = "invalid_argument"
	CodeInternalError   = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the discovery HTTP API.
type Server struct {
	search        *searchuc.Service
	trending      *trendinguc.Service
	health        *healthuc.Service
	limits        request.Limits
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	trending *trendinguc.Service,
	health *healthuc.Service,
	limits request.Limits,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:   search,
		trending: trending,
		health:   health,
		limits:   limits,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		invalidArgumentHandler,
		sentinelHandler(domain.ErrUnavailable, http.StatusInternalServerError, CodeInternalError),
		sentinelHandler(domain.ErrStore, http.StatusInternalServerError, CodeInternalError),
	}
	return s
}

// SearchParams are the query parameters of GET /search.
type SearchParams struct {
	Query *string `form:"query,omitempty" json:"query,omitempty"`
	Type  *string `form:"type,omitempty" json:"type,omitempty"`
	Page  *int    `form:"page,omitempty" json:"page,omitempty"`
	Limit *int    `form:"limit,omitempty" json:"limit,omitempty"`
}

// Search handles GET /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	params := bindSearchParams(r)

	req, err := request.New(
		deref(params.Query), deref(params.Type), deref(params.Page), deref(params.Limit), s.limits,
	)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	page, err := s.search.Search(r.Context(), &req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]map[string]any, len(page.Results))
	for i := range page.Results {
		items[i] = searchResultToResponse(&page.Results[i])
	}
	writeJSON(w, http.StatusOK, SearchResponse{
		Results:    items,
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	})
}

// TopPicks handles GET /discovery/top-picks.
func (s *Server) TopPicks(w http.ResponseWriter, r *http.Request) {
	candidates, err := s.trending.TopPicks(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	albums := make([]AlbumResponse, len(candidates))
	for i := range candidates {
		albums[i] = candidateToResponse(&candidates[i])
	}
	writeJSON(w, http.StatusOK, TopPicksResponse{TopAlbums: albums})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	var sizes map[string]int
	if report.Catalog != nil {
		sizes = make(map[string]int, len(report.Catalog))
		for k, n := range report.Catalog {
			sizes[string(k)] = n
		}
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Checks:  checks,
		Catalog: sizes,
	})
}

// bindSearchParams reads the search query string. Values that fail to bind
// are left unset so the router applies its defaults.
func bindSearchParams(r *http.Request) SearchParams {
	var params SearchParams
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "query", q, &params.Query); err != nil {
		params.Query = nil
	}
	if err := runtime.BindQueryParameter("form", true, false, "type", q, &params.Type); err != nil {
		params.Type = nil
	}
	if err := runtime.BindQueryParameter("form", true, false, "page", q, &params.Page); err != nil {
		params.Page = nil
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", q, &params.Limit); err != nil {
		params.Limit = nil
	}
	return params
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// invalidArgumentHandler reports the client-facing reason of a rejected request.
func invalidArgumentHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, domain.ErrInvalidArgument) {
		return false
	}
	msg := domain.ErrInvalidArgument.Error()
	var iae *domain.InvalidArgumentError
	if errors.As(err, &iae) {
		msg = iae.Reason
	}
	writeError(w, http.StatusBadRequest, CodeInvalidArgument, msg)
	return true
}

// sentinelHandler returns an errorHandler that matches a single sentinel
// error. The client never sees the underlying cause.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, "internal error")
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	if errors.Is(err, domain.ErrInvalidArgument) {
		log.Debug("rejected request", zap.Error(err))
	} else {
		log.Error("request failed", zap.Error(err))
	}
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

func searchResultToResponse(r *result.Result) map[string]any {
	item := recordToResponse(r.Record())
	item["kind"] = string(r.Kind())
	return item
}

// recordToResponse flattens a record into its JSON object form. Populated
// references become nested objects carrying their own id.
func recordToResponse(rec catalog.Record) map[string]any {
	fields := rec.Fields()
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		switch tv := v.(type) {
		case catalog.Record:
			out[k] = recordToResponse(tv)
		case time.Time:
			out[k] = tv.UTC().Format(time.RFC3339Nano)
		default:
			out[k] = v
		}
	}
	out["id"] = rec.ID()
	return out
}

func candidateToResponse(c *domtrend.Candidate) AlbumResponse {
	album := AlbumResponse{
		ID:        c.AlbumRef,
		Title:     c.Title,
		Performer: c.PerformerName,
		CoverArt:  c.CoverArt,
		Genre:     c.Genre,
	}
	if album.Genre == nil {
		album.Genre = []string{}
	}
	if c.ReleaseDate != nil {
		d := c.ReleaseDate.UTC().Format(time.RFC3339Nano)
		album.ReleaseDate = &d
	}
	return album
}
