package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/onnwee/placereviews/internal/engagement"
	"github.com/onnwee/placereviews/internal/geo"
	"github.com/onnwee/placereviews/internal/middleware"
	"github.com/onnwee/placereviews/internal/ranking"
	"github.com/onnwee/placereviews/internal/route"
	"github.com/onnwee/placereviews/internal/validate"
)

// SearchHandlers serves review search over per-session engagement caches.
type SearchHandlers struct {
	sessions *engagement.Sessions
	routes   *route.Resolver
	fallback geo.Point
	logger   *slog.Logger
}

// SearchHandlersConfig configures SearchHandlers.
type SearchHandlersConfig struct {
	Sessions *engagement.Sessions
	Routes   *route.Resolver
	// Fallback is the origin used when the client position is missing or invalid.
	Fallback geo.Point
	Logger   *slog.Logger
}

// NewSearchHandlers creates a new SearchHandlers instance.
func NewSearchHandlers(cfg SearchHandlersConfig) *SearchHandlers {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchHandlers{
		sessions: cfg.Sessions,
		routes:   cfg.Routes,
		fallback: cfg.Fallback,
		logger:   logger,
	}
}

// SearchResponse is the body of GET /search.
type SearchResponse struct {
	engagement.SearchResult
	Count int `json:"count"`
	// AuthorRanks holds the rank of every author appearing in the results.
	AuthorRanks map[string]ranking.Rank `json:"author_ranks"`
	// SelectedReviewID is the first match, which the route is computed for.
	SelectedReviewID string        `json:"selected_review_id,omitempty"`
	Route            *route.Result `json:"route,omitempty"`
}

// Search handles GET /search?q=&lat=&lng=.
func (h *SearchHandlers) Search(w http.ResponseWriter, r *http.Request) {
	term, err := validate.SearchTerm(r.URL.Query().Get("q"))
	if err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "Search term is too long")
		return
	}

	cache := h.sessions.Get(middleware.SessionID(r))
	result, err := cache.Search(r.Context(), term)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := SearchResponse{
		SearchResult: result,
		Count:        len(result.Reviews),
		AuthorRanks:  make(map[string]ranking.Rank),
	}
	for _, e := range result.Reviews {
		if id := e.Author.ID; id != "" {
			if _, seen := resp.AuthorRanks[id]; !seen {
				resp.AuthorRanks[id] = cache.RankFor(id)
			}
		}
	}

	if len(result.Reviews) > 0 {
		first := result.Reviews[0]
		resp.SelectedReviewID = first.ID
		if reported, supplied := positionFrom(r); supplied {
			origin := geo.ResolveOrigin(reported, h.fallback)
			var dest *geo.Point
			if p, ok := first.Place.Point(); ok {
				dest = &p
			}
			res := h.routes.RouteBetween(r.Context(), &origin, dest)
			resp.Route = &res
		}
	}

	writeJSON(w, r, http.StatusOK, resp)
}

// EndSession handles DELETE /search/session.
func (h *SearchHandlers) EndSession(w http.ResponseWriter, r *http.Request) {
	id := middleware.SessionID(r)
	ended := h.sessions.End(id)
	h.logger.DebugContext(r.Context(), "search session ended",
		slog.String("session_id", id),
		slog.Bool("existed", ended),
	)
	w.WriteHeader(http.StatusNoContent)
}

// ReloadSession handles POST /search/session/reload. The next search reloads
// the session's cache.
func (h *SearchHandlers) ReloadSession(w http.ResponseWriter, r *http.Request) {
	h.sessions.Get(middleware.SessionID(r)).Invalidate()
	w.WriteHeader(http.StatusNoContent)
}

// positionFrom reads the optional lat/lng query parameters. supplied is true
// when either parameter is present; reported is nil when they do not parse.
func positionFrom(r *http.Request) (reported *geo.Point, supplied bool) {
	q := r.URL.Query()
	rawLat, rawLng := q.Get("lat"), q.Get("lng")
	if rawLat == "" && rawLng == "" {
		return nil, false
	}
	lat, errLat := strconv.ParseFloat(rawLat, 64)
	lng, errLng := strconv.ParseFloat(rawLng, 64)
	if errLat != nil || errLng != nil {
		return nil, true
	}
	return &geo.Point{Lat: lat, Lng: lng}, true
}
