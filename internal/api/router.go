package api

import (
	"net/http"
)

// Routes groups the handlers mounted by NewRouter. Nil groups are not mounted.
type Routes struct {
	Health  *HealthHandlers
	Search  *SearchHandlers
	Reviews *ReviewHandlers
	Route   *RouteHandlers
	Places  *PlaceHandlers
	Ranks   *RankHandlers
	// Metrics serves GET /metrics when set.
	Metrics http.Handler

	// MutationLimit wraps vote and comment endpoints; ReadLimit wraps search
	// and routing. Either may be nil.
	MutationLimit func(http.Handler) http.Handler
	ReadLimit     func(http.Handler) http.Handler
}

// NewRouter mounts every route on a ServeMux. Unknown paths get a JSON 404.
func NewRouter(routes Routes) *http.ServeMux {
	mux := http.NewServeMux()
	mutation := limiterOrPassthrough(routes.MutationLimit)
	read := limiterOrPassthrough(routes.ReadLimit)

	if h := routes.Health; h != nil {
		mux.HandleFunc("GET /health", h.Health)
		mux.HandleFunc("GET /ready", h.Ready)
	}
	if h := routes.Search; h != nil {
		mux.Handle("GET /search", read(http.HandlerFunc(h.Search)))
		mux.HandleFunc("DELETE /search/session", h.EndSession)
		mux.HandleFunc("POST /search/session/reload", h.ReloadSession)
	}
	if h := routes.Reviews; h != nil {
		mux.HandleFunc("GET /reviews/{id}", h.GetReview)
		mux.Handle("POST /reviews/{id}/vote", mutation(http.HandlerFunc(h.Vote)))
		mux.Handle("POST /reviews/{id}/comments", mutation(http.HandlerFunc(h.PostComment)))
	}
	if h := routes.Route; h != nil {
		mux.Handle("GET /route", read(http.HandlerFunc(h.Route)))
	}
	if h := routes.Places; h != nil {
		mux.HandleFunc("GET /places", h.ListPlaces)
		mux.HandleFunc("GET /places/{id}/reviews", h.PlaceReviews)
	}
	if h := routes.Ranks; h != nil {
		mux.HandleFunc("GET /ranks", h.Ranks)
	}
	if routes.Metrics != nil {
		mux.Handle("GET /metrics", routes.Metrics)
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
	})
	return mux
}

func limiterOrPassthrough(limit func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	if limit == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return limit
}
