package api

import (
	"net/http"

	"github.com/onnwee/placereviews/internal/geo"
	"github.com/onnwee/placereviews/internal/review"
	"github.com/onnwee/placereviews/internal/route"
)

// RouteHandlers serves routes from the client to a reviewed place.
type RouteHandlers struct {
	reviews  review.Getter
	routes   *route.Resolver
	fallback geo.Point
}

// NewRouteHandlers creates a new RouteHandlers instance. fallback replaces a
// missing or invalid client position.
func NewRouteHandlers(reviews review.Getter, routes *route.Resolver, fallback geo.Point) *RouteHandlers {
	return &RouteHandlers{reviews: reviews, routes: routes, fallback: fallback}
}

// RouteResponse is the body of GET /route.
type RouteResponse struct {
	ReviewID string     `json:"review_id"`
	Origin   geo.Point  `json:"origin"`
	Dest     *geo.Point `json:"destination,omitempty"`
	// FallbackOrigin is set when the client position was replaced.
	FallbackOrigin bool `json:"fallback_origin"`
	route.Result
}

// Route handles GET /route?review_id=&lat=&lng=. A place without coordinates
// yields an empty path rather than an error.
func (h *RouteHandlers) Route(w http.ResponseWriter, r *http.Request) {
	reviewID := r.URL.Query().Get("review_id")
	if reviewID == "" {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "review_id is required")
		return
	}

	rv, err := h.reviews.GetReview(r.Context(), reviewID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	reported, _ := positionFrom(r)
	origin := geo.ResolveOrigin(reported, h.fallback)
	resp := RouteResponse{
		ReviewID:       rv.ID,
		Origin:         origin,
		FallbackOrigin: reported == nil || !reported.Valid(),
	}
	if p, ok := rv.Place.Point(); ok {
		resp.Dest = &p
	}
	resp.Result = h.routes.RouteBetween(r.Context(), &origin, resp.Dest)

	writeJSON(w, r, http.StatusOK, resp)
}
